package midgard

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Errors returned by Client.Fetch.
var (
	// ErrRateLimitExceeded is returned when Midgard keeps answering 429 after every retry.
	ErrRateLimitExceeded = errors.New("midgard: rate limit exceeded")

	// ErrMalformedResponse is returned when a successful response has no intervals array.
	ErrMalformedResponse = errors.New("midgard: malformed response")

	// ErrUnknownFamily is returned for a family the client has no endpoint for.
	ErrUnknownFamily = errors.New("midgard: unknown metric family")
)

// UpstreamError is a non-success, non-429 response. It is not retried.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("midgard: unexpected status %d: %s", e.Status, e.Body)
}

// RawInterval is one element of a history response's intervals array.
// Values are kept as raw JSON so the normalizer decides how each field is read.
type RawInterval map[string]json.RawMessage

// historyResponse is the envelope shared by every /v2/history endpoint.
// Only intervals is consumed; meta is ignored.
type historyResponse struct {
	Intervals json.RawMessage `json:"intervals"`
}

// decodeIntervals extracts the intervals array from a response body.
func decodeIntervals(body []byte) ([]RawInterval, error) {
	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Intervals) == 0 || string(resp.Intervals) == "null" {
		return nil, fmt.Errorf("%w: missing intervals array", ErrMalformedResponse)
	}

	var intervals []RawInterval
	if err := json.Unmarshal(resp.Intervals, &intervals); err != nil {
		return nil, fmt.Errorf("%w: intervals is not an array of objects: %v", ErrMalformedResponse, err)
	}
	if intervals == nil {
		intervals = []RawInterval{}
	}
	return intervals, nil
}
