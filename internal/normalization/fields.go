package normalization

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Data-quality reasons.
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
)

// MinInstant is stored when an upstream timestamp cannot be parsed.
var MinInstant = time.Time{}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// fieldReader reads typed values out of one raw interval and reports every fallback.
type fieldReader struct {
	raw    map[string]json.RawMessage
	report func(field, reason, value string)
}

// decimal reads a numeric field encoded as a JSON string or number.
// Absent, null and unparsable values read as zero and are reported.
func (r fieldReader) decimal(field string) decimal.Decimal {
	v, ok := r.raw[field]
	if !ok || isNull(v) {
		r.report(field, ReasonMissing, "")
		return decimal.Zero
	}

	text, ok := scalarText(v)
	if !ok {
		r.report(field, ReasonMalformed, string(v))
		return decimal.Zero
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		r.report(field, ReasonMalformed, text)
		return decimal.Zero
	}
	return d
}

// int reads an integer field. Fractional and out-of-range values read as zero
// and are reported as malformed.
func (r fieldReader) int(field string) int64 {
	d := r.decimal(field)
	if !d.IsInteger() || d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		r.report(field, ReasonMalformed, d.String())
		return 0
	}
	return d.IntPart()
}

func (r fieldReader) float(field string) float64 {
	f, _ := r.decimal(field).Float64()
	return f
}

// string reads a text field. Absent and non-string values read as "".
func (r fieldReader) string(field string) string {
	v, ok := r.raw[field]
	if !ok || isNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// present reports whether field exists with a non-null value.
func (r fieldReader) present(field string) bool {
	v, ok := r.raw[field]
	return ok && !isNull(v)
}

// instant reads a millisecond-epoch timestamp. Unparsable values become MinInstant.
func (r fieldReader) instant(field string) time.Time {
	v := r.raw[field]
	text, ok := scalarText(v)
	if !ok {
		r.report(field, ReasonMalformed, string(v))
		return MinInstant
	}

	ms, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		r.report(field, ReasonMalformed, text)
		return MinInstant
	}
	return time.Unix(ms/1000, 0).UTC()
}

// scalarText returns the text of a JSON string or number.
func scalarText(v json.RawMessage) (string, bool) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return "", false
	}

	switch c := v[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	case c == '-' || (c >= '0' && c <= '9'):
		return string(v), true
	default:
		return "", false
	}
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}
