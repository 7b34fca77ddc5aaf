package profile

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which scalar a Value carries.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Value is a normalized setting value: one of bool, int, float or string.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue returns an integer Value.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue returns a floating point Value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the value as a float64. Integers convert losslessly enough
// for display; strings and booleans report false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Str returns the string payload for KindString values.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Any returns the value as a plain Go scalar.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return v.s
	}
}

// String formats the value the way it is shown in summaries.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return v.s
	}
}

// MarshalJSON writes the natural JSON scalar. Whole floats keep a ".0" so
// they decode back as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && v.f == math.Trunc(v.f) && math.Abs(v.f) < 1e21 {
		return []byte(strconv.FormatFloat(v.f, 'f', 1, 64)), nil
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON restores a Value from a stored settings blob. JSON numbers
// without a fraction or exponent come back as integers, other numbers as
// floats.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = BoolValue(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			*v = IntValue(i)
		} else if f, err := x.Float64(); err == nil {
			*v = FloatValue(f)
		} else {
			*v = StringValue(x.String())
		}
	case string:
		*v = StringValue(x)
	case nil:
		*v = StringValue("")
	default:
		*v = StringValue(string(data))
	}
	return nil
}

// Settings maps canonical setting names to normalized values.
type Settings map[string]Value

// Merge copies every key from src into s, overwriting collisions.
func (s Settings) Merge(src Settings) {
	for k, v := range src {
		s[k] = v
	}
}

var (
	unitSuffix = regexp.MustCompile(`\s*(mm|%|°C|C)$`)
	numeric    = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// Normalize classifies a raw textual setting value. Rules, first match wins:
//
//  1. A trailing unit (mm, %, °C, C) is stripped for classification only.
//  2. A value containing '%' yields its number truncated to an integer.
//  3. true/yes/1/on and false/no/0/off (any case) yield booleans.
//  4. Numbers yield a float when they contain '.', an integer otherwise.
//  5. Anything else is returned as the trimmed original string.
func Normalize(raw string) Value {
	original := strings.TrimSpace(raw)
	stripped := unitSuffix.ReplaceAllString(original, "")

	if strings.Contains(original, "%") {
		pct := strings.TrimSpace(strings.ReplaceAll(stripped, "%", ""))
		if numeric.MatchString(pct) {
			if f, err := strconv.ParseFloat(pct, 64); err == nil {
				return IntValue(truncInt(f))
			}
		}
	}

	switch strings.ToLower(stripped) {
	case "true", "yes", "1", "on":
		return BoolValue(true)
	case "false", "no", "0", "off":
		return BoolValue(false)
	}

	if numeric.MatchString(stripped) {
		if strings.Contains(stripped, ".") {
			if f, err := strconv.ParseFloat(stripped, 64); err == nil {
				return FloatValue(f)
			}
		} else {
			if i, err := strconv.ParseInt(stripped, 10, 64); err == nil {
				return IntValue(i)
			}
			// Exponent forms and integers beyond int64.
			if f, err := strconv.ParseFloat(stripped, 64); err == nil {
				return IntValue(truncInt(f))
			}
		}
	}

	return StringValue(original)
}

// truncInt truncates toward zero, saturating at the int64 bounds.
func truncInt(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
