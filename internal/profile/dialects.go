package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Canonical setting names shared by every dialect.
const (
	KeyLayerHeight      = "layer_height"
	KeyFirstLayerHeight = "first_layer_height"
	KeyInfillPercentage = "infill_percentage"
	KeySupportsRequired = "supports_required"
	KeyNozzleTemp       = "nozzle_temp"
	KeyBedTemp          = "bed_temp"
	KeyPrintSpeed       = "print_speed"
	KeyTravelSpeed      = "travel_speed"
)

// gcodeKeys translates G-code comment keys. Keys not listed are dropped.
var gcodeKeys = map[string]string{
	"layer_height":       KeyLayerHeight,
	"first_layer_height": KeyFirstLayerHeight,
	"infill_density":     KeyInfillPercentage,
	"fill_density":       KeyInfillPercentage,
	"support_material":   KeySupportsRequired,
	"support_enable":     KeySupportsRequired,
	"nozzle_temperature": KeyNozzleTemp,
	"bed_temperature":    KeyBedTemp,
	"print_speed":        KeyPrintSpeed,
	"travel_speed":       KeyTravelSpeed,
}

// bambuKeys translates Bambu Studio JSON keys (structured form only).
var bambuKeys = map[string]string{
	"layer_height":          KeyLayerHeight,
	"sparse_infill_density": KeyInfillPercentage,
	"enable_support":        KeySupportsRequired,
	"nozzle_temperature":    KeyNozzleTemp,
	"bed_temperature":       KeyBedTemp,
}

// prusaKeys renames PrusaSlicer/SuperSlicer keys. Keys not listed pass through.
var prusaKeys = map[string]string{
	"layer_height":       KeyLayerHeight,
	"first_layer_height": KeyFirstLayerHeight,
	"fill_density":       KeyInfillPercentage,
	"support_material":   KeySupportsRequired,
	"temperature":        KeyNozzleTemp,
	"bed_temperature":    KeyBedTemp,
	"perimeter_speed":    KeyPrintSpeed,
}

var (
	commentPair = regexp.MustCompile(`^;\s*(\w+)\s*=\s*(.+)`)
	iniPair     = regexp.MustCompile(`^(\w+)\s*=\s*(.+)`)
)

// DecodeGcode scans G-code comment lines of the form "; key = value" and
// keeps only keys with a canonical translation.
func DecodeGcode(raw []byte) Settings {
	out := Settings{}
	for _, line := range lines(decodeText(raw)) {
		m := commentPair.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if key, ok := gcodeKeys[m[1]]; ok {
			out[key] = Normalize(m[2])
		}
	}
	return out
}

// DecodePrusa scans "key = value" lines. Known keys are renamed to their
// canonical form; every other key is kept verbatim.
func DecodePrusa(raw []byte) Settings {
	out := Settings{}
	for _, line := range lines(decodeText(raw)) {
		m := iniPair.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		key := m[1]
		if canonical, ok := prusaKeys[key]; ok {
			key = canonical
		}
		out[key] = Normalize(m[2])
	}
	return out
}

// DecodeBambu decodes a Bambu Studio config. A JSON object payload yields
// the translated keys only; anything else is scanned as "key = value" lines
// with keys kept as they are.
func DecodeBambu(raw []byte) Settings {
	s, _ := decodeBambu(raw)
	return s
}

// decodeBambu also reports why the structured form was rejected, if it was.
func decodeBambu(raw []byte) (Settings, error) {
	text := decodeText(raw)
	attempt := decodeStructured(text)
	if attempt.err != nil {
		return decodeLines(text), attempt.err
	}

	out := Settings{}
	for src, key := range bambuKeys {
		v, ok := attempt.fields[src]
		if !ok {
			continue
		}
		if s, ok := jsonScalar(v); ok {
			out[key] = Normalize(s)
		}
	}
	return out, nil
}

// errNotObject marks a payload that is valid JSON but carries no key/value pairs.
var errNotObject = errors.New("payload is not a non-empty JSON object")

// structuredAttempt is the outcome of trying the structured form of a payload.
// A non-nil err selects the line-oriented fallback.
type structuredAttempt struct {
	fields map[string]json.RawMessage
	err    error
}

func decodeStructured(text string) structuredAttempt {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return structuredAttempt{err: fmt.Errorf("decode json: %w", err)}
	}
	if len(fields) == 0 {
		return structuredAttempt{err: errNotObject}
	}
	return structuredAttempt{fields: fields}
}

// decodeLines is the untranslated INI-style scan used as the Bambu fallback.
func decodeLines(text string) Settings {
	out := Settings{}
	for _, line := range lines(text) {
		m := iniPair.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out[m[1]] = Normalize(m[2])
	}
	return out
}

// jsonScalar renders a JSON value as the raw text Normalize expects. Arrays
// (Bambu stores per-extruder lists) contribute their first scalar element.
// Objects and null contribute nothing.
func jsonScalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return "", false
		}
		if t := bytes.TrimSpace(items[0]); len(t) > 0 && t[0] == '[' {
			return "", false
		}
		return jsonScalar(items[0])
	case '{', 'n':
		return "", false
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	default:
		return string(raw), true
	}
}
