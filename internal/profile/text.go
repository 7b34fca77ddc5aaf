package profile

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText turns a config payload into a UTF-8 string. A UTF-8 or UTF-16
// byte order mark selects the encoding and is dropped; otherwise the payload
// is read as UTF-8 with invalid sequences replaced.
func decodeText(raw []byte) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(out)
}

// lines splits text on newlines. Carriage returns are left for the caller's trim.
func lines(text string) []string {
	return strings.Split(text, "\n")
}
