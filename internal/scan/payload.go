package scan

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParsePayload extracts the id-card number from a scanned payload. The
// payload must be a JSON object whose id_card_number is a non-empty string or
// a non-zero number; anything else is malformed and ok is false. The result is NFC
// normalized and trimmed.
func ParsePayload(raw string) (code string, ok bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return "", false
	}
	if dec.More() {
		return "", false
	}

	field, found := obj["id_card_number"]
	if !found {
		return "", false
	}
	field = bytes.TrimSpace(field)

	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		s = strings.TrimSpace(norm.NFC.String(s))
		return s, s != ""
	}

	var n json.Number
	fdec := json.NewDecoder(bytes.NewReader(field))
	fdec.UseNumber()
	if err := fdec.Decode(&n); err == nil {
		if f, err := n.Float64(); err == nil && f == 0 {
			return "", false
		}
		return n.String(), true
	}
	return "", false
}
