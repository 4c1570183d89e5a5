//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseProfessionalID checks parsing never panics and valid IDs round-trip.
func FuzzParseProfessionalID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE professionals;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseProfessionalID(input)
		if err == nil {
			roundTrip, err2 := ParseProfessionalID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzCredentialIDFromRaw checks every encoding is accepted by the parser
// and decodes back to the same bytes.
func FuzzCredentialIDFromRaw(f *testing.F) {
	f.Add([]byte{0x01})
	f.Add([]byte{0xfb, 0xff, 0xfe})
	f.Add([]byte("credential"))

	f.Fuzz(func(t *testing.T, raw []byte) {
		if len(raw) == 0 || len(raw) > 1023 {
			return
		}
		id := CredentialIDFromRaw(raw)
		parsed, err := ParseCredentialID(id.String())
		if err != nil {
			t.Fatalf("encoded id rejected: %v", err)
		}
		decoded, err := parsed.Raw()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(decoded) != string(raw) {
			t.Error("round-trip changed credential bytes")
		}
	})
}
