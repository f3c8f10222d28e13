//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseUserID checks that parsing never panics and accepted ids round-trip.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("u1")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)
		if err == nil {
			again, err2 := ParseUserID(id.String())
			if err2 != nil || again != id {
				t.Errorf("accepted id failed round-trip: %q", input)
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseDID checks the generic DID grammar never panics and accepted values
// always expose a non-empty method.
func FuzzParseDID(f *testing.F) {
	f.Add("did:peer:abc")
	f.Add("did:prism:1234")
	f.Add("did::")
	f.Add("not a did")

	f.Fuzz(func(t *testing.T, input string) {
		did, err := ParseDID(input)
		if err == nil && did.Method() == "" {
			t.Errorf("accepted did without method: %q", input)
		}
	})
}
