package agent

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const fallbackPrefix = "did:prism:"

// newFallbackDID builds did:prism:<unix-millis><base36 random>. Agent-issued
// PRISM DIDs carry a 64 hex character suffix, so the two never collide.
func newFallbackDID(now time.Time) string {
	random := strconv.FormatUint(rand.Uint64(), 36)
	return fallbackPrefix + strconv.FormatInt(now.UnixMilli(), 10) + random
}

// IsFallbackDID reports whether did was generated locally by CreateDID's fallback.
func IsFallbackDID(did string) bool {
	suffix, ok := strings.CutPrefix(did, fallbackPrefix)
	if !ok || strings.Contains(suffix, ":") {
		return false
	}
	const millisDigits = 13
	if len(suffix) <= millisDigits || len(suffix) >= 64 {
		return false
	}
	for i, r := range suffix {
		isDigit := r >= '0' && r <= '9'
		if i < millisDigits && !isDigit {
			return false
		}
		if !isDigit && !(r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}
