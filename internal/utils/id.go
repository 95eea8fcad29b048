package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewMessageID returns a random UUID used as a message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// NewRoomID returns a random numeric identifier with exactly digits digits
// and no leading zero. Digits below 1 are treated as 1.
func NewRoomID(digits int) string {
	if digits < 1 {
		digits = 1
	}

	var b strings.Builder
	b.Grow(digits)
	for i := 0; i < digits; i++ {
		lo, span := int64(0), int64(10)
		if i == 0 && digits > 1 {
			lo, span = 1, 9
		}
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			// Fallback to the clock if crypto/rand is unavailable.
			n = big.NewInt(time.Now().UnixNano() % span)
		}
		b.WriteString(strconv.FormatInt(lo+n.Int64(), 10))
	}
	return b.String()
}
