package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const DefaultLength = 6

var ten = big.NewInt(10)

// Generate returns a numeric code of the given length. Each digit is drawn
// independently from r, so leading zeros are kept.
func Generate(r io.Reader, length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(r, ten)
		if err != nil {
			return "", fmt.Errorf("otp: generate digit: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
