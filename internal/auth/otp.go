package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

const (
	otpMin = 100000
	otpMax = 999999
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// GenerateOTP returns a uniformly random six-digit code in 100000-999999.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", fmt.Errorf("generate one-time code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}
