package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomInt returns a uniformly distributed integer in [min, max].
func RandomInt(min, max int64) (int64, error) {
	if max < min {
		return 0, fmt.Errorf("invalid range [%d, %d]", min, max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}

// NumericCode returns a zero-padded decimal code of the given length.
func NumericCode(digits int) (string, error) {
	var b strings.Builder
	b.Grow(digits)
	for i := 0; i < digits; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

func ReferralCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(referralAlphabet)))
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(referralAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
