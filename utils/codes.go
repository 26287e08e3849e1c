package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// No 0/O or 1/I so codes survive being read aloud at a till.
	couponCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	digitCharset  = "0123456789"

	CouponCodePrefix = "EARLY-"
	couponCodeLength = 8
)

// GenerateCouponCode returns a code like EARLY-7K2MQX9A.
func GenerateCouponCode() string {
	return CouponCodePrefix + generateRandom(couponCodeLength, couponCharset)
}

// GenerateFetchCode returns 16 digits in four dash separated groups,
// e.g. 4821-0937-1156-7702.
func GenerateFetchCode() string {
	groups := make([]string, 4)
	for i := range groups {
		groups[i] = generateRandom(4, digitCharset)
	}
	return strings.Join(groups, "-")
}

// NormalizeFetchCode strips whitespace and accepts the code with or without dashes.
func NormalizeFetchCode(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '-' || r == ' ':
		default:
			return "", false
		}
	}
	d := digits.String()
	if len(d) != 16 {
		return "", false
	}
	return d[0:4] + "-" + d[4:8] + "-" + d[8:12] + "-" + d[12:16], true
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, _ := rand.Int(rand.Reader, charsetLength)
		result[i] = charset[num.Int64()]
	}

	return string(result)
}
