package utils

import (
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCouponCode(t *testing.T) {
	pattern := regexp.MustCompile(`^EARLY-[A-HJ-NP-Z2-9]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateCouponCode()
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 195)
}

func TestGenerateFetchCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{4}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, pattern, GenerateFetchCode())
	}
}

func TestNormalizeFetchCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1234-5678-9012-3456", "1234-5678-9012-3456", true},
		{"1234567890123456", "1234-5678-9012-3456", true},
		{" 1234 5678 9012 3456 ", "1234-5678-9012-3456", true},
		{"1234-5678-9012", "", false},
		{"1234-5678-9012-345X", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeFetchCode(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestBuildQRPayload(t *testing.T) {
	assert.Equal(t, "https://earlyshh.com/coupon/EARLY-ABCDEFGH", BuildQRPayload("", "EARLY-ABCDEFGH"))
	assert.Equal(t, "https://x.dev/coupon/C1", BuildQRPayload("https://x.dev/", "C1"))
}

func TestEncodeQRCodePNG(t *testing.T) {
	encoded, err := EncodeQRCodePNG("https://earlyshh.com/coupon/EARLY-ABCDEFGH")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), raw[:4])
}

func TestDistanceKm(t *testing.T) {
	// Brandenburg Gate to Alexanderplatz is roughly 2.5km.
	d := DistanceKm(52.5163, 13.3777, 52.5219, 13.4132)
	assert.InDelta(t, 2.5, d, 0.3)
	assert.Zero(t, DistanceKm(1, 1, 1, 1))
	assert.True(t, IsWithinRadius(52.5163, 13.3777, 52.5219, 13.4132, 5))
	assert.False(t, IsWithinRadius(52.5163, 13.3777, 48.1351, 11.5820, 5))
}
