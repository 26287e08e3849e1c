package utils

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultQRBaseURL = "https://earlyshh.com"

// BuildQRPayload is the URL the in-store scanner resolves to a coupon.
func BuildQRPayload(baseURL, code string) string {
	if baseURL == "" {
		baseURL = DefaultQRBaseURL
	}
	return fmt.Sprintf("%s/coupon/%s", strings.TrimRight(baseURL, "/"), code)
}

// EncodeQRCodePNG renders content as a 256px PNG and returns it base64 encoded.
func EncodeQRCodePNG(content string) (string, error) {
	pngBytes, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pngBytes), nil
}
