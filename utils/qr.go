package utils

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// GenerateQRCodePNG renders a token payload as a PNG QR image for
// point-of-sale display. Presentation only — the payload itself carries the
// signed redemption claims.
func GenerateQRCodePNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
