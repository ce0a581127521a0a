package auth

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP helpers for admin accounts (SPEC_FULL.md C2): secret generation,
// code validation and enrollment QR rendering. No login path calls
// ValidateTOTPCode; the web/admin websocket checks only the bearer token
// and the admin flag.

// GenerateTOTPSecret provisions a new TOTP secret for an admin account.
func GenerateTOTPSecret(issuer, accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
}

// ValidateTOTPCode checks a 6-digit code against the stored secret.
func ValidateTOTPCode(secret, code string) bool {
	return totp.Validate(code, secret)
}

// EnrollmentImagePNG renders the provisioning URI as a QR code PNG via
// boombuler/barcode (SPEC_FULL.md DOMAIN STACK).
func EnrollmentImagePNG(key *otp.Key, size int) ([]byte, error) {
	img, err := key.Image(size, size)
	if err != nil {
		bc, err := qr.Encode(key.String(), qr.M, qr.Auto)
		if err != nil {
			return nil, fmt.Errorf("auth: encode qr: %w", err)
		}
		img, err = barcode.Scale(bc, size, size)
		if err != nil {
			return nil, fmt.Errorf("auth: scale qr: %w", err)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("auth: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EnrollmentTerminalArt renders the provisioning URI as a terminal-friendly
// ASCII QR code via skip2/go-qrcode, printed alongside the PNG by the
// `metaserverd totp enroll` CLI command (SPEC_FULL.md DOMAIN STACK).
func EnrollmentTerminalArt(key *otp.Key) (string, error) {
	q, err := qrcode.New(key.String(), qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("auth: encode terminal qr: %w", err)
	}
	return q.ToSmallString(false), nil
}
