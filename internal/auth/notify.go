package auth

import (
	"context"
	"log"
	"strings"
)

// NotificationSender delivers OTP codes out-of-band. Real SMS/email
// transports live behind this interface; delivery failure never invalidates
// the challenge itself.
type NotificationSender interface {
	SendOtp(ctx context.Context, phone, code string) error
}

// LogSender is the development transport: it logs that a code was sent
// without ever logging the code or the full phone number.
type LogSender struct{}

// SendOtp logs the delivery with a masked phone number
func (LogSender) SendOtp(ctx context.Context, phone, code string) error {
	log.Printf("OTP sent to %s", MaskPhone(phone))
	return nil
}

// MaskPhone masks a phone number for logging (e.g., +49******89)
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	prefix := phone[:2]
	suffix := phone[len(phone)-2:]
	return prefix + strings.Repeat("*", len(phone)-4) + suffix
}
