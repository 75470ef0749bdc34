package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/model"
	"github.com/stellr/server/internal/repo"
)

const otpAttempts = 5

// OtpManager runs the one-time-passcode challenge state machine per phone:
// issue replaces any live challenge, verify walks pending through
// verified, expired, or locked. Expiry is evaluated lazily at verification
// time; stale rows wait for the next issue, there is no sweeper.
type OtpManager struct {
	otpRepo repo.OtpRepo
	sender  NotificationSender
	salt    string
	ttl     time.Duration
}

// NewOtpManager creates a new OTP challenge manager
func NewOtpManager(otpRepo repo.OtpRepo, sender NotificationSender, salt string, ttl time.Duration) *OtpManager {
	return &OtpManager{
		otpRepo: otpRepo,
		sender:  sender,
		salt:    salt,
		ttl:     ttl,
	}
}

// Issue generates a fresh 6-digit code for the phone, replaces any prior
// live challenge, and hands the code to the NotificationSender. Only the salted
// hash is stored; a delivery failure is logged and reported to the caller
// but the challenge stays valid.
func (m *OtpManager) Issue(ctx context.Context, phone string) (model.OtpChallenge, error) {
	code, err := generateOtpCode()
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("generate code: %w", err)
	}

	expiresAt := time.Now().Add(m.ttl)
	hashHex := hashOtpHex(phone, code, m.salt)

	ch, err := m.otpRepo.CreateOrReplace(ctx, phone, hashHex, expiresAt, otpAttempts)
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("create challenge: %w", err)
	}

	if err := m.sender.SendOtp(ctx, phone, code); err != nil {
		log.Printf("OTP delivery to %s failed: %v", MaskPhone(phone), err)
	}
	return ch, nil
}

// Verify checks the code against the live challenge for the phone.
// Outcomes, in precedence order: no challenge, replay of a verified code,
// locked after attempt exhaustion, expired, mismatch (which costs an
// attempt and can lock), match (which consumes the challenge).
func (m *OtpManager) Verify(ctx context.Context, phone, code string) error {
	ch, err := m.otpRepo.GetLatestByPhone(ctx, phone)
	if err != nil {
		return errs.ErrOtpNotFound
	}

	if ch.VerifiedAt != nil {
		return errs.ErrOtpConsumed
	}
	if ch.ConsumedAt != nil {
		// superseded by a later issue that has since been cleaned up
		return errs.ErrOtpNotFound
	}
	if ch.AttemptsRemaining <= 0 {
		// fail fast without touching the stored code
		return errs.ErrOtpLocked
	}
	if time.Now().After(ch.ExpiresAt) {
		return errs.ErrOtpExpired
	}

	provided := hashOtpBytes(phone, code, m.salt)
	if subtle.ConstantTimeCompare(provided, ch.CodeHash) != 1 {
		remaining, decErr := m.otpRepo.DecrementAttempts(ctx, ch.ID)
		if decErr != nil {
			return fmt.Errorf("record attempt: %w", decErr)
		}
		if remaining <= 0 {
			return errs.ErrOtpLocked
		}
		return errs.ErrOtpInvalidCode
	}

	if err := m.otpRepo.MarkVerified(ctx, ch.ID); err != nil {
		// lost a race with another verification of the same code
		return errs.ErrOtpConsumed
	}
	return nil
}

// generateOtpCode returns a cryptographically random 6-digit code
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// hashOtpHex returns SHA-256(phone:code:salt) as hex for storage
func hashOtpHex(phone, code, salt string) string {
	return hex.EncodeToString(hashOtpBytes(phone, code, salt))
}

func hashOtpBytes(phone, code, salt string) []byte {
	data := fmt.Sprintf("%s:%s:%s", phone, code, salt)
	hash := sha256.Sum256([]byte(data))
	return hash[:]
}
