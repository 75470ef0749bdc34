package repo

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/model"
)

// OtpRepo defines the storage capability for OTP challenges
type OtpRepo interface {
	CreateOrReplace(ctx context.Context, phone, codeHashHex string, expiresAt time.Time, attempts int) (model.OtpChallenge, error)
	GetLatestByPhone(ctx context.Context, phone string) (model.OtpChallenge, error)
	DecrementAttempts(ctx context.Context, challengeID uuid.UUID) (remaining int, err error)
	MarkVerified(ctx context.Context, challengeID uuid.UUID) error
}

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a new OtpRepo instance
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

// CreateOrReplace ensures only one live challenge per phone: atomically
// consumes any existing challenge (consumed_at IS NULL) and inserts a new
// one. Uses an advisory lock to serialize issuance per phone, otherwise two
// concurrent issues could both pass the partial unique index.
func (r *otpRepo) CreateOrReplace(ctx context.Context, phone, codeHashHex string, expiresAt time.Time, attempts int) (model.OtpChallenge, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Blocks until we hold the lock; released on COMMIT/ROLLBACK.
	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, phone)
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("advisory lock: %w", err)
	}

	// Supersede any existing live challenge, including expired or locked ones.
	_, err = tx.ExecContext(ctx, `
		UPDATE otp_challenges
		SET consumed_at = now()
		WHERE phone = $1 AND consumed_at IS NULL
	`, phone)
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("consume existing challenges: %w", err)
	}

	var ch model.OtpChallenge
	var idStr string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO otp_challenges (phone, code_hash, expires_at, attempts_remaining)
		VALUES ($1, $2, $3, $4)
		RETURNING id, issued_at
	`, phone, codeHashHex, expiresAt, attempts).Scan(&idStr, &ch.IssuedAt)
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("insert challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.OtpChallenge{}, fmt.Errorf("commit: %w", err)
	}

	ch.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("parse challenge ID: %w", err)
	}
	ch.Phone = phone
	ch.CodeHash, _ = hex.DecodeString(codeHashHex)
	ch.ExpiresAt = expiresAt
	ch.AttemptsRemaining = attempts
	return ch, nil
}

// GetLatestByPhone returns the most recent challenge for the phone in any
// state; the manager derives pending/expired/locked/consumed from the row.
func (r *otpRepo) GetLatestByPhone(ctx context.Context, phone string) (model.OtpChallenge, error) {
	var ch model.OtpChallenge
	var idStr string
	var codeHashHex string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, code_hash, issued_at, expires_at, attempts_remaining, consumed_at, verified_at
		FROM otp_challenges
		WHERE phone = $1
		ORDER BY issued_at DESC
		LIMIT 1
	`, phone).Scan(
		&idStr,
		&ch.Phone,
		&codeHashHex,
		&ch.IssuedAt,
		&ch.ExpiresAt,
		&ch.AttemptsRemaining,
		&ch.ConsumedAt,
		&ch.VerifiedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.OtpChallenge{}, fmt.Errorf("no challenge: %w", err)
		}
		return model.OtpChallenge{}, fmt.Errorf("query challenge: %w", err)
	}

	ch.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("parse challenge ID: %w", err)
	}
	ch.CodeHash, err = hex.DecodeString(codeHashHex)
	if err != nil {
		return model.OtpChallenge{}, fmt.Errorf("decode code_hash: %w", err)
	}
	return ch, nil
}

// DecrementAttempts subtracts one attempt and returns the remaining count.
func (r *otpRepo) DecrementAttempts(ctx context.Context, challengeID uuid.UUID) (int, error) {
	var remaining int
	err := r.db.QueryRowContext(ctx, `
		UPDATE otp_challenges
		SET attempts_remaining = attempts_remaining - 1
		WHERE id = $1 AND attempts_remaining > 0
		RETURNING attempts_remaining
	`, challengeID).Scan(&remaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("challenge not found or exhausted")
		}
		return 0, fmt.Errorf("decrement attempts: %w", err)
	}
	return remaining, nil
}

// MarkVerified consumes the challenge on a successful match. The
// consumed_at guard makes success single-use: a second caller racing the
// same code affects zero rows.
func (r *otpRepo) MarkVerified(ctx context.Context, challengeID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otp_challenges
		SET consumed_at = now(), verified_at = now()
		WHERE id = $1 AND consumed_at IS NULL
	`, challengeID)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("challenge already consumed")
	}
	return nil
}
