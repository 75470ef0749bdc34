package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/model"
)

// mapPqError translates Postgres constraint violations into the error
// taxonomy. Uniqueness races resolve here: the row that loses the insert
// race surfaces as a conflict, never as a duplicate row.
func mapPqError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", errs.ErrConflict, pqErr.Constraint)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", errs.ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}

// CreateIdentity holds the attributes for a new identity row.
type CreateIdentity struct {
	Email        *string
	Phone        *string
	PasswordHash *string
	FirstName    string
	LastName     string
	IsOnboarded  bool
}

// IdentityPatch holds optional field updates; nil fields are left untouched.
type IdentityPatch struct {
	Email       *string
	Phone       *string
	FirstName   *string
	LastName    *string
	Avatar      *string
	IsOnboarded *bool
}

// IdentityRepo defines the storage capability for identities
type IdentityRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Identity, error)
	GetByEmail(ctx context.Context, email string) (model.Identity, error)
	GetByPhone(ctx context.Context, phone string) (model.Identity, error)
	GetOrCreateByPhone(ctx context.Context, phone string) (model.Identity, error)
	Create(ctx context.Context, attrs CreateIdentity) (model.Identity, error)
	Update(ctx context.Context, id uuid.UUID, patch IdentityPatch) (model.Identity, error)
}

type identityRepo struct {
	db *sql.DB
}

// NewIdentityRepo creates a new IdentityRepo instance
func NewIdentityRepo(db *sql.DB) IdentityRepo {
	return &identityRepo{db: db}
}

const identityColumns = `id, email, phone, password_hash, first_name, last_name, avatar, is_onboarded, created_at, updated_at`

func scanIdentity(row *sql.Row) (model.Identity, error) {
	var ident model.Identity
	var idStr string
	err := row.Scan(
		&idStr,
		&ident.Email,
		&ident.Phone,
		&ident.PasswordHash,
		&ident.FirstName,
		&ident.LastName,
		&ident.Avatar,
		&ident.IsOnboarded,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Identity{}, fmt.Errorf("%w: identity", errs.ErrNotFound)
		}
		return model.Identity{}, fmt.Errorf("query identity: %w", err)
	}
	ident.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Identity{}, fmt.Errorf("parse identity ID: %w", err)
	}
	return ident, nil
}

// GetByID retrieves an identity by ID
func (r *identityRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Identity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM users WHERE id = $1
	`, id)
	return scanIdentity(row)
}

// GetByEmail retrieves an identity by normalized email
func (r *identityRepo) GetByEmail(ctx context.Context, email string) (model.Identity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM users WHERE email = $1
	`, email)
	return scanIdentity(row)
}

// GetByPhone retrieves an identity by canonical phone number
func (r *identityRepo) GetByPhone(ctx context.Context, phone string) (model.Identity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM users WHERE phone = $1
	`, phone)
	return scanIdentity(row)
}

// GetOrCreateByPhone retrieves an identity by phone or creates one if it
// doesn't exist. The insert races cleanly: ON CONFLICT DO NOTHING means two
// concurrent calls converge on the same row.
func (r *identityRepo) GetOrCreateByPhone(ctx context.Context, phone string) (model.Identity, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (phone)
		VALUES ($1)
		ON CONFLICT (phone) WHERE phone IS NOT NULL DO NOTHING
	`, phone)
	if err != nil {
		return model.Identity{}, fmt.Errorf("insert identity: %w", err)
	}
	return r.GetByPhone(ctx, phone)
}

// Create persists a new identity. A duplicate email or phone surfaces as a
// conflict from the partial unique indexes; there is no read-then-write.
func (r *identityRepo) Create(ctx context.Context, attrs CreateIdentity) (model.Identity, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, phone, password_hash, first_name, last_name, is_onboarded)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+identityColumns+`
	`, attrs.Email, attrs.Phone, attrs.PasswordHash, attrs.FirstName, attrs.LastName, attrs.IsOnboarded)
	ident, err := scanIdentity(row)
	if err != nil {
		return model.Identity{}, mapPqError(err)
	}
	return ident, nil
}

// Update applies the non-nil fields of patch. A patched email/phone that
// collides with a different identity surfaces as a conflict.
func (r *identityRepo) Update(ctx context.Context, id uuid.UUID, patch IdentityPatch) (model.Identity, error) {
	set := make([]string, 0, 7)
	args := []interface{}{id}
	next := 2

	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, next))
		args = append(args, value)
		next++
	}

	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.Avatar != nil {
		add("avatar", *patch.Avatar)
	}
	if patch.IsOnboarded != nil {
		add("is_onboarded", *patch.IsOnboarded)
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}
	set = append(set, "updated_at = now()")

	query := `UPDATE users SET ` + strings.Join(set, ", ") + ` WHERE id = $1 RETURNING ` + identityColumns
	row := r.db.QueryRowContext(ctx, query, args...)
	ident, err := scanIdentity(row)
	if err != nil {
		return model.Identity{}, mapPqError(err)
	}
	return ident, nil
}
