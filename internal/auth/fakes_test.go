package auth

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/model"
	"github.com/stellr/server/internal/repo"
)

// fakeIdentityRepo is an in-memory IdentityRepo honoring the same
// uniqueness rules as the partial indexes.
type fakeIdentityRepo struct {
	mu         sync.Mutex
	identities map[uuid.UUID]model.Identity
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{identities: make(map[uuid.UUID]model.Identity)}
}

func (f *fakeIdentityRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ident, ok := f.identities[id]
	if !ok {
		return model.Identity{}, fmt.Errorf("%w: identity", errs.ErrNotFound)
	}
	return ident, nil
}

func (f *fakeIdentityRepo) GetByEmail(ctx context.Context, email string) (model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ident := range f.identities {
		if ident.Email != nil && *ident.Email == email {
			return ident, nil
		}
	}
	return model.Identity{}, fmt.Errorf("%w: identity", errs.ErrNotFound)
}

func (f *fakeIdentityRepo) GetByPhone(ctx context.Context, phone string) (model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ident := range f.identities {
		if ident.Phone != nil && *ident.Phone == phone {
			return ident, nil
		}
	}
	return model.Identity{}, fmt.Errorf("%w: identity", errs.ErrNotFound)
}

func (f *fakeIdentityRepo) GetOrCreateByPhone(ctx context.Context, phone string) (model.Identity, error) {
	if ident, err := f.GetByPhone(ctx, phone); err == nil {
		return ident, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	ident := model.Identity{ID: uuid.New(), Phone: &phone, CreatedAt: now, UpdatedAt: now}
	f.identities[ident.ID] = ident
	return ident, nil
}

func (f *fakeIdentityRepo) Create(ctx context.Context, attrs repo.CreateIdentity) (model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ident := range f.identities {
		if attrs.Email != nil && ident.Email != nil && *ident.Email == *attrs.Email {
			return model.Identity{}, fmt.Errorf("%w: users_email_key", errs.ErrConflict)
		}
		if attrs.Phone != nil && ident.Phone != nil && *ident.Phone == *attrs.Phone {
			return model.Identity{}, fmt.Errorf("%w: users_phone_key", errs.ErrConflict)
		}
	}
	now := time.Now()
	ident := model.Identity{
		ID:           uuid.New(),
		Email:        attrs.Email,
		Phone:        attrs.Phone,
		PasswordHash: attrs.PasswordHash,
		FirstName:    attrs.FirstName,
		LastName:     attrs.LastName,
		IsOnboarded:  attrs.IsOnboarded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.identities[ident.ID] = ident
	return ident, nil
}

func (f *fakeIdentityRepo) Update(ctx context.Context, id uuid.UUID, patch repo.IdentityPatch) (model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ident, ok := f.identities[id]
	if !ok {
		return model.Identity{}, fmt.Errorf("%w: identity", errs.ErrNotFound)
	}
	for otherID, other := range f.identities {
		if otherID == id {
			continue
		}
		if patch.Email != nil && other.Email != nil && *other.Email == *patch.Email {
			return model.Identity{}, fmt.Errorf("%w: users_email_key", errs.ErrConflict)
		}
		if patch.Phone != nil && other.Phone != nil && *other.Phone == *patch.Phone {
			return model.Identity{}, fmt.Errorf("%w: users_phone_key", errs.ErrConflict)
		}
	}
	if patch.Email != nil {
		ident.Email = patch.Email
	}
	if patch.Phone != nil {
		ident.Phone = patch.Phone
	}
	if patch.FirstName != nil {
		ident.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		ident.LastName = *patch.LastName
	}
	if patch.Avatar != nil {
		ident.Avatar = patch.Avatar
	}
	if patch.IsOnboarded != nil {
		ident.IsOnboarded = *patch.IsOnboarded
	}
	ident.UpdatedAt = time.Now()
	f.identities[id] = ident
	return ident, nil
}

// fakeOtpRepo mirrors the single-live-challenge semantics in memory.
type fakeOtpRepo struct {
	mu         sync.Mutex
	challenges map[string][]model.OtpChallenge // keyed by phone, append-only
}

func newFakeOtpRepo() *fakeOtpRepo {
	return &fakeOtpRepo{challenges: make(map[string][]model.OtpChallenge)}
}

func (f *fakeOtpRepo) CreateOrReplace(ctx context.Context, phone, codeHashHex string, expiresAt time.Time, attempts int) (model.OtpChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for i := range f.challenges[phone] {
		if f.challenges[phone][i].ConsumedAt == nil {
			t := now
			f.challenges[phone][i].ConsumedAt = &t
		}
	}
	hash, _ := hex.DecodeString(codeHashHex)
	ch := model.OtpChallenge{
		ID:                uuid.New(),
		Phone:             phone,
		CodeHash:          hash,
		IssuedAt:          now,
		ExpiresAt:         expiresAt,
		AttemptsRemaining: attempts,
	}
	f.challenges[phone] = append(f.challenges[phone], ch)
	return ch, nil
}

func (f *fakeOtpRepo) GetLatestByPhone(ctx context.Context, phone string) (model.OtpChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.challenges[phone]
	if len(list) == 0 {
		return model.OtpChallenge{}, fmt.Errorf("no challenge")
	}
	return list[len(list)-1], nil
}

func (f *fakeOtpRepo) find(id uuid.UUID) *model.OtpChallenge {
	for phone := range f.challenges {
		for i := range f.challenges[phone] {
			if f.challenges[phone][i].ID == id {
				return &f.challenges[phone][i]
			}
		}
	}
	return nil
}

func (f *fakeOtpRepo) DecrementAttempts(ctx context.Context, challengeID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.find(challengeID)
	if ch == nil || ch.AttemptsRemaining <= 0 {
		return 0, fmt.Errorf("challenge not found or exhausted")
	}
	ch.AttemptsRemaining--
	return ch.AttemptsRemaining, nil
}

func (f *fakeOtpRepo) MarkVerified(ctx context.Context, challengeID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.find(challengeID)
	if ch == nil || ch.ConsumedAt != nil {
		return fmt.Errorf("challenge already consumed")
	}
	now := time.Now()
	ch.ConsumedAt = &now
	ch.VerifiedAt = &now
	return nil
}

// recordingSender captures the codes handed to the transport.
type recordingSender struct {
	mu    sync.Mutex
	codes []string
	fail  bool
}

func (s *recordingSender) SendOtp(ctx context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, code)
	if s.fail {
		return fmt.Errorf("sms gateway unavailable")
	}
	return nil
}

func (s *recordingSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return ""
	}
	return s.codes[len(s.codes)-1]
}
