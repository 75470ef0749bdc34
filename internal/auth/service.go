package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/model"
	"github.com/stellr/server/internal/repo"
)

// AuthService orchestrates identity resolution, OTP challenges, and
// session issuance. It is the entry point the HTTP layer consumes.
type AuthService struct {
	identityRepo repo.IdentityRepo
	otpManager   *OtpManager
	jwtService   *JWTService
}

// NewAuthService creates a new auth service
func NewAuthService(identityRepo repo.IdentityRepo, otpManager *OtpManager, jwtService *JWTService) *AuthService {
	return &AuthService{
		identityRepo: identityRepo,
		otpManager:   otpManager,
		jwtService:   jwtService,
	}
}

// Resolve classifies the credential as email or phone, normalizes it, and
// looks up the matching identity.
func (s *AuthService) Resolve(ctx context.Context, credential string) (model.Identity, error) {
	kind, normalized, err := ClassifyCredential(credential)
	if err != nil {
		return model.Identity{}, err
	}
	if kind == CredentialEmail {
		return s.identityRepo.GetByEmail(ctx, normalized)
	}
	return s.identityRepo.GetByPhone(ctx, normalized)
}

// RegisterAttrs holds the registration input
type RegisterAttrs struct {
	Email     string
	Phone     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a new identity with a hashed password and issues a
// session. A duplicate email or phone surfaces as a conflict.
func (s *AuthService) Register(ctx context.Context, attrs RegisterAttrs) (model.Identity, string, error) {
	create := repo.CreateIdentity{
		FirstName: attrs.FirstName,
		LastName:  attrs.LastName,
		// the caller supplied a profile, so the identity starts onboarded
		IsOnboarded: true,
	}

	if attrs.Email == "" && attrs.Phone == "" {
		return model.Identity{}, "", fmt.Errorf("%w: email or phone is required", errs.ErrValidation)
	}
	if attrs.Email != "" {
		email := NormalizeEmail(attrs.Email)
		create.Email = &email
	}
	if attrs.Phone != "" {
		phone, err := NormalizePhone(attrs.Phone)
		if err != nil {
			return model.Identity{}, "", err
		}
		create.Phone = &phone
	}
	if attrs.Password != "" {
		hash, err := HashPassword(attrs.Password)
		if err != nil {
			return model.Identity{}, "", err
		}
		create.PasswordHash = &hash
	}

	ident, err := s.identityRepo.Create(ctx, create)
	if err != nil {
		return model.Identity{}, "", err
	}

	token, err := s.jwtService.Issue(ident)
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("issue session: %w", err)
	}
	return ident, token, nil
}

// LoginWithPassword resolves the credential and verifies the password
// hash. Unknown identities and wrong passwords are indistinguishable to
// the caller.
func (s *AuthService) LoginWithPassword(ctx context.Context, credential, password string) (model.Identity, string, error) {
	ident, err := s.Resolve(ctx, credential)
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("%w: invalid credentials", errs.ErrAuthentication)
	}
	if ident.PasswordHash == nil || !CheckPassword(password, *ident.PasswordHash) {
		return model.Identity{}, "", fmt.Errorf("%w: invalid credentials", errs.ErrAuthentication)
	}

	token, err := s.jwtService.Issue(ident)
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("issue session: %w", err)
	}
	return ident, token, nil
}

// StartPhoneLogin normalizes the phone and issues an OTP challenge
func (s *AuthService) StartPhoneLogin(ctx context.Context, phone string) error {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	if _, err := s.otpManager.Issue(ctx, normalized); err != nil {
		return err
	}
	return nil
}

// CompleteOtpLogin verifies the code, finds or creates the phone identity
// (first-time phone users start un-onboarded), and issues a session.
func (s *AuthService) CompleteOtpLogin(ctx context.Context, phone, code string) (model.Identity, string, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return model.Identity{}, "", err
	}

	if err := s.otpManager.Verify(ctx, normalized, code); err != nil {
		return model.Identity{}, "", err
	}

	ident, err := s.identityRepo.GetOrCreateByPhone(ctx, normalized)
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("get or create identity: %w", err)
	}

	token, err := s.jwtService.Issue(ident)
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("issue session: %w", err)
	}
	return ident, token, nil
}

// Refresh validates the token and reissues it with a fresh expiry
func (s *AuthService) Refresh(tokenString string) (string, error) {
	return s.jwtService.Refresh(tokenString)
}

// ProfilePatch holds optional profile updates
type ProfilePatch struct {
	Email     *string
	Phone     *string
	FirstName *string
	LastName  *string
	Avatar    *string
}

// UpdateProfile patches the identity and marks it onboarded. A patched
// email/phone colliding with a different identity surfaces as a conflict.
func (s *AuthService) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (model.Identity, error) {
	repoPatch := repo.IdentityPatch{
		FirstName: patch.FirstName,
		LastName:  patch.LastName,
		Avatar:    patch.Avatar,
	}
	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		repoPatch.Email = &email
	}
	if patch.Phone != nil {
		phone, err := NormalizePhone(*patch.Phone)
		if err != nil {
			return model.Identity{}, err
		}
		repoPatch.Phone = &phone
	}
	onboarded := true
	repoPatch.IsOnboarded = &onboarded

	return s.identityRepo.Update(ctx, id, repoPatch)
}
