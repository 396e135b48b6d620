package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harentsoaR/medconsult-api/internal/apperrors"
	"github.com/harentsoaR/medconsult-api/internal/models"
	"github.com/harentsoaR/medconsult-api/internal/store"
	"github.com/harentsoaR/medconsult-api/internal/utils"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPasswordHash(password, hash string) bool
}

type TokenCodec interface {
	Sign(claims utils.Claims, ttl time.Duration) (string, error)
	Verify(token string) (*utils.Claims, error)
}

type SetupNotifier interface {
	SendSetupEmail(recipient, token string)
}

type AuthConfig struct {
	SessionTTL             time.Duration
	SetupTokenTTL          time.Duration
	UniqueEmailAcrossRoles bool
}

// AuthService registers identities, bootstraps their passwords and issues
// session tokens.
type AuthService struct {
	store    store.IdentityStore
	hasher   PasswordHasher
	tokens   TokenCodec
	ledger   store.TokenLedger
	notifier SetupNotifier
	cfg      AuthConfig
	log      *zap.Logger
}

func NewAuthService(
	identities store.IdentityStore,
	hasher PasswordHasher,
	tokens TokenCodec,
	ledger store.TokenLedger,
	notifier SetupNotifier,
	cfg AuthConfig,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		store:    identities,
		hasher:   hasher,
		tokens:   tokens,
		ledger:   ledger,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterDoctorInput struct {
	Name           string
	Email          string
	Specialization string
	AvailableSlots []string
}

type RegisterPatientInput struct {
	Name  string
	Email string
}

// Registration is the outcome of a successful sign-up. SetupToken is also
// mailed to the identity and is never returned over HTTP.
type Registration struct {
	ID         string
	Email      string
	Role       models.Role
	SetupToken string
}

type Session struct {
	Token  string
	UserID string
	Role   models.Role
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*Registration, error) {
	email := normalizeEmail(in.Email)
	specialization := strings.TrimSpace(in.Specialization)
	if email == "" || specialization == "" {
		return nil, apperrors.Wrap(apperrors.CodeMissingFields, "email and specialization are required", nil)
	}
	if err := s.checkOtherRole(ctx, models.RoleDoctor, email); err != nil {
		return nil, err
	}

	slots := make([]string, 0, len(in.AvailableSlots))
	for _, slot := range in.AvailableSlots {
		if slot = strings.TrimSpace(slot); slot != "" {
			slots = append(slots, slot)
		}
	}
	doctor := &models.Doctor{
		Name:           strings.TrimSpace(in.Name),
		Email:          email,
		Specialization: specialization,
		AvailableSlots: slots,
	}
	if err := s.store.CreateDoctor(ctx, doctor); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.ErrDuplicateEmail
		}
		s.log.Error("failed to create doctor", zap.String("email", email), zap.Error(err))
		return nil, apperrors.Internal("registration failed", err)
	}
	return s.issueSetup(doctor.ID, email, models.RoleDoctor)
}

func (s *AuthService) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*Registration, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperrors.Wrap(apperrors.CodeMissingFields, "email is required", nil)
	}
	if err := s.checkOtherRole(ctx, models.RolePatient, email); err != nil {
		return nil, err
	}

	patient := &models.Patient{Name: strings.TrimSpace(in.Name), Email: email}
	if err := s.store.CreatePatient(ctx, patient); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.ErrDuplicateEmail
		}
		s.log.Error("failed to create patient", zap.String("email", email), zap.Error(err))
		return nil, apperrors.Internal("registration failed", err)
	}
	return s.issueSetup(patient.ID, email, models.RolePatient)
}

// checkOtherRole rejects an email already registered under the other role
// when cross-role uniqueness is enabled. It is a read-then-write check.
func (s *AuthService) checkOtherRole(ctx context.Context, role models.Role, email string) error {
	if !s.cfg.UniqueEmailAcrossRoles {
		return nil
	}
	var err error
	if role == models.RoleDoctor {
		_, err = s.store.PatientByEmail(ctx, email)
	} else {
		_, err = s.store.DoctorByEmail(ctx, email)
	}
	switch {
	case err == nil:
		return apperrors.ErrDuplicateEmail
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return apperrors.Internal("registration failed", err)
	}
}

// issueSetup signs the one-time setup token and hands it to the mailer.
// Mail delivery is fire-and-forget: the identity stays registered even if
// the message never arrives.
func (s *AuthService) issueSetup(id, email string, role models.Role) (*Registration, error) {
	token, err := s.tokens.Sign(utils.Claims{
		UserID:  id,
		Email:   email,
		Role:    role,
		Purpose: utils.PurposeSetup,
	}, s.cfg.SetupTokenTTL)
	if err != nil {
		s.log.Error("failed to sign setup token", zap.String("email", email), zap.Error(err))
		return nil, apperrors.Internal("registration failed", err)
	}
	s.notifier.SendSetupEmail(email, token)
	s.log.Info("identity registered", zap.String("id", id), zap.String("role", string(role)))
	return &Registration{ID: id, Email: email, Role: role, SetupToken: token}, nil
}

// SetPassword consumes a setup token and stores the hash of newPassword.
// The token is checked before the password so an expired token always
// yields an auth error.
func (s *AuthService) SetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.Wrap(apperrors.CodeMissingFields, "token is required", nil)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidToken, "invalid or expired token", err)
	}
	if claims.Purpose != utils.PurposeSetup || claims.Email == "" {
		return apperrors.ErrInvalidToken
	}
	if newPassword == "" {
		return apperrors.Wrap(apperrors.CodeMissingFields, "password is required", nil)
	}
	if len(newPassword) < minPasswordLen || len(newPassword) > maxPasswordLen {
		return apperrors.ErrWeakPassword
	}

	role, id, err := s.resolveSetupIdentity(ctx, claims)
	if err != nil {
		return err
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return apperrors.Internal("could not set password", err)
	}

	first, err := s.ledger.Consume(ctx, claims.ID, s.cfg.SetupTokenTTL)
	if err != nil {
		s.log.Error("failed to record setup token use", zap.Error(err))
		return apperrors.Internal("could not set password", err)
	}
	if !first {
		return apperrors.Wrap(apperrors.CodeInvalidToken, "token has already been used", nil)
	}

	if role == models.RoleDoctor {
		err = s.store.SetDoctorPassword(ctx, id, hash)
	} else {
		err = s.store.SetPatientPassword(ctx, id, hash)
	}
	if err != nil {
		// The password was not stored, so the token stays usable.
		if relErr := s.ledger.Release(ctx, claims.ID); relErr != nil {
			s.log.Error("failed to release setup token", zap.String("id", id), zap.Error(relErr))
		}
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.ErrUserNotFound
		}
		s.log.Error("failed to store password", zap.String("id", id), zap.Error(err))
		return apperrors.Internal("could not set password", err)
	}
	s.log.Info("password set", zap.String("id", id), zap.String("role", string(role)))
	return nil
}

// resolveSetupIdentity looks the token's email up in the table named by its
// role claim; tokens without one try doctors first, then patients.
func (s *AuthService) resolveSetupIdentity(ctx context.Context, claims *utils.Claims) (models.Role, string, error) {
	roles := []models.Role{models.RoleDoctor, models.RolePatient}
	if claims.Role.Valid() {
		roles = []models.Role{claims.Role}
	}
	for _, role := range roles {
		id, err := s.lookupID(ctx, role, claims.Email)
		if err == nil {
			return role, id, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", "", apperrors.Internal("could not set password", err)
		}
	}
	return "", "", apperrors.ErrUserNotFound
}

func (s *AuthService) lookupID(ctx context.Context, role models.Role, email string) (string, error) {
	if role == models.RoleDoctor {
		d, err := s.store.DoctorByEmail(ctx, email)
		if err != nil {
			return "", err
		}
		return d.ID, nil
	}
	p, err := s.store.PatientByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

type credential struct {
	id   string
	role models.Role
	hash *string
}

// Login checks doctors first, then patients. The first identity whose stored
// hash matches wins.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.Wrap(apperrors.CodeMissingFields, "email and password are required", nil)
	}

	var candidates []credential
	if d, err := s.store.DoctorByEmail(ctx, email); err == nil {
		candidates = append(candidates, credential{id: d.ID, role: models.RoleDoctor, hash: d.PasswordHash})
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Internal("an error occurred during login", err)
	}
	if p, err := s.store.PatientByEmail(ctx, email); err == nil {
		candidates = append(candidates, credential{id: p.ID, role: models.RolePatient, hash: p.PasswordHash})
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Internal("an error occurred during login", err)
	}
	if len(candidates) == 0 {
		return nil, apperrors.ErrInvalidEmail
	}

	for _, c := range candidates {
		if c.hash == nil || !s.hasher.CheckPasswordHash(password, *c.hash) {
			continue
		}
		token, err := s.tokens.Sign(utils.Claims{
			UserID:  c.id,
			Email:   email,
			Role:    c.role,
			Purpose: utils.PurposeSession,
		}, s.cfg.SessionTTL)
		if err != nil {
			return nil, apperrors.Internal("could not generate token", err)
		}
		return &Session{Token: token, UserID: c.id, Role: c.role}, nil
	}
	return nil, apperrors.ErrInvalidPassword
}

// Authenticate is the authorization gate: it turns a bearer token into the
// acting principal.
func (s *AuthService) Authenticate(token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, apperrors.ErrUnauthorized
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return models.Principal{}, apperrors.Wrap(apperrors.CodeUnauthorized, "invalid token", err)
	}
	if claims.Purpose != utils.PurposeSession || !claims.Role.Valid() || claims.UserID == "" {
		return models.Principal{}, apperrors.Wrap(apperrors.CodeUnauthorized, "invalid token", nil)
	}
	return models.Principal{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// Profile returns the stored profile of the acting principal.
func (s *AuthService) Profile(ctx context.Context, p models.Principal) (*models.Profile, error) {
	switch p.Role {
	case models.RoleDoctor:
		d, err := s.store.DoctorByID(ctx, p.ID)
		if err != nil {
			return nil, notFoundOr(err, apperrors.ErrUserNotFound)
		}
		return &models.Profile{
			ID:             d.ID,
			Name:           d.Name,
			Email:          d.Email,
			Role:           models.RoleDoctor,
			Specialization: d.Specialization,
			AvailableSlots: d.AvailableSlots,
		}, nil
	case models.RolePatient:
		pt, err := s.store.PatientByID(ctx, p.ID)
		if err != nil {
			return nil, notFoundOr(err, apperrors.ErrUserNotFound)
		}
		return &models.Profile{ID: pt.ID, Name: pt.Name, Email: pt.Email, Role: models.RolePatient}, nil
	}
	return nil, apperrors.ErrInvalidRole
}

func notFoundOr(err error, notFound *apperrors.Error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return apperrors.Internal("storage failure", err)
}
