package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/medconsult-api/internal/models"
	"github.com/harentsoaR/medconsult-api/internal/store"
	"github.com/harentsoaR/medconsult-api/internal/utils"
)

type sentMail struct {
	recipient string
	token     string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) SendSetupLink(_ context.Context, recipient, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{recipient: recipient, token: token})
	return m.err
}

func (m *recordingMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type fixture struct {
	store         *store.Memory
	mailer        *recordingMailer
	notifications *NotificationService
	tokens        *utils.TokenManager
	auth          *AuthService
	slots         *SlotRegistry
	consultations *ConsultationService
}

type fixtureOption func(*AuthConfig, *bool)

func withUniqueEmail() fixtureOption {
	return func(c *AuthConfig, _ *bool) { c.UniqueEmailAcrossRoles = true }
}

func withPermissiveTransitions() fixtureOption {
	return func(_ *AuthConfig, permissive *bool) { *permissive = true }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := AuthConfig{SessionTTL: time.Hour, SetupTokenTTL: time.Hour}
	permissive := false
	for _, opt := range opts {
		opt(&cfg, &permissive)
	}
	tokens, err := utils.NewTokenManager("test-secret")
	require.NoError(t, err)

	log := zap.NewNop()
	mem := store.NewMemory()
	mailer := &recordingMailer{}
	notifications := NewNotificationService(mailer, log)
	slots := NewSlotRegistry(mem)
	return &fixture{
		store:         mem,
		mailer:        mailer,
		notifications: notifications,
		tokens:        tokens,
		auth:          NewAuthService(mem, utils.NewPasswordHasher(bcrypt.MinCost), tokens, store.NewMemoryLedger(), notifications, cfg, log),
		slots:         slots,
		consultations: NewConsultationService(mem, slots, permissive, log),
	}
}

// doctor registers, sets a password and logs in a doctor.
func (f *fixture) doctor(t *testing.T, email string, slots ...string) models.Principal {
	t.Helper()
	ctx := context.Background()
	reg, err := f.auth.RegisterDoctor(ctx, RegisterDoctorInput{Name: "Dr " + email, Email: email, Specialization: "Cardiology", AvailableSlots: slots})
	require.NoError(t, err)
	require.NoError(t, f.auth.SetPassword(ctx, reg.SetupToken, "password123"))
	return f.login(t, email)
}

func (f *fixture) patient(t *testing.T, email string) models.Principal {
	t.Helper()
	ctx := context.Background()
	reg, err := f.auth.RegisterPatient(ctx, RegisterPatientInput{Name: "Patient " + email, Email: email})
	require.NoError(t, err)
	require.NoError(t, f.auth.SetPassword(ctx, reg.SetupToken, "password123"))
	return f.login(t, email)
}

func (f *fixture) login(t *testing.T, email string) models.Principal {
	t.Helper()
	session, err := f.auth.Login(context.Background(), email, "password123")
	require.NoError(t, err)
	p, err := f.auth.Authenticate(session.Token)
	require.NoError(t, err)
	return p
}

type failingIdentityStore struct {
	store.IdentityStore
}

var errStorage = errors.New("storage offline")

func (failingIdentityStore) CreatePatient(context.Context, *models.Patient) error { return errStorage }
func (failingIdentityStore) DoctorByID(context.Context, string) (*models.Doctor, error) {
	return nil, errStorage
}

// flakyPasswordStore fails the first patient password write.
type flakyPasswordStore struct {
	*store.Memory
	mu       sync.Mutex
	failures int
}

func (s *flakyPasswordStore) SetPatientPassword(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return errStorage
	}
	return s.Memory.SetPatientPassword(ctx, id, hash)
}
