// Package store defines persistence contracts for identities, consultations
// and one-time tokens, plus an in-memory implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/harentsoaR/medconsult-api/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrSlotTaken means an Accepted consultation already holds the slot.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrStale means a conditional update did not find the expected state.
	ErrStale = errors.New("record changed concurrently")
)

type IdentityStore interface {
	CreateDoctor(ctx context.Context, d *models.Doctor) error
	CreatePatient(ctx context.Context, p *models.Patient) error
	DoctorByID(ctx context.Context, id string) (*models.Doctor, error)
	DoctorByEmail(ctx context.Context, email string) (*models.Doctor, error)
	PatientByID(ctx context.Context, id string) (*models.Patient, error)
	PatientByEmail(ctx context.Context, email string) (*models.Patient, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
	SetDoctorPassword(ctx context.Context, id, hash string) error
	SetPatientPassword(ctx context.Context, id, hash string) error
}

type ConsultationStore interface {
	// BookConsultation inserts c and, when img is non-nil, its image record.
	// It fails with ErrSlotTaken if an Accepted consultation for the same
	// doctor and slot exists. Either both records are stored or neither.
	BookConsultation(ctx context.Context, c *models.Consultation, img *models.Image) error
	ConsultationByID(ctx context.Context, id string) (*models.Consultation, error)
	ConsultationsForDoctor(ctx context.Context, doctorID string) ([]models.ConsultationDetail, error)
	// UpdateConsultationStatus sets the status only if it still equals from.
	UpdateConsultationStatus(ctx context.Context, id string, from, to models.ConsultationStatus) error
}

type Store interface {
	IdentityStore
	ConsultationStore
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error
}

// TokenLedger records consumed single-use token IDs.
type TokenLedger interface {
	// Consume marks id as used for ttl and reports whether this call was
	// the first to do so.
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Release forgets a consumed id so the token can be used again.
	Release(ctx context.Context, id string) error
}
