package services

import (
	"context"
	"errors"

	"github.com/harentsoaR/medconsult-api/internal/apperrors"
	"github.com/harentsoaR/medconsult-api/internal/models"
	"github.com/harentsoaR/medconsult-api/internal/store"
)

type DoctorSlots struct {
	DoctorID       string   `json:"doctorId"`
	Name           string   `json:"name"`
	AvailableSlots []string `json:"availableSlots"`
}

// SlotRegistry answers questions about doctors and the slots they publish.
type SlotRegistry struct {
	store store.IdentityStore
}

func NewSlotRegistry(identities store.IdentityStore) *SlotRegistry {
	return &SlotRegistry{store: identities}
}

func (r *SlotRegistry) Doctors(ctx context.Context) ([]models.DoctorSummary, error) {
	doctors, err := r.store.ListDoctors(ctx)
	if err != nil {
		return nil, apperrors.Internal("an error occurred while fetching doctors", err)
	}
	out := make([]models.DoctorSummary, 0, len(doctors))
	for i := range doctors {
		out = append(out, doctors[i].Summary())
	}
	return out, nil
}

func (r *SlotRegistry) doctor(ctx context.Context, doctorID string) (*models.Doctor, error) {
	if doctorID == "" {
		return nil, apperrors.ErrDoctorNotFound
	}
	d, err := r.store.DoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrDoctorNotFound
		}
		return nil, apperrors.Internal("an error occurred while fetching the doctor", err)
	}
	return d, nil
}

// AvailableSlots returns the doctor's published slots, never nil.
func (r *SlotRegistry) AvailableSlots(ctx context.Context, doctorID string) (*DoctorSlots, error) {
	d, err := r.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	slots := d.AvailableSlots
	if slots == nil {
		slots = []string{}
	}
	return &DoctorSlots{DoctorID: d.ID, Name: d.Name, AvailableSlots: slots}, nil
}

// IsSlotAvailable is a membership test at the time of the call; it does not
// reserve anything.
func (r *SlotRegistry) IsSlotAvailable(ctx context.Context, doctorID, slot string) (bool, error) {
	d, err := r.doctor(ctx, doctorID)
	if err != nil {
		return false, err
	}
	return d.HasSlot(slot), nil
}
