package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/harentsoaR/medconsult-api/internal/apperrors"
	"github.com/harentsoaR/medconsult-api/internal/models"
	"github.com/harentsoaR/medconsult-api/internal/store"
)

type ConsultationRequest struct {
	DoctorID    string
	Slot        string
	Reason      string
	Description string
	// Files are paths of already stored uploads.
	Files []string
}

// ConsultationService is the consultation ledger.
type ConsultationService struct {
	store              store.ConsultationStore
	slots              *SlotRegistry
	allowAnyTransition bool
	log                *zap.Logger
}

func NewConsultationService(consultations store.ConsultationStore, slots *SlotRegistry, allowAnyTransition bool, log *zap.Logger) *ConsultationService {
	return &ConsultationService{
		store:              consultations,
		slots:              slots,
		allowAnyTransition: allowAnyTransition,
		log:                log,
	}
}

// Request books req.Slot with req.DoctorID for the acting patient. The
// booking is accepted immediately.
func (s *ConsultationService) Request(ctx context.Context, p models.Principal, req ConsultationRequest) (*models.Consultation, error) {
	if !p.Is(models.RolePatient) {
		return nil, apperrors.Wrap(apperrors.CodeForbidden, "only patients can book consultations", nil)
	}
	doctorID := strings.TrimSpace(req.DoctorID)
	slot := strings.TrimSpace(req.Slot)
	if doctorID == "" || slot == "" {
		return nil, apperrors.Wrap(apperrors.CodeMissingFields, "doctor ID and slot are required", nil)
	}

	ok, err := s.slots.IsSlotAvailable(ctx, doctorID, slot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrSlotUnavailable
	}
	if p.ID == "" {
		return nil, apperrors.ErrMissingPatientIdentity
	}

	c := &models.Consultation{
		PatientID:   p.ID,
		DoctorID:    doctorID,
		Slot:        slot,
		Status:      models.StatusAccepted,
		Reason:      req.Reason,
		Description: req.Description,
	}
	if err := s.store.BookConsultation(ctx, c, models.NewImage(req.Files)); err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			return nil, apperrors.ErrSlotTaken
		}
		s.log.Error("failed to book consultation",
			zap.String("doctorId", doctorID), zap.String("slot", slot), zap.Error(err))
		return nil, apperrors.Internal("an error occurred during the consultation request", err)
	}
	s.log.Info("consultation booked",
		zap.String("consultationId", c.ID),
		zap.String("doctorId", doctorID),
		zap.Int("files", len(req.Files)))
	return c, nil
}

// ListForDoctor returns the acting doctor's consultations with patient
// contact details and attached images.
func (s *ConsultationService) ListForDoctor(ctx context.Context, p models.Principal) ([]models.ConsultationDetail, error) {
	if !p.Is(models.RoleDoctor) {
		return nil, apperrors.Wrap(apperrors.CodeForbidden, "only doctors can list their consultations", nil)
	}
	if _, err := s.slots.doctor(ctx, p.ID); err != nil {
		return nil, err
	}
	details, err := s.store.ConsultationsForDoctor(ctx, p.ID)
	if err != nil {
		s.log.Error("failed to fetch consultations", zap.String("doctorId", p.ID), zap.Error(err))
		return nil, apperrors.Internal("an error occurred while fetching consultations", err)
	}
	if details == nil {
		details = []models.ConsultationDetail{}
	}
	return details, nil
}

// UpdateStatus moves a consultation owned by the acting doctor to status.
// Unless permissive transitions are enabled only Accepted->Rejected and
// Accepted->Completed are allowed.
func (s *ConsultationService) UpdateStatus(ctx context.Context, p models.Principal, consultationID, status string) (*models.Consultation, error) {
	if !p.Is(models.RoleDoctor) {
		return nil, apperrors.Wrap(apperrors.CodeForbidden, "only doctors can update consultations", nil)
	}
	next, ok := models.ParseStatus(status)
	if !ok {
		return nil, apperrors.ErrInvalidStatus
	}

	c, err := s.store.ConsultationByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrConsultationNotFound
		}
		return nil, apperrors.Internal("an error occurred while updating the consultation status", err)
	}
	if c.DoctorID != p.ID {
		return nil, apperrors.Wrap(apperrors.CodeForbidden, "consultation belongs to another doctor", nil)
	}
	if !s.allowAnyTransition && !c.Status.CanTransitionTo(next) {
		return nil, apperrors.Wrap(apperrors.CodeInvalidTransition,
			"cannot move consultation from "+string(c.Status)+" to "+string(next), nil)
	}

	switch err := s.store.UpdateConsultationStatus(ctx, c.ID, c.Status, next); {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return nil, apperrors.ErrConsultationNotFound
	case errors.Is(err, store.ErrStale):
		return nil, apperrors.Wrap(apperrors.CodeInvalidTransition, "consultation was modified concurrently", err)
	case errors.Is(err, store.ErrSlotTaken):
		return nil, apperrors.ErrSlotTaken
	default:
		s.log.Error("failed to update consultation status", zap.String("consultationId", c.ID), zap.Error(err))
		return nil, apperrors.Internal("an error occurred while updating the consultation status", err)
	}

	s.log.Info("consultation status updated",
		zap.String("consultationId", c.ID),
		zap.String("from", string(c.Status)),
		zap.String("to", string(next)))
	c.Status = next
	return c, nil
}
