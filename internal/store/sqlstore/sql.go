// Package sqlstore implements store.Store with gorm on PostgreSQL or SQLite.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/harentsoaR/medconsult-api/internal/models"
	"github.com/harentsoaR/medconsult-api/internal/store"
)

// Holding consultations is enforced by a partial unique index so concurrent
// transactions cannot both book the same slot.
const slotIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_consultations_doctor_slot_accepted
ON consultations (doctor_id, slot) WHERE status = 'Accepted'`

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects with the given driver ("postgres" or "sqlite").
func Open(driver, dsn string, log *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	log.Info("connected to SQL database", zap.String("driver", driver))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&models.Doctor{}, &models.Patient{}, &models.Consultation{}, &models.Image{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return db.Exec(slotIndexDDL).Error
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateDoctor(ctx context.Context, d *models.Doctor) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.AvailableSlots == nil {
		d.AvailableSlots = []string{}
	}
	return translate(s.db.WithContext(ctx).Create(d).Error)
}

func (s *Store) CreatePatient(ctx context.Context, p *models.Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	return first[models.Doctor](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) DoctorByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	return first[models.Doctor](s.db.WithContext(ctx).Where("email = ?", email))
}

func (s *Store) PatientByID(ctx context.Context, id string) (*models.Patient, error) {
	return first[models.Patient](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) PatientByEmail(ctx context.Context, email string) (*models.Patient, error) {
	return first[models.Patient](s.db.WithContext(ctx).Where("email = ?", email))
}

func (s *Store) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	doctors := make([]models.Doctor, 0)
	err := s.db.WithContext(ctx).Omit("password").Order("created_at, id").Find(&doctors).Error
	return doctors, err
}

func (s *Store) SetDoctorPassword(ctx context.Context, id, hash string) error {
	return s.setPassword(ctx, &models.Doctor{}, id, hash)
}

func (s *Store) SetPatientPassword(ctx context.Context, id, hash string) error {
	return s.setPassword(ctx, &models.Patient{}, id, hash)
}

func (s *Store) setPassword(ctx context.Context, model any, id, hash string) error {
	result := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Update("password", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) BookConsultation(ctx context.Context, c *models.Consultation, img *models.Image) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.Status.Holds() {
			var held int64
			err := tx.Model(&models.Consultation{}).
				Where("doctor_id = ? AND slot = ? AND status = ?", c.DoctorID, c.Slot, models.StatusAccepted).
				Count(&held).Error
			if err != nil {
				return err
			}
			if held > 0 {
				return store.ErrSlotTaken
			}
		}
		if err := tx.Create(c).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return store.ErrSlotTaken
			}
			return err
		}
		if img == nil {
			return nil
		}
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		img.ConsultationID = c.ID
		return tx.Create(img).Error
	})
}

func (s *Store) ConsultationByID(ctx context.Context, id string) (*models.Consultation, error) {
	return first[models.Consultation](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) ConsultationsForDoctor(ctx context.Context, doctorID string) ([]models.ConsultationDetail, error) {
	db := s.db.WithContext(ctx)

	var consultations []models.Consultation
	if err := db.Where("doctor_id = ?", doctorID).Order("created_at, id").Find(&consultations).Error; err != nil {
		return nil, err
	}
	out := make([]models.ConsultationDetail, 0, len(consultations))
	if len(consultations) == 0 {
		return out, nil
	}

	patientIDs := make([]string, 0, len(consultations))
	consultationIDs := make([]string, 0, len(consultations))
	for _, c := range consultations {
		patientIDs = append(patientIDs, c.PatientID)
		consultationIDs = append(consultationIDs, c.ID)
	}

	var patients []models.Patient
	if err := db.Omit("password").Where("id IN ?", patientIDs).Find(&patients).Error; err != nil {
		return nil, err
	}
	byPatient := make(map[string]models.Patient, len(patients))
	for _, p := range patients {
		byPatient[p.ID] = p
	}

	var images []models.Image
	if err := db.Where("consultation_id IN ?", consultationIDs).Find(&images).Error; err != nil {
		return nil, err
	}
	byConsultation := make(map[string]models.Image, len(images))
	for _, img := range images {
		byConsultation[img.ConsultationID] = img
	}

	for _, c := range consultations {
		detail := models.ConsultationDetail{Consultation: c, Images: []string{}}
		if p, ok := byPatient[c.PatientID]; ok {
			detail.Patient = models.PatientContact{Name: p.Name, Email: p.Email}
		}
		if img, ok := byConsultation[c.ID]; ok {
			detail.Images = img.URLs()
		}
		out = append(out, detail)
	}
	return out, nil
}

func (s *Store) UpdateConsultationStatus(ctx context.Context, id string, from, to models.ConsultationStatus) error {
	db := s.db.WithContext(ctx)
	result := db.Model(&models.Consultation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return store.ErrSlotTaken
		}
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := db.Model(&models.Consultation{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrStale
}

func first[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrDuplicate
	}
	return err
}
