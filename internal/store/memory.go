package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harentsoaR/medconsult-api/internal/models"
)

// Memory is a mutex-guarded Store used by tests and STORE_DRIVER=memory.
type Memory struct {
	mu            sync.RWMutex
	doctors       map[string]models.Doctor
	patients      map[string]models.Patient
	consultations map[string]models.Consultation
	images        map[string]models.Image // keyed by consultation ID
	order         []string                // consultation IDs in insert order
}

func NewMemory() *Memory {
	return &Memory{
		doctors:       make(map[string]models.Doctor),
		patients:      make(map[string]models.Patient),
		consultations: make(map[string]models.Consultation),
		images:        make(map[string]models.Image),
	}
}

func (m *Memory) Migrate(context.Context) error { return nil }
func (m *Memory) Close(context.Context) error   { return nil }

func (m *Memory) CreateDoctor(_ context.Context, d *models.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.doctors {
		if existing.Email == d.Email {
			return ErrDuplicate
		}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	cp := *d
	cp.AvailableSlots = append([]string(nil), d.AvailableSlots...)
	m.doctors[d.ID] = cp
	return nil
}

func (m *Memory) CreatePatient(_ context.Context, p *models.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.patients {
		if existing.Email == p.Email {
			return ErrDuplicate
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.patients[p.ID] = *p
	return nil
}

func (m *Memory) DoctorByID(_ context.Context, id string) (*models.Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoctor(d), nil
}

func (m *Memory) DoctorByEmail(_ context.Context, email string) (*models.Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.doctors {
		if d.Email == email {
			return cloneDoctor(d), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) PatientByID(_ context.Context, id string) (*models.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) PatientByEmail(_ context.Context, email string) (*models.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patients {
		if p.Email == email {
			p := p
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListDoctors(context.Context) ([]models.Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		out = append(out, *cloneDoctor(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) SetDoctorPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return ErrNotFound
	}
	d.PasswordHash = &hash
	m.doctors[id] = d
	return nil
}

func (m *Memory) SetPatientPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return ErrNotFound
	}
	p.PasswordHash = &hash
	m.patients[id] = p
	return nil
}

func (m *Memory) BookConsultation(_ context.Context, c *models.Consultation, img *models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Status.Holds() {
		for _, existing := range m.consultations {
			if existing.DoctorID == c.DoctorID && existing.Slot == c.Slot && existing.Status.Holds() {
				return ErrSlotTaken
			}
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.consultations[c.ID] = *c
	m.order = append(m.order, c.ID)
	if img != nil {
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		img.ConsultationID = c.ID
		m.images[c.ID] = *img
	}
	return nil
}

func (m *Memory) ConsultationByID(_ context.Context, id string) (*models.Consultation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ConsultationsForDoctor(_ context.Context, doctorID string) ([]models.ConsultationDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ConsultationDetail, 0)
	for _, id := range m.order {
		c := m.consultations[id]
		if c.DoctorID != doctorID {
			continue
		}
		detail := models.ConsultationDetail{Consultation: c, Images: []string{}}
		if p, ok := m.patients[c.PatientID]; ok {
			detail.Patient = models.PatientContact{Name: p.Name, Email: p.Email}
		}
		if img, ok := m.images[c.ID]; ok {
			detail.Images = img.URLs()
		}
		out = append(out, detail)
	}
	return out, nil
}

func (m *Memory) UpdateConsultationStatus(_ context.Context, id string, from, to models.ConsultationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != from {
		return ErrStale
	}
	if to.Holds() && !from.Holds() {
		for otherID, other := range m.consultations {
			if otherID != id && other.DoctorID == c.DoctorID && other.Slot == c.Slot && other.Status.Holds() {
				return ErrSlotTaken
			}
		}
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	m.consultations[id] = c
	return nil
}

// ImageCount is exposed for tests asserting attachment behavior.
func (m *Memory) ImageCount(consultationID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.images[consultationID]; ok {
		return 1
	}
	return 0
}

func cloneDoctor(d models.Doctor) *models.Doctor {
	d.AvailableSlots = append([]string(nil), d.AvailableSlots...)
	return &d
}

// MemoryLedger is the in-process TokenLedger used when no redis is configured.
type MemoryLedger struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{used: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLedger) Consume(_ context.Context, id string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, exp := range l.used {
		if now.After(exp) {
			delete(l.used, k)
		}
	}
	if _, ok := l.used[id]; ok {
		return false, nil
	}
	l.used[id] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.used, id)
	return nil
}
