package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/medconsult-api/internal/models"
	"github.com/harentsoaR/medconsult-api/internal/store"
)

// newTestStore needs a reachable server in MONGO_TEST_URI; each run uses a
// throwaway database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s, err := Connect(ctx, uri, "medconsult_test_"+primitive.NewObjectID().Hex(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestMongoIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &models.Doctor{Name: "Dr. A", Email: "a@x.com", Specialization: "Cardiology", AvailableSlots: []string{"2024-01-01T10:00"}}
	require.NoError(t, s.CreateDoctor(ctx, d))
	assert.ErrorIs(t, s.CreateDoctor(ctx, &models.Doctor{Email: "a@x.com"}), store.ErrDuplicate)
	require.NoError(t, s.CreatePatient(ctx, &models.Patient{Email: "a@x.com"}))

	got, err := s.DoctorByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Nil(t, got.PasswordHash)

	require.NoError(t, s.SetDoctorPassword(ctx, d.ID, "hash"))
	got, err = s.DoctorByID(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PasswordHash)

	_, err = s.PatientByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	doctors, err := s.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Nil(t, doctors[0].PasswordHash)
}

func TestMongoBooking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.Patient{Name: "Pat", Email: "p@x.com"}
	require.NoError(t, s.CreatePatient(ctx, p))

	c := &models.Consultation{DoctorID: "d1", PatientID: p.ID, Slot: "s1", Status: models.StatusAccepted}
	require.NoError(t, s.BookConsultation(ctx, c, models.NewImage([]string{"uploads/a.png", "uploads/b.png"})))

	dup := &models.Consultation{DoctorID: "d1", PatientID: p.ID, Slot: "s1", Status: models.StatusAccepted}
	assert.ErrorIs(t, s.BookConsultation(ctx, dup, nil), store.ErrSlotTaken)

	details, err := s.ConsultationsForDoctor(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Pat", details[0].Patient.Name)
	assert.Equal(t, []string{"uploads/a.png", "uploads/b.png"}, details[0].Images)

	assert.ErrorIs(t, s.UpdateConsultationStatus(ctx, c.ID, models.StatusRejected, models.StatusCompleted), store.ErrStale)
	require.NoError(t, s.UpdateConsultationStatus(ctx, c.ID, models.StatusAccepted, models.StatusRejected))
	assert.NoError(t, s.BookConsultation(ctx, dup, nil))
}
