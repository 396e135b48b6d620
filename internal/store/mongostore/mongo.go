// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/harentsoaR/medconsult-api/internal/models"
	"github.com/harentsoaR/medconsult-api/internal/store"
)

const (
	doctorsCollection       = "doctors"
	patientsCollection      = "patients"
	consultationsCollection = "consultations"
	imagesCollection        = "images"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

// Connect dials uri and pings the server before returning.
func Connect(ctx context.Context, uri, database string, log *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	log.Info("connected to MongoDB", zap.String("database", database))
	return &Store{client: client, db: client.Database(database), log: log}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Migrate creates the indexes the store relies on for uniqueness.
func (s *Store) Migrate(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		doctorsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		patientsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		consultationsCollection: {
			{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{
				Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "slot", Value: 1}},
				Options: options.Index().
					SetName("doctor_slot_accepted").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": models.StatusAccepted}),
			},
		},
		imagesCollection: {
			{Keys: bson.D{{Key: "consultationId", Value: 1}}, Options: unique},
		},
	}
	for coll, indexes := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func (s *Store) CreateDoctor(ctx context.Context, d *models.Doctor) error {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.AvailableSlots == nil {
		d.AvailableSlots = []string{}
	}
	_, err := s.db.Collection(doctorsCollection).InsertOne(ctx, d)
	return translate(err)
}

func (s *Store) CreatePatient(ctx context.Context, p *models.Patient) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(patientsCollection).InsertOne(ctx, p)
	return translate(err)
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	return findOne[models.Doctor](ctx, s.db.Collection(doctorsCollection), bson.M{"_id": id})
}

func (s *Store) DoctorByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	return findOne[models.Doctor](ctx, s.db.Collection(doctorsCollection), bson.M{"email": email})
}

func (s *Store) PatientByID(ctx context.Context, id string) (*models.Patient, error) {
	return findOne[models.Patient](ctx, s.db.Collection(patientsCollection), bson.M{"_id": id})
}

func (s *Store) PatientByEmail(ctx context.Context, email string) (*models.Patient, error) {
	return findOne[models.Patient](ctx, s.db.Collection(patientsCollection), bson.M{"email": email})
}

func (s *Store) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetProjection(bson.M{"password": 0})
	cursor, err := s.db.Collection(doctorsCollection).Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	doctors := make([]models.Doctor, 0)
	if err := cursor.All(ctx, &doctors); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (s *Store) SetDoctorPassword(ctx context.Context, id, hash string) error {
	return s.setPassword(ctx, doctorsCollection, id, hash)
}

func (s *Store) SetPatientPassword(ctx context.Context, id, hash string) error {
	return s.setPassword(ctx, patientsCollection, id, hash)
}

func (s *Store) setPassword(ctx context.Context, coll, id, hash string) error {
	result, err := s.db.Collection(coll).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// BookConsultation relies on the doctor_slot_accepted partial index for the
// slot guard. Without multi-document transactions the image insert is
// compensated by deleting the consultation.
func (s *Store) BookConsultation(ctx context.Context, c *models.Consultation, img *models.Image) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	consultations := s.db.Collection(consultationsCollection)
	if _, err := consultations.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrSlotTaken
		}
		return err
	}
	if img == nil {
		return nil
	}

	if img.ID == "" {
		img.ID = newID()
	}
	img.ConsultationID = c.ID
	if _, err := s.db.Collection(imagesCollection).InsertOne(ctx, img); err != nil {
		if _, delErr := consultations.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": c.ID}); delErr != nil {
			s.log.Error("failed to roll back consultation after image insert failure",
				zap.String("consultationId", c.ID), zap.Error(delErr))
		}
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (s *Store) ConsultationByID(ctx context.Context, id string) (*models.Consultation, error) {
	return findOne[models.Consultation](ctx, s.db.Collection(consultationsCollection), bson.M{"_id": id})
}

type consultationRow struct {
	models.Consultation `bson:",inline"`
	Patient             []models.Patient `bson:"patient"`
	Images              []models.Image   `bson:"images"`
}

func (s *Store) ConsultationsForDoctor(ctx context.Context, doctorID string) ([]models.ConsultationDetail, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"doctorId": doctorID}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         patientsCollection,
			"localField":   "patientId",
			"foreignField": "_id",
			"as":           "patient",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         imagesCollection,
			"localField":   "_id",
			"foreignField": "consultationId",
			"as":           "images",
		}}},
	}
	cursor, err := s.db.Collection(consultationsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []consultationRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make([]models.ConsultationDetail, 0, len(rows))
	for _, row := range rows {
		detail := models.ConsultationDetail{Consultation: row.Consultation, Images: []string{}}
		if len(row.Patient) > 0 {
			detail.Patient = models.PatientContact{Name: row.Patient[0].Name, Email: row.Patient[0].Email}
		}
		if len(row.Images) > 0 {
			detail.Images = row.Images[0].URLs()
		}
		out = append(out, detail)
	}
	return out, nil
}

func (s *Store) UpdateConsultationStatus(ctx context.Context, id string, from, to models.ConsultationStatus) error {
	coll := s.db.Collection(consultationsCollection)
	result, err := coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrSlotTaken
		}
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrStale
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}
