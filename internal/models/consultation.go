package models

import (
	"strings"
	"time"
)

type ConsultationStatus string

const (
	StatusAccepted  ConsultationStatus = "Accepted"
	StatusRejected  ConsultationStatus = "Rejected"
	StatusCompleted ConsultationStatus = "Completed"
)

// transitions lists the allowed status changes. Anything absent is refused
// unless permissive transitions are enabled.
var transitions = map[ConsultationStatus][]ConsultationStatus{
	StatusAccepted: {StatusRejected, StatusCompleted},
}

func ParseStatus(s string) (ConsultationStatus, bool) {
	switch st := ConsultationStatus(s); st {
	case StatusAccepted, StatusRejected, StatusCompleted:
		return st, true
	}
	return "", false
}

func (s ConsultationStatus) CanTransitionTo(next ConsultationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Holds reports whether a consultation in this status keeps its slot booked.
func (s ConsultationStatus) Holds() bool {
	return s == StatusAccepted
}

type Consultation struct {
	ID          string             `bson:"_id" json:"id" gorm:"primaryKey;size:64"`
	PatientID   string             `bson:"patientId" json:"patientId" gorm:"index;not null"`
	DoctorID    string             `bson:"doctorId" json:"doctorId" gorm:"index;not null"`
	Slot        string             `bson:"slot" json:"slot" gorm:"not null"`
	Status      ConsultationStatus `bson:"status" json:"status" gorm:"type:varchar(16);not null"`
	Reason      string             `bson:"reason" json:"reason"`
	Description string             `bson:"description" json:"description"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

const imageURLSeparator = ","

// Image holds every file attached to a consultation in one delimited value.
type Image struct {
	ID             string `bson:"_id" json:"id" gorm:"primaryKey;size:64"`
	ConsultationID string `bson:"consultationId" json:"consultationId" gorm:"uniqueIndex;not null"`
	ImageURL       string `bson:"imageUrl" json:"imageUrl"`
}

// NewImage returns nil when there is nothing to attach.
func NewImage(paths []string) *Image {
	if len(paths) == 0 {
		return nil
	}
	return &Image{ImageURL: strings.Join(paths, imageURLSeparator)}
}

func (i *Image) URLs() []string {
	if i == nil || i.ImageURL == "" {
		return []string{}
	}
	return strings.Split(i.ImageURL, imageURLSeparator)
}

type PatientContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ConsultationDetail is a consultation joined with its patient and images,
// as shown to the doctor.
type ConsultationDetail struct {
	Consultation
	Patient PatientContact `json:"patient"`
	Images  []string       `json:"images"`
}
