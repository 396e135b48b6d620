package models

import (
	"time"
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Doctor is a practitioner who publishes bookable slots.
type Doctor struct {
	ID             string    `bson:"_id" json:"doctorId" gorm:"primaryKey;size:64"`
	Name           string    `bson:"name" json:"name"`
	Email          string    `bson:"email" json:"email" gorm:"uniqueIndex;not null"`
	Specialization string    `bson:"specialization" json:"specialization"`
	AvailableSlots []string  `bson:"availableSlots" json:"availableSlots" gorm:"serializer:json;type:text"`
	PasswordHash   *string   `bson:"password,omitempty" json:"-" gorm:"column:password"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

// HasSlot reports whether slot is currently published by the doctor.
func (d *Doctor) HasSlot(slot string) bool {
	for _, s := range d.AvailableSlots {
		if s == slot {
			return true
		}
	}
	return false
}

type Patient struct {
	ID           string    `bson:"_id" json:"patientId" gorm:"primaryKey;size:64"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash *string   `bson:"password,omitempty" json:"-" gorm:"column:password"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// DoctorSummary is the public listing view of a doctor.
type DoctorSummary struct {
	DoctorID       string `json:"doctorId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Specialization string `json:"specialization"`
}

func (d *Doctor) Summary() DoctorSummary {
	return DoctorSummary{
		DoctorID:       d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Specialization: d.Specialization,
	}
}

// Profile is what an authenticated identity sees about itself.
type Profile struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Role           Role     `json:"role"`
	Specialization string   `json:"specialization,omitempty"`
	AvailableSlots []string `json:"availableSlots,omitempty"`
}

// Principal is the identity resolved from a session token.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

func (p Principal) Is(role Role) bool {
	return p.Role == role
}
