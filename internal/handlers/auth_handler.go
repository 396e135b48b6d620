package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/medconsult-api/internal/apperrors"
	"github.com/harentsoaR/medconsult-api/internal/middleware"
	"github.com/harentsoaR/medconsult-api/internal/services"
)

type registerDoctorRequest struct {
	Name           string          `json:"name"`
	Email          string          `json:"email" binding:"omitempty,email"`
	Specialization string          `json:"specialization"`
	AvailableSlots json.RawMessage `json:"availableSlots"`
}

type registerPatientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
}

type setPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// parseSlots accepts either a JSON array of strings or a string holding one.
func parseSlots(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		if encoded == "" {
			return nil, nil
		}
		raw = json.RawMessage(encoded)
	}
	var slots []string
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, errors.New("availableSlots must be an array of strings")
	}
	return slots, nil
}

func (h *Handler) RegisterDoctor(c *gin.Context) {
	var req registerDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	slots, err := parseSlots(req.AvailableSlots)
	if err != nil {
		h.respondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, err.Error(), err))
		return
	}

	reg, err := h.Auth.RegisterDoctor(c.Request.Context(), services.RegisterDoctorInput{
		Name:           req.Name,
		Email:          req.Email,
		Specialization: req.Specialization,
		AvailableSlots: slots,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Doctor registered, check email to set password.",
		"doctorId": reg.ID,
	})
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req registerPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	reg, err := h.Auth.RegisterPatient(c.Request.Context(), services.RegisterPatientInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Patient registered, check email to set password.",
		"patientId": reg.ID,
	})
}

func (h *Handler) SetPassword(c *gin.Context) {
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.Auth.SetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password created successfully"})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	session, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   session.Token,
		"role":    session.Role,
	})
}

// GetCurrentUser returns the profile of the authenticated caller.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperrors.ErrUnauthorized)
		return
	}
	profile, err := h.Auth.Profile(c.Request.Context(), principal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
