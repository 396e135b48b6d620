package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harentsoaR/medconsult-api/internal/apperrors"
	"github.com/harentsoaR/medconsult-api/internal/middleware"
	"github.com/harentsoaR/medconsult-api/internal/services"
)

// imagesField is the multipart field carrying attachments.
const imagesField = "images"

type consultationRequest struct {
	DoctorID    string `json:"doctorId" form:"doctorId"`
	Slot        string `json:"slot" form:"slot"`
	Reason      string `json:"reason" form:"reason"`
	Description string `json:"description" form:"description"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// RequestConsultation books a slot for the authenticated patient. It accepts
// JSON or multipart form data with optional image files.
func (h *Handler) RequestConsultation(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperrors.ErrUnauthorized)
		return
	}

	var req consultationRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	files, err := h.uploadedFiles(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	paths, err := h.saveUploads(c, files)
	if err != nil {
		h.respondError(c, err)
		return
	}

	consultation, err := h.Consultations.Request(c.Request.Context(), principal, services.ConsultationRequest{
		DoctorID:    req.DoctorID,
		Slot:        req.Slot,
		Reason:      req.Reason,
		Description: req.Description,
		Files:       paths,
	})
	if err != nil {
		h.removeUploads(paths)
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "Consultation requested successfully",
		"consultation": consultation,
		"images":       paths,
	})
}

func (h *Handler) uploadedFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid multipart form", err)
	}
	files := form.File[imagesField]
	if len(files) > h.MaxUploadFiles {
		return nil, apperrors.ErrTooManyFiles
	}
	return files, nil
}

// saveUploads stores each file under UploadDir with a generated name and
// returns the public "uploads/<name>" paths.
func (h *Handler) saveUploads(c *gin.Context, files []*multipart.FileHeader) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, file := range files {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
		if err := c.SaveUploadedFile(file, filepath.Join(h.UploadDir, name)); err != nil {
			h.removeUploads(paths)
			return nil, apperrors.Internal("could not store uploaded file", err)
		}
		paths = append(paths, path.Join("uploads", name))
	}
	return paths, nil
}

func (h *Handler) removeUploads(paths []string) {
	for _, p := range paths {
		target := filepath.Join(h.UploadDir, path.Base(p))
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.Log.Warn("could not remove upload", zap.String("file", target), zap.Error(err))
		}
	}
}

func (h *Handler) GetConsultationsForDoctor(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperrors.ErrUnauthorized)
		return
	}
	consultations, err := h.Consultations.ListForDoctor(c.Request.Context(), principal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, consultations)
}

func (h *Handler) UpdateConsultationStatus(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperrors.ErrUnauthorized)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	consultation, err := h.Consultations.UpdateStatus(c.Request.Context(), principal, c.Param("consultationId"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Consultation status updated successfully",
		"consultation": consultation,
	})
}
