package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/medconsult-api/internal/apperrors"
	"github.com/harentsoaR/medconsult-api/internal/services"
)

// Handler carries the services every HTTP endpoint needs.
type Handler struct {
	Auth           *services.AuthService
	Slots          *services.SlotRegistry
	Consultations  *services.ConsultationService
	UploadDir      string
	MaxUploadFiles int
	Log            *zap.Logger
}

func NewHandler(
	auth *services.AuthService,
	slots *services.SlotRegistry,
	consultations *services.ConsultationService,
	uploadDir string,
	maxUploadFiles int,
	log *zap.Logger,
) *Handler {
	return &Handler{
		Auth:           auth,
		Slots:          slots,
		Consultations:  consultations,
		UploadDir:      uploadDir,
		MaxUploadFiles: maxUploadFiles,
		Log:            log,
	}
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindValidation: http.StatusBadRequest,
	apperrors.KindConflict:   http.StatusConflict,
	apperrors.KindAuth:       http.StatusUnauthorized,
	apperrors.KindForbidden:  http.StatusForbidden,
	apperrors.KindNotFound:   http.StatusNotFound,
	apperrors.KindInternal:   http.StatusInternalServerError,
}

// respondError renders err as {"error", "code"}. Wrapped causes never leave
// the process.
func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("internal server error", err)
	}
	if appErr.Kind == apperrors.KindInternal {
		h.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(kindStatus[appErr.Kind], gin.H{"error": appErr.Message, "code": appErr.Code})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.respondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid request body", err))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
