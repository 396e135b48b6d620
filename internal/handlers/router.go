package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/medconsult-api/internal/middleware"
	"github.com/harentsoaR/medconsult-api/internal/models"
)

type RouterOptions struct {
	CORSOrigins   []string
	AuthRateLimit int
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(h.Log))
	r.MaxMultipartMemory = 8 << 20

	// ---  Middleware ---
	r.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", h.Health)

	api := r.Group("/api")

	// --- Public routes ---
	public := api.Group("")
	public.Use(middleware.RateLimit(middleware.NewIPRateLimiter(opts.AuthRateLimit)))
	{
		public.POST("/register/doctor", h.RegisterDoctor)
		public.POST("/register/patient", h.RegisterPatient)
		public.POST("/login", h.Login)
		public.POST("/set-password", h.SetPassword)
	}

	// --- Authenticated routes ---
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(h.Auth))
	{
		authed.GET("/me", h.GetCurrentUser)
		authed.GET("/doctors", h.GetDoctors)
		authed.GET("/doctor/:doctorId/slots", h.GetDoctorSlots)

		authed.POST("/consultations", middleware.RequireRole(models.RolePatient), h.RequestConsultation)
		authed.GET("/doctors/consultations", middleware.RequireRole(models.RoleDoctor), h.GetConsultationsForDoctor)
		authed.PUT("/consultations/:consultationId/status", middleware.RequireRole(models.RoleDoctor), h.UpdateConsultationStatus)
	}

	return r
}
