package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetDoctors(c *gin.Context) {
	doctors, err := h.Slots.Doctors(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctors)
}

func (h *Handler) GetDoctorSlots(c *gin.Context) {
	slots, err := h.Slots.AvailableSlots(c.Request.Context(), c.Param("doctorId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}
