package webui

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"flap/internal/content"
	"flap/internal/store"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListCircuits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"circuits": s.circuits.AllCircuits(c.Request.Context())})
}

func (s *Server) handleGetCircuit(c *gin.Context) {
	cs := s.circuits.CircuitStatus(c.Request.Context(), c.Param("id"))
	if cs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "circuit not found"})
		return
	}
	c.JSON(http.StatusOK, cs)
}

type setStateRequest struct {
	State string `json:"state" binding:"required"`
}

func (s *Server) handleSetCircuitState(c *gin.Context) {
	var req setStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state := store.State(req.State)
	switch state {
	case store.StateOn, store.StateOff, store.StateHalfOpen:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be on, off, or half_open"})
		return
	}

	id := c.Param("id")
	if s.circuits.CircuitStatus(c.Request.Context(), id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "circuit not found"})
		return
	}
	s.circuits.SetState(c.Request.Context(), id, state)
	c.JSON(http.StatusOK, gin.H{"circuit": id, "state": state})
}

func (s *Server) handleResetCircuit(c *gin.Context) {
	id := c.Param("id")
	if s.circuits.CircuitStatus(c.Request.Context(), id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "circuit not found"})
		return
	}
	s.circuits.ResetProviderCircuit(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"circuit": id, "state": store.StateOn})
}

func (s *Server) handleGetContent(c *gin.Context) {
	cached := s.contentSvc.CachedContent()
	if cached == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no content cached yet"})
		return
	}
	c.JSON(http.StatusOK, cached)
}

type generateRequest struct {
	GeneratorID string `json:"generator_id"`
	UseTools    bool   `json:"use_tools"`
	PromptsOnly bool   `json:"prompts_only"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	generated, err := s.contentSvc.GenerateAndSend(c.Request.Context(), content.GenerationContext{
		UpdateType:        content.UpdateMajor,
		GeneratorID:       req.GeneratorID,
		UseToolGeneration: req.UseTools,
		PromptsOnly:       req.PromptsOnly,
	})
	if err != nil {
		if errors.Is(err, content.ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("manual generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, generated)
}
