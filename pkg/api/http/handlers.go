package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/domain"
)

// StartAnalysisResponse is returned on analysis creation.
type StartAnalysisResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine code and human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStartAnalysis(c *gin.Context) {
	var req domain.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
		})
		return
	}

	sessionID, err := s.engine.StartAnalysis(c.Request.Context(), &req)
	if err != nil {
		var cfg *domain.ConfigurationError
		if errors.As(err, &cfg) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
			})
			return
		}
		s.logger.Error("failed to start analysis", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "INTERNAL", Message: err.Error()},
		})
		return
	}

	c.JSON(http.StatusCreated, StartAnalysisResponse{
		SessionID: sessionID,
		Status:    string(domain.SessionStatusPending),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	ids, err := s.engine.ListSessions(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "INTERNAL", Message: err.Error()},
		})
		return
	}
	if ids == nil {
		ids = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": ids,
		"total":    len(ids),
	})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap.Session)
}

// handleGetResult returns the final decision. Before the session reaches a
// terminal state this is 409; a failed or cancelled session has no result.
func (s *Server) handleGetResult(c *gin.Context) {
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}

	if !snap.Session.Status.Terminal() {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{Code: "NOT_FINISHED", Message: "analysis is still running"},
		})
		return
	}

	for i := len(snap.Artifacts) - 1; i >= 0; i-- {
		a := snap.Artifacts[i]
		if a.Kind == domain.ArtifactFinalDecision && a.Decision != nil {
			c.JSON(http.StatusOK, gin.H{
				"session_id": snap.Session.ID,
				"symbol":     snap.Session.Symbol,
				"as_of_date": snap.Session.AsOfDate,
				"decision":   a.Decision,
				"content":    a.Content,
			})
			return
		}
	}

	c.JSON(http.StatusNotFound, ErrorResponse{
		Error: ErrorDetail{Code: "NO_RESULT", Message: "session finished without a decision"},
	})
}

func (s *Server) handleGetArtifacts(c *gin.Context) {
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}

	artifacts := snap.Artifacts
	if stage := c.Query("stage"); stage != "" {
		filtered := make([]domain.Artifact, 0, len(artifacts))
		for _, a := range artifacts {
			if string(a.Stage) == stage {
				filtered = append(filtered, a)
			}
		}
		artifacts = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": snap.Session.ID,
		"artifacts":  artifacts,
		"total":      len(artifacts),
	})
}

func (s *Server) handleCancelAnalysis(c *gin.Context) {
	sessionID := c.Param("id")

	err := s.engine.Cancel(c.Request.Context(), sessionID)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{
			"session_id": sessionID,
			"status":     "cancellation_requested",
		})
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{Code: "NOT_FOUND", Message: "session not found"},
		})
	case errors.Is(err, domain.ErrSessionTerminal):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{Code: "ALREADY_FINISHED", Message: "session already in a terminal state"},
		})
	default:
		s.logger.Error("failed to cancel session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "INTERNAL", Message: err.Error()},
		})
	}
}

func (s *Server) loadSnapshot(c *gin.Context) (*domain.SessionSnapshot, bool) {
	sessionID := c.Param("id")

	snap, err := s.engine.GetSnapshot(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{Code: "NOT_FOUND", Message: "session not found"},
			})
			return nil, false
		}
		s.logger.Error("failed to load session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "INTERNAL", Message: err.Error()},
		})
		return nil, false
	}
	return snap, true
}
