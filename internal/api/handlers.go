package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/feedback"
	"github.com/trial-match-server/internal/ingest"
	"github.com/trial-match-server/internal/service"
)

// MatchRequest is the body of POST /api/v1/match. Callers supply either a
// normalized profile or the raw feature map produced by clinical text
// extraction; Features is ignored when Profile is present.
type MatchRequest struct {
	Profile  *domain.PatientProfile `json:"profile,omitempty"`
	Features map[string]any         `json:"features,omitempty"`
}

func (r *MatchRequest) resolveProfile() *domain.PatientProfile {
	if r.Profile != nil {
		return r.Profile
	}
	if len(r.Features) > 0 {
		return service.NormalizeFeatures(r.Features)
	}
	return nil
}

// handleMatch runs a full matching run against the current catalog snapshot.
func (s *Server) handleMatch(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "invalid request body", err.Error(), requestID(c)))
		return
	}

	profile := req.resolveProfile()
	if profile == nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "profile or features required", "", requestID(c)))
		return
	}

	catalog, err := s.catalog.Snapshot(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load trial catalog")
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "trial catalog unavailable", err.Error(), requestID(c)))
		return
	}

	report, err := s.matcher.Match(c.Request.Context(), profile, catalog)
	if err != nil {
		s.logger.WithError(err).Error("Matching run failed")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeMatchingError, "matching run failed", err.Error(), requestID(c)))
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleListTrials returns the current catalog snapshot.
func (s *Server) handleListTrials(c *gin.Context) {
	catalog, err := s.catalog.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "trial catalog unavailable", err.Error(), requestID(c)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(catalog), "trials": catalog})
}

// handleGetTrial returns a single trial by registry ID.
func (s *Server) handleGetTrial(c *gin.Context) {
	if s.trials == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "trial store not configured", "", requestID(c)))
		return
	}

	trial, err := s.trials.GetByID(c.Request.Context(), c.Param("id"))
	if err == domain.ErrNotFound {
		c.JSON(http.StatusNotFound, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "trial not found", c.Param("id"), requestID(c)))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "failed to load trial", err.Error(), requestID(c)))
		return
	}
	c.JSON(http.StatusOK, trial)
}

// handleUpsertTrial creates or replaces a catalog entry and invalidates
// the snapshot so the next matching run sees it.
func (s *Server) handleUpsertTrial(c *gin.Context) {
	if s.trials == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "trial store not configured", "", requestID(c)))
		return
	}

	var trial domain.TrialDefinition
	if err := c.ShouldBindJSON(&trial); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "invalid trial definition", err.Error(), requestID(c)))
		return
	}
	trial.ID = c.Param("id")

	if err := trial.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeValidation, "trial validation failed", err.Error(), requestID(c)))
		return
	}

	if err := s.trials.Upsert(c.Request.Context(), &trial); err != nil {
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "failed to store trial", err.Error(), requestID(c)))
		return
	}
	s.catalog.Invalidate()

	c.JSON(http.StatusOK, gin.H{"id": trial.ID, "status": "stored"})
}

// ImportRequest is the body of POST /api/v1/trials/import: raw registry
// records whose eligibility text still needs parsing.
type ImportRequest struct {
	Records []ingest.TrialRecord `json:"records"`
}

// ImportFailure reports one record that could not be imported.
type ImportFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// handleImportTrials parses raw registry records into trial definitions
// and stores them. Records failing validation are reported individually
// and do not abort the batch.
func (s *Server) handleImportTrials(c *gin.Context) {
	if s.trials == nil || s.importer == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "trial import not configured", "", requestID(c)))
		return
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "invalid import body", err.Error(), requestID(c)))
		return
	}
	if len(req.Records) == 0 {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeValidation, "records is required", "", requestID(c)))
		return
	}

	var imported int
	var failures []ImportFailure
	for _, record := range req.Records {
		trial := s.importer.BuildTrial(record)
		if err := trial.Validate(); err != nil {
			failures = append(failures, ImportFailure{ID: record.NCTID, Error: err.Error()})
			continue
		}
		if err := s.trials.Upsert(c.Request.Context(), &trial); err != nil {
			failures = append(failures, ImportFailure{ID: trial.ID, Error: err.Error()})
			continue
		}
		imported++
	}
	if imported > 0 {
		s.catalog.Invalidate()
	}

	s.logger.WithFields(logrus.Fields{
		"imported": imported,
		"failed":   len(failures),
	}).Info("Trial import finished")

	c.JSON(http.StatusOK, gin.H{"imported": imported, "failures": failures})
}

// handleDeleteTrial removes a catalog entry.
func (s *Server) handleDeleteTrial(c *gin.Context) {
	if s.trials == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "trial store not configured", "", requestID(c)))
		return
	}

	err := s.trials.Delete(c.Request.Context(), c.Param("id"))
	if err == domain.ErrNotFound {
		c.JSON(http.StatusNotFound, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "trial not found", c.Param("id"), requestID(c)))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "failed to delete trial", err.Error(), requestID(c)))
		return
	}
	s.catalog.Invalidate()

	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": "deleted"})
}

// handleSaveFeedback records a clinician verdict for a reported match.
func (s *Server) handleSaveFeedback(c *gin.Context) {
	if s.feedback == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "feedback store not configured", "", requestID(c)))
		return
	}

	var fb feedback.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "invalid feedback body", err.Error(), requestID(c)))
		return
	}

	if fb.PatientRef == "" || fb.TrialID == "" {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeValidation, "patient_ref and trial_id are required", "", requestID(c)))
		return
	}
	if !fb.ClinicianVerdict.IsValid() {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeValidation, "invalid clinician verdict", string(fb.ClinicianVerdict), requestID(c)))
		return
	}
	fb.Agreed = fb.SystemVerdict == fb.ClinicianVerdict

	if err := s.feedback.Save(c.Request.Context(), &fb); err != nil {
		s.logger.WithFields(logrus.Fields{
			"trial_id": fb.TrialID,
			"error":    err.Error(),
		}).Error("Failed to save feedback")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "failed to save feedback", err.Error(), requestID(c)))
		return
	}

	c.JSON(http.StatusOK, fb)
}

// handleListFeedback returns recorded feedback, newest first.
func (s *Server) handleListFeedback(c *gin.Context) {
	if s.feedback == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "feedback store not configured", "", requestID(c)))
		return
	}

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	entries, err := s.feedback.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "failed to list feedback", err.Error(), requestID(c)))
		return
	}
	count, err := s.feedback.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeDatabaseError, "failed to count feedback", err.Error(), requestID(c)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": count, "feedback": entries})
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	checks := gin.H{}

	if s.health != nil {
		if err := s.health.Health(c.Request.Context()); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	checks["oracle"] = gin.H{
		"available": s.capability.Available,
		"backend":   s.capability.Backend,
		"model":     s.capability.Model,
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
