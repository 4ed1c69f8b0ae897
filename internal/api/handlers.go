package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
)

// maxBatchBytes caps the accepted batch body size.
const maxBatchBytes = 64 << 20

// handleNormalize runs the full pipeline over a JSON batch of tool call
// records. With ?store=true the resulting calls are also persisted.
func (s *Server) handleNormalize(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBatchBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, domain.NewBatchError(
			domain.ErrInvalidInput, "failed to read request body", err.Error()))
		return
	}

	result, err := s.engine.ProcessBatch(c.Request.Context(), body)
	if err != nil {
		var batchErr *domain.BatchError
		if errors.As(err, &batchErr) {
			c.JSON(http.StatusBadRequest, batchErr)
			return
		}
		s.logger.WithError(err).Error("Batch processing failed")
		c.JSON(http.StatusInternalServerError, domain.NewBatchError(
			domain.ErrInternalServer, "batch processing failed", ""))
		return
	}

	if c.Query("store") == "true" && s.repository != nil {
		for i := range result.Calls {
			if err := s.repository.Save(c.Request.Context(), &result.Calls[i]); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"sample_id": result.Calls[i].SampleID,
					"gene":      result.Calls[i].Gene,
				}).Error("Failed to store consensus call")
				c.JSON(http.StatusInternalServerError, domain.NewBatchError(
					domain.ErrDatabaseError, "failed to store consensus calls", err.Error()))
				return
			}
		}
	}

	c.JSON(http.StatusOK, result)
}

// handleGetConsensus returns the stored consensus call for one sample
// and gene.
func (s *Server) handleGetConsensus(c *gin.Context) {
	if s.repository == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewBatchError(
			domain.ErrDatabaseError, "consensus store not configured", ""))
		return
	}

	sampleID := c.Param("sample_id")
	gene := c.Param("gene")

	call, err := s.repository.Get(c.Request.Context(), sampleID, gene)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load consensus call")
		c.JSON(http.StatusInternalServerError, domain.NewBatchError(
			domain.ErrDatabaseError, "failed to load consensus call", ""))
		return
	}
	if call == nil {
		c.JSON(http.StatusNotFound, domain.NewBatchError(
			domain.ErrNotFound, "no consensus call for sample and gene", ""))
		return
	}

	c.JSON(http.StatusOK, call)
}

// handleListConsensus lists stored consensus calls, filtered by query
// parameters.
func (s *Server) handleListConsensus(c *gin.Context) {
	if s.repository == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewBatchError(
			domain.ErrDatabaseError, "consensus store not configured", ""))
		return
	}

	filter := domain.ConsensusFilter{
		SampleID: c.Query("sample_id"),
		Gene:     c.Query("gene"),
		Method:   domain.ResolutionMethod(c.Query("method")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, domain.NewBatchError(
				domain.ErrInvalidInput, "limit must be a positive integer", raw))
			return
		}
		filter.Limit = limit
	}

	calls, err := s.repository.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list consensus calls")
		c.JSON(http.StatusInternalServerError, domain.NewBatchError(
			domain.ErrDatabaseError, "failed to list consensus calls", ""))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"calls": calls,
		"count": len(calls),
	})
}

// handleReferenceVersions reports the loaded reference table versions.
func (s *Server) handleReferenceVersions(c *gin.Context) {
	c.JSON(http.StatusOK, s.versions)
}
