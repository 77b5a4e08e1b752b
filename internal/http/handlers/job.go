package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/platewatch/platewatch-backend/internal/http/response"
	"github.com/platewatch/platewatch-backend/internal/jobs"
	"github.com/platewatch/platewatch-backend/internal/repos"
	"github.com/platewatch/platewatch-backend/internal/types"
)

// JobHandler is the admin trigger surface: it enqueues a background run and
// returns 202 without waiting for the worker.
type JobHandler struct {
	repo     repos.JobRunRepo
	registry *jobs.Registry
}

func NewJobHandler(repo repos.JobRunRepo, registry *jobs.Registry) *JobHandler {
	return &JobHandler{repo: repo, registry: registry}
}

// POST /admin/jobs/:type
// Request body, if present, is stored verbatim as the job payload.
func (h *JobHandler) Enqueue(c *gin.Context) {
	jobType := c.Param("type")
	if !h.registry.Known(jobType) {
		response.RespondError(c, http.StatusNotFound, "unknown_job_type", fmt.Errorf("unknown job type %q", jobType))
		return
	}

	var payload datatypes.JSON
	if c.Request.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "bad_payload", err)
			return
		}
		if len(raw) > 0 {
			payload = datatypes.JSON(raw)
		}
	}

	job, err := h.repo.Enqueue(c.Request.Context(), nil, &types.JobRun{
		JobType: jobType,
		Payload: payload,
	})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job_id": job.ID, "job_type": job.JobType, "status": job.Status})
}

// POST /trigger-update
// Compatibility alias for the feed refresh job.
func (h *JobHandler) TriggerUpdate(c *gin.Context) {
	job, err := h.repo.Enqueue(c.Request.Context(), nil, &types.JobRun{
		JobType: jobs.TypeIngestUpdate,
	})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job_id": job.ID, "status": job.Status})
}

// GET /admin/jobs/:type/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.repo.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "job_lookup_failed", err)
		return
	}
	if job == nil {
		response.RespondError(c, http.StatusNotFound, "job_not_found", fmt.Errorf("no job run with id %s", id))
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
