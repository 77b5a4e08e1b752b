package jobs

import (
	"context"
	"encoding/json"

	"github.com/platewatch/platewatch-backend/internal/services"
)

// Job types accepted by the admin trigger surface.
const (
	TypeIngestUpdate     = "ingest_update"
	TypeDetectGradeShift = "detect_grade_transitions"
	TypeReconcilePending = "reconcile_pending"
	TypeMatchExternalIDs = "match_external_ids"
	TypeEnrichDetails    = "enrich_details"
	TypeRenormalize      = "renormalize"
	TypePruneViolations  = "prune_violations"
)

type IngestUpdateHandler struct {
	Ingest          *services.IngestService
	DefaultDaysBack int
}

func (h *IngestUpdateHandler) Type() string { return TypeIngestUpdate }

func (h *IngestUpdateHandler) Run(ctx context.Context, payload json.RawMessage) error {
	daysBack := h.DefaultDaysBack
	var p struct {
		DaysBack int `json:"days_back"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err == nil && p.DaysBack > 0 {
			daysBack = p.DaysBack
		}
	}
	_, err := h.Ingest.RunUpdate(ctx, daysBack)
	return err
}

type DetectTransitionsHandler struct {
	Grades *services.GradeLogService
}

func (h *DetectTransitionsHandler) Type() string { return TypeDetectGradeShift }

func (h *DetectTransitionsHandler) Run(ctx context.Context, _ json.RawMessage) error {
	_, err := h.Grades.DetectTransitions(ctx)
	return err
}

type ReconcilePendingHandler struct {
	Grades *services.GradeLogService
}

func (h *ReconcilePendingHandler) Type() string { return TypeReconcilePending }

func (h *ReconcilePendingHandler) Run(ctx context.Context, _ json.RawMessage) error {
	_, err := h.Grades.ReconcilePending(ctx)
	return err
}

type MatchExternalIDsHandler struct {
	Enrich *services.EnrichService
}

func (h *MatchExternalIDsHandler) Type() string { return TypeMatchExternalIDs }

func (h *MatchExternalIDsHandler) Run(ctx context.Context, _ json.RawMessage) error {
	_, err := h.Enrich.MatchExternalIDs(ctx)
	return err
}

type EnrichDetailsHandler struct {
	Enrich *services.EnrichService
}

func (h *EnrichDetailsHandler) Type() string { return TypeEnrichDetails }

func (h *EnrichDetailsHandler) Run(ctx context.Context, _ json.RawMessage) error {
	_, err := h.Enrich.EnrichDetails(ctx)
	return err
}

type RenormalizeHandler struct {
	Renormalize *services.RenormalizeService
}

func (h *RenormalizeHandler) Type() string { return TypeRenormalize }

func (h *RenormalizeHandler) Run(ctx context.Context, _ json.RawMessage) error {
	_, err := h.Renormalize.Run(ctx)
	return err
}

type PruneViolationsHandler struct {
	Retention    *services.RetentionService
	DefaultYears int
}

func (h *PruneViolationsHandler) Type() string { return TypePruneViolations }

func (h *PruneViolationsHandler) Run(ctx context.Context, payload json.RawMessage) error {
	years := h.DefaultYears
	var p struct {
		Years int `json:"years"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err == nil && p.Years > 0 {
			years = p.Years
		}
	}
	_, err := h.Retention.PruneViolations(ctx, years)
	return err
}
