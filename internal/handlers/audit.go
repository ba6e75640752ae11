package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/services"
)

type AuditHandler struct {
	auditor *services.ChainAuditor
	actors  ActorResolver
	log     *logging.Logger
}

func NewAuditHandler(auditor *services.ChainAuditor, actors ActorResolver, log *logging.Logger) *AuditHandler {
	return &AuditHandler{auditor: auditor, actors: actors, log: log}
}

// Chain handles GET /api/audit/chain. A broken chain answers 500 with the
// full report so the operator sees every violation.
func (h *AuditHandler) Chain(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Actor(r.Context())
	if err != nil {
		writeError(w, r, h.log, services.ErrForbidden)
		return
	}
	report, err := h.auditor.Verify(r.Context(), actor)
	if errors.Is(err, services.ErrIntegrityViolation) && report != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "integrity_violation", report)
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
