package server

import (
	"encoding/json"
	"net/http"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/wire"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": ir.EngineVersion,
		"online":  len(s.ws.Doc.Awareness().Users()),
	})
}

// handleEvent handles POST /v1/events.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev ir.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, err.Error())
		return
	}

	if err := s.ws.Processor.ProcessEvent(r.Context(), ev, requestContext(r.Context())); err != nil {
		status, apiErr := classify(err)
		logFor(r.Context()).Warn("event rejected", "type", ev.Type, "code", apiErr.Code, "error", err)
		writeAPIError(w, status, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBatch handles POST /v1/events/batch. Events run in order and the
// batch stops at the first failure; earlier events stay applied.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req wire.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, err.Error())
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "events is empty")
		return
	}

	if err := s.ws.Processor.Batch(r.Context(), req.Events, requestContext(r.Context())); err != nil {
		status, apiErr := classify(err)
		if apiErr.Code == wire.CodeInternal && apiErr.Index != nil {
			apiErr.Code = wire.CodeBatchFailed
		}
		logFor(r.Context()).Warn("batch rejected", "size", len(req.Events), "code", apiErr.Code, "error", err)
		writeAPIError(w, status, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDigest handles GET /v1/state/digest.
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := s.ws.Doc.Digest()
	if err != nil {
		logFor(r.Context()).Error("state digest", "error", err)
		writeError(w, http.StatusInternalServerError, wire.CodeInternal, "failed to compute digest")
		return
	}
	writeJSON(w, http.StatusOK, wire.DigestResponse{
		Digest:     digest,
		Containers: s.ws.Doc.Names(),
		Seq:        s.ws.Processor.Clock().Current(),
	})
}
