package api

import (
	"net/http"

	"machtms/internal/auth"
	"machtms/internal/tms"
)

func (s *Server) registerAssignmentRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/legs/{id}/assignment", s.handle("assignments.create", s.assignLeg))
	mux.Handle("POST /api/v1/assignments/delete", s.handle("assignments.delete", s.deleteAssignments))
	mux.Handle("POST /api/v1/assignments/swap", s.handle("assignments.swap", s.swapDrivers))
}

func (s *Server) assignLeg(w http.ResponseWriter, r *http.Request) {
	var payload tms.AssignmentPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	assignment, err := s.deps.TMS.AssignLeg(r.Context(), auth.OrgFromContext(r.Context()),
		r.PathValue("id"), payload.CarrierID, payload.DriverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (s *Server) deleteAssignments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.TMS.DeleteAssignments(r.Context(), auth.OrgFromContext(r.Context()), req.IDs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) swapDrivers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Swap []tms.SwapPair `json:"swap"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.TMS.ApplySwap(r.Context(), auth.OrgFromContext(r.Context()), req.Swap); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "swapped"})
}
