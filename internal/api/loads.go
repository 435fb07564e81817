package api

import (
	"encoding/json"
	"net/http"
	"time"

	"machtms/internal/auth"
	apperrors "machtms/internal/errors"
	"machtms/internal/tms"
)

// loadsRoute is the cache route for load listings.
const loadsRoute = "loads"

func (s *Server) registerLoadRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/loads", s.handle("loads.create", s.createLoad))
	mux.Handle("GET /api/v1/loads", s.handle("loads.list", s.listLoads))
	mux.Handle("GET /api/v1/loads/calendar-day", s.handle("loads.calendar_day", s.calendarDay))
	mux.Handle("GET /api/v1/loads/calendar-week", s.handle("loads.calendar_week", s.calendarWeek))
	mux.Handle("GET /api/v1/loads/{id}", s.handle("loads.get", s.getLoad))
	mux.Handle("PATCH /api/v1/loads/{id}", s.handle("loads.update", s.updateLoad))
	mux.Handle("DELETE /api/v1/loads/{id}", s.handle("loads.delete", s.deleteLoad))
	mux.Handle("POST /api/v1/loads/{id}/legs", s.handle("legs.create", s.addLeg))
	mux.Handle("DELETE /api/v1/legs/{id}", s.handle("legs.delete", s.deleteLeg))
	mux.Handle("POST /api/v1/legs/{id}/stops", s.handle("stops.create", s.addStop))
	mux.Handle("PUT /api/v1/stops/{id}", s.handle("stops.update", s.updateStop))
	mux.Handle("DELETE /api/v1/stops/{id}", s.handle("stops.delete", s.deleteStop))
}

func (s *Server) createLoad(w http.ResponseWriter, r *http.Request) {
	var payload tms.LoadCreationPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	load, err := s.deps.TMS.CreateLoad(r.Context(), auth.OrgFromContext(r.Context()), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	// New loads belong on pages that never listed them, so the whole
	// route is cleared.
	s.invalidateLoads(r, "")
	writeJSON(w, http.StatusCreated, load)
}

// listPage is the envelope every paginated listing uses.
type listPage struct {
	Results          any   `json:"results"`
	Count            int   `json:"count"`
	CurrentPage      int   `json:"current_page"`
	PageSize         int   `json:"page_size"`
	CurrentPageRange []int `json:"current_page_range"`
	HasNext          bool  `json:"has_next"`
}

func buildPage(results []*tms.LoadDetail, page, pageSize int, hasNext bool) listPage {
	start := 0
	end := 0
	if len(results) > 0 {
		start = (page-1)*pageSize + 1
		end = start + len(results) - 1
	}
	return listPage{
		Results:          results,
		Count:            len(results),
		CurrentPage:      page,
		PageSize:         pageSize,
		CurrentPageRange: []int{start, end},
		HasNext:          hasNext,
	}
}

func loadFilterFromQuery(r *http.Request) (tms.LoadFilter, int, int) {
	q := r.URL.Query()
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "page_size", 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := tms.LoadFilter{
		ReferenceNumber: q.Get("reference_number"),
		BOLNumber:       q.Get("bol_number"),
		CustomerID:      q.Get("customer"),
		TrailerType:     tms.TrailerType(q.Get("trailer_type")),
		// One extra row tells us whether a next page exists.
		Limit:  pageSize + 1,
		Offset: (page - 1) * pageSize,
	}
	for _, status := range q["status"] {
		filter.Statuses = append(filter.Statuses, tms.LoadStatus(status))
	}
	for _, status := range q["billing_status"] {
		filter.BillingStatuses = append(filter.BillingStatuses, tms.BillingStatus(status))
	}
	return filter, page, pageSize
}

func (s *Server) listLoads(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgFromContext(r.Context())
	rawQuery := r.URL.RawQuery

	if s.deps.Cache != nil {
		if entry, err := s.deps.Cache.Get(r.Context(), orgID, loadsRoute, rawQuery); err == nil && entry != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(entry.Data)
			return
		}
	}

	filter, page, pageSize := loadFilterFromQuery(r)
	results, err := s.deps.TMS.ListLoads(r.Context(), orgID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	hasNext := len(results) > pageSize
	if hasNext {
		results = results[:pageSize]
	}
	envelope := buildPage(results, page, pageSize, hasNext)

	body, err := json.Marshal(envelope)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeUnknown, err, "encode load page"))
		return
	}
	if s.deps.Cache != nil {
		ids := make([]string, len(results))
		for i, load := range results {
			ids[i] = load.ID
		}
		if _, err := s.deps.Cache.Save(r.Context(), orgID, loadsRoute, rawQuery, body, ids); err != nil {
			s.log.Warn("load page cache write failed", "error", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) getLoad(w http.ResponseWriter, r *http.Request) {
	load, err := s.deps.TMS.GetLoad(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, load)
}

// loadPatch mirrors tms.LoadUpdate on the wire; absent keys leave the
// field untouched.
type loadPatch struct {
	ReferenceNumber *string `json:"reference_number"`
	BOLNumber       *string `json:"bol_number"`
	CustomerID      *string `json:"customer"`
	Status          *string `json:"status"`
	BillingStatus   *string `json:"billing_status"`
	TrailerType     *string `json:"trailer_type"`
}

func (p loadPatch) toUpdate() tms.LoadUpdate {
	update := tms.LoadUpdate{
		ReferenceNumber: p.ReferenceNumber,
		BOLNumber:       p.BOLNumber,
		CustomerID:      p.CustomerID,
	}
	if p.Status != nil {
		status := tms.LoadStatus(*p.Status)
		update.Status = &status
	}
	if p.BillingStatus != nil {
		status := tms.BillingStatus(*p.BillingStatus)
		update.BillingStatus = &status
	}
	if p.TrailerType != nil {
		trailer := tms.TrailerType(*p.TrailerType)
		update.TrailerType = &trailer
	}
	return update
}

func (s *Server) updateLoad(w http.ResponseWriter, r *http.Request) {
	var patch loadPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	load, err := s.deps.TMS.UpdateLoad(r.Context(), auth.OrgFromContext(r.Context()), id, patch.toUpdate())
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateLoads(r, id)
	writeJSON(w, http.StatusOK, load)
}

func (s *Server) deleteLoad(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.TMS.DeleteLoad(r.Context(), auth.OrgFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateLoads(r, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) calendarDay(w http.ResponseWriter, r *http.Request) {
	day, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.deps.TMS.LoadsForDay(r.Context(), auth.OrgFromContext(r.Context()), day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format("2006-01-02"),
		"loads": entries,
	})
}

func (s *Server) calendarWeek(w http.ResponseWriter, r *http.Request) {
	day, err := parseDateParam(r, "week_start")
	if err != nil {
		writeError(w, err)
		return
	}
	days, err := s.deps.TMS.LoadsForWeek(r.Context(), auth.OrgFromContext(r.Context()), day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// parseDateParam reads a YYYY-MM-DD query parameter, defaulting to
// today in UTC.
func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.CodeInvalidArgument, err,
			name+" must be formatted YYYY-MM-DD")
	}
	return day, nil
}

func (s *Server) addLeg(w http.ResponseWriter, r *http.Request) {
	var payload tms.LegPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	loadID := r.PathValue("id")
	leg, err := s.deps.TMS.AddLeg(r.Context(), auth.OrgFromContext(r.Context()), loadID, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateLoads(r, loadID)
	writeJSON(w, http.StatusCreated, leg)
}

func (s *Server) deleteLeg(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgFromContext(r.Context())
	legID := r.PathValue("id")
	// Resolved up front; the leg row is gone after the delete.
	loadID, err := s.deps.TMS.LoadIDForLeg(r.Context(), orgID, legID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.TMS.DeleteLeg(r.Context(), orgID, legID); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateLoads(r, loadID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addStop(w http.ResponseWriter, r *http.Request) {
	var payload tms.StopPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	orgID := auth.OrgFromContext(r.Context())
	legID := r.PathValue("id")
	stop, err := s.deps.TMS.AddStop(r.Context(), orgID, legID, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	if loadID, err := s.deps.TMS.LoadIDForLeg(r.Context(), orgID, legID); err == nil {
		s.invalidateLoads(r, loadID)
	}
	writeJSON(w, http.StatusCreated, stop)
}

func (s *Server) updateStop(w http.ResponseWriter, r *http.Request) {
	var payload tms.StopPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	orgID := auth.OrgFromContext(r.Context())
	stopID := r.PathValue("id")
	stop, err := s.deps.TMS.UpdateStop(r.Context(), orgID, stopID, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	if loadID, err := s.deps.TMS.LoadIDForStop(r.Context(), orgID, stopID); err == nil {
		s.invalidateLoads(r, loadID)
	}
	writeJSON(w, http.StatusOK, stop)
}

func (s *Server) deleteStop(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgFromContext(r.Context())
	stopID := r.PathValue("id")
	// Resolved up front; the stop row is gone after the delete.
	loadID, err := s.deps.TMS.LoadIDForStop(r.Context(), orgID, stopID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.TMS.DeleteStop(r.Context(), orgID, stopID); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateLoads(r, loadID)
	w.WriteHeader(http.StatusNoContent)
}

// invalidateLoads drops cached load pages that showed the load. An
// empty id clears the whole route.
func (s *Server) invalidateLoads(r *http.Request, id string) {
	if s.deps.Cache == nil {
		return
	}
	orgID := auth.OrgFromContext(r.Context())
	if _, err := s.deps.Cache.Invalidate(r.Context(), orgID, loadsRoute, id); err != nil {
		s.log.Warn("load cache invalidation failed", "error", err)
	}
}
