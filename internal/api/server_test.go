package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"machtms/internal/auth"
	"machtms/internal/cache"
	"machtms/internal/documents"
	"machtms/internal/llm"
	"machtms/internal/task"
	"machtms/internal/tms"
)

const (
	testEmail    = "dispatch@machtms.test"
	testPassword = "hunter2"
)

// memObjects is an in-memory documents.ObjectStore.
type memObjects struct {
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Put(_ context.Context, bucket, key string, body []byte, _ string) error {
	m.objects[bucket+"/"+key] = append([]byte(nil), body...)
	return nil
}

func (m *memObjects) Get(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, io.EOF
	}
	return data, nil
}

// stubRunner answers agent chat with a fixed reply.
type stubRunner struct {
	reply string
	err   error
}

func (r stubRunner) Name() string        { return "stub" }
func (r stubRunner) Description() string { return "canned replies" }

func (r stubRunner) Run(context.Context, string) (string, error) {
	return r.reply, r.err
}

func (r stubRunner) RunStream(_ context.Context, _ string, handler llm.StreamHandler) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	for _, word := range strings.Fields(r.reply) {
		if err := handler(word); err != nil {
			return "", err
		}
	}
	return r.reply, nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store, err := auth.NewMemoryStore(nil)
	if err != nil {
		t.Fatalf("auth store: %v", err)
	}
	authSvc, err := auth.NewService(context.Background(), auth.Config{
		Secret: "test-secret",
		Seeds: []auth.Seed{{
			OrgID:    "org-1",
			Email:    testEmail,
			Password: testPassword,
			Roles:    []string{"dispatcher"},
		}},
	}, store)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	domain := tms.NewService(tms.NewMemoryStore(), nil)
	tasks := task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(16), 1)
	docs := documents.NewService(documents.NewMemoryStore(), newMemObjects(), domain, tasks,
		documents.Config{UploadBucket: "uploads", PostShipmentBucket: "post-shipment"})

	return Deps{
		Auth:      authSvc,
		TMS:       domain,
		Documents: docs,
		Tasks:     tasks,
		Agent:     stubRunner{reply: "load LD-1 is in transit"},
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	return NewServer(newTestDeps(t)).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/token", "",
		map[string]string{"email": testEmail, "password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body %s", rec.Code, rec.Body.String())
	}
	var pair auth.TokenPair
	decodeBody(t, rec, &pair)
	if pair.AccessToken == "" {
		t.Fatal("no access token issued")
	}
	return pair.AccessToken
}

func TestHealthzIsUnprotected(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	h := newTestHandler(t)
	for _, path := range []string{"/api/v1/loads", "/api/v1/carriers", "/api/v1/customers"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without token: status = %d", path, rec.Code)
		}
	}
}

func TestTokenIssueAndRefresh(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/token", "",
		map[string]string{"email": testEmail, "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/token", "",
		map[string]string{"email": testEmail, "password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d", rec.Code)
	}
	var pair auth.TokenPair
	decodeBody(t, rec, &pair)
	if pair.RefreshToken == "" {
		t.Fatal("no refresh token issued")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": pair.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}
	var refreshed auth.TokenPair
	decodeBody(t, rec, &refreshed)
	if refreshed.AccessToken == "" {
		t.Fatal("refresh returned no access token")
	}
}

func createTestAddress(t *testing.T, h http.Handler, token, street string) tms.Address {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/addresses", token, map[string]string{
		"street":   street,
		"city":     "Chicago",
		"state":    "IL",
		"zip_code": "60607",
		"country":  "USA",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create address status = %d, body %s", rec.Code, rec.Body.String())
	}
	var address tms.Address
	decodeBody(t, rec, &address)
	return address
}

func TestLoadLifecycle(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	pickup := createTestAddress(t, h, token, "100 Dock St")
	dropoff := createTestAddress(t, h, token, "200 Ramp Rd")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/customers", token,
		map[string]string{"customer_name": "Acme Logistics LLC"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer status = %d, body %s", rec.Code, rec.Body.String())
	}
	var customer tms.Customer
	decodeBody(t, rec, &customer)

	payload := tms.LoadCreationPayload{
		CustomerID:      customer.ID,
		ReferenceNumber: "REF-1001",
		Legs: []tms.LegPayload{{
			Stops: []tms.StopPayload{
				{StopNumber: 1, AddressID: pickup.ID, Action: "LL", StartRange: "2026-08-24T08:00:00Z"},
				{StopNumber: 2, AddressID: dropoff.ID, Action: "LU", StartRange: "2026-08-24T16:00:00Z"},
			},
		}},
	}
	rec = doJSON(t, h, http.MethodPost, "/api/v1/loads", token, payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create load status = %d, body %s", rec.Code, rec.Body.String())
	}
	var load tms.LoadDetail
	decodeBody(t, rec, &load)
	if load.ReferenceNumber != "REF-1001" {
		t.Fatalf("reference = %q", load.ReferenceNumber)
	}
	if len(load.Legs) != 1 || len(load.Legs[0].Stops) != 2 {
		t.Fatalf("load shape = %d legs", len(load.Legs))
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/loads/"+load.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get load status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/loads/"+load.ID, token,
		map[string]string{"bol_number": "BOL-77"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch load status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated tms.LoadDetail
	decodeBody(t, rec, &updated)
	if updated.BOLNumber != "BOL-77" {
		t.Fatalf("bol = %q", updated.BOLNumber)
	}
	if updated.ReferenceNumber != "REF-1001" {
		t.Fatalf("patch clobbered reference: %q", updated.ReferenceNumber)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/loads/"+load.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete load status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/v1/loads/"+load.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted load status = %d", rec.Code)
	}
}

func TestListLoadsPagination(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)
	address := createTestAddress(t, h, token, "1 Terminal Way")

	for i := 0; i < 3; i++ {
		payload := tms.LoadCreationPayload{
			ReferenceNumber: "REF-" + string(rune('A'+i)),
			Legs: []tms.LegPayload{{
				Stops: []tms.StopPayload{
					{StopNumber: 1, AddressID: address.ID, Action: "LL", StartRange: "2026-08-24T08:00:00Z"},
					{StopNumber: 2, AddressID: address.ID, Action: "LU", StartRange: "2026-08-24T12:00:00Z"},
				},
			}},
		}
		rec := doJSON(t, h, http.MethodPost, "/api/v1/loads", token, payload)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed load %d status = %d, body %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/v1/loads?page=1&page_size=2", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Results          []json.RawMessage `json:"results"`
		Count            int               `json:"count"`
		CurrentPage      int               `json:"current_page"`
		PageSize         int               `json:"page_size"`
		CurrentPageRange []int             `json:"current_page_range"`
		HasNext          bool              `json:"has_next"`
	}
	decodeBody(t, rec, &page)
	if page.Count != 2 || len(page.Results) != 2 {
		t.Fatalf("page 1 count = %d", page.Count)
	}
	if !page.HasNext {
		t.Fatal("page 1 should have a next page")
	}
	if page.CurrentPageRange[0] != 1 || page.CurrentPageRange[1] != 2 {
		t.Fatalf("page 1 range = %v", page.CurrentPageRange)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/loads?page=2&page_size=2", token, nil)
	decodeBody(t, rec, &page)
	if page.Count != 1 {
		t.Fatalf("page 2 count = %d", page.Count)
	}
	if page.HasNext {
		t.Fatal("page 2 should be the last page")
	}
	if page.CurrentPageRange[0] != 3 || page.CurrentPageRange[1] != 3 {
		t.Fatalf("page 2 range = %v", page.CurrentPageRange)
	}
}

// recordingCache is an in-memory ResponseCache that tracks what got
// invalidated.
type recordingCache struct {
	entries     map[string]*cache.Entry
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*cache.Entry)}
}

func (c *recordingCache) Get(_ context.Context, orgID, route, query string) (*cache.Entry, error) {
	return c.entries[cache.Key(orgID, route, query)], nil
}

func (c *recordingCache) Save(_ context.Context, orgID, route, query string, data []byte, idList []string) (bool, error) {
	c.entries[cache.Key(orgID, route, query)] = &cache.Entry{
		Data: data, Hash: cache.HashOf(data), IDList: idList,
	}
	return true, nil
}

func (c *recordingCache) Invalidate(_ context.Context, orgID, route, id string) (int, error) {
	c.invalidated = append(c.invalidated, route+"/"+id)
	removed := 0
	for key, entry := range c.entries {
		if !strings.HasPrefix(key, orgID+":"+route+":") {
			continue
		}
		if id != "" && !entry.Contains(id) {
			continue
		}
		delete(c.entries, key)
		removed++
	}
	return removed, nil
}

func TestLegAndStopMutationsDropCachedLoadPages(t *testing.T) {
	deps := newTestDeps(t)
	cached := newRecordingCache()
	deps.Cache = cached
	h := NewServer(deps).Handler()
	token := login(t, h)

	pickup := createTestAddress(t, h, token, "12 Dock St")
	dropoff := createTestAddress(t, h, token, "34 Ramp Rd")
	yard := createTestAddress(t, h, token, "56 Yard Ln")

	payload := tms.LoadCreationPayload{
		ReferenceNumber: "CACHE-1",
		Legs: []tms.LegPayload{{
			Stops: []tms.StopPayload{
				{StopNumber: 1, AddressID: pickup.ID, Action: "LL", StartRange: "2026-08-27T08:00:00Z"},
				{StopNumber: 2, AddressID: dropoff.ID, Action: "LU", StartRange: "2026-08-27T14:00:00Z"},
			},
		}},
	}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/loads", token, payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create load status = %d, body %s", rec.Code, rec.Body.String())
	}
	var load tms.LoadDetail
	decodeBody(t, rec, &load)
	legID := load.Legs[0].ID

	cachePage := func() {
		t.Helper()
		rec := doJSON(t, h, http.MethodGet, "/api/v1/loads", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list status = %d, body %s", rec.Code, rec.Body.String())
		}
		if len(cached.entries) == 0 {
			t.Fatal("load page was not cached")
		}
	}
	expectDropped := func(step string) {
		t.Helper()
		if len(cached.entries) != 0 {
			t.Fatalf("%s left stale load pages cached", step)
		}
	}

	cachePage()
	rec = doJSON(t, h, http.MethodPost, "/api/v1/legs/"+legID+"/stops", token, tms.StopPayload{
		StopNumber: 3, AddressID: yard.ID, Action: "EMPD", StartRange: "2026-08-27T18:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add stop status = %d, body %s", rec.Code, rec.Body.String())
	}
	var stop tms.Stop
	decodeBody(t, rec, &stop)
	expectDropped("add stop")

	cachePage()
	rec = doJSON(t, h, http.MethodPut, "/api/v1/stops/"+stop.ID, token, tms.StopPayload{
		StopNumber: 3, AddressID: yard.ID, Action: "EMPD", StartRange: "2026-08-27T19:00:00Z",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update stop status = %d, body %s", rec.Code, rec.Body.String())
	}
	expectDropped("update stop")

	cachePage()
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/stops/"+stop.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete stop status = %d, body %s", rec.Code, rec.Body.String())
	}
	expectDropped("delete stop")

	rec = doJSON(t, h, http.MethodPost, "/api/v1/loads/"+load.ID+"/legs", token, tms.LegPayload{
		Stops: []tms.StopPayload{
			{StopNumber: 1, AddressID: yard.ID, Action: "LL", StartRange: "2026-08-28T08:00:00Z"},
			{StopNumber: 2, AddressID: dropoff.ID, Action: "LU", StartRange: "2026-08-28T12:00:00Z"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add leg status = %d, body %s", rec.Code, rec.Body.String())
	}
	var second tms.LegDetail
	decodeBody(t, rec, &second)

	cachePage()
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/legs/"+second.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete leg status = %d, body %s", rec.Code, rec.Body.String())
	}
	expectDropped("delete leg")

	for _, record := range cached.invalidated[len(cached.invalidated)-4:] {
		if record != "loads/"+load.ID {
			t.Fatalf("invalidation = %q, want loads/%s", record, load.ID)
		}
	}
}

func TestDriverSwapEndpoint(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)
	address := createTestAddress(t, h, token, "55 Yard Ave")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/carriers", token,
		map[string]string{"carrier_name": "Blue Line Freight"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create carrier status = %d, body %s", rec.Code, rec.Body.String())
	}
	var carrier tms.Carrier
	decodeBody(t, rec, &carrier)

	drivers := make([]tms.Driver, 0, 2)
	for _, name := range []string{"Sam", "Alex"} {
		rec = doJSON(t, h, http.MethodPost, "/api/v1/drivers", token, map[string]string{
			"first_name":   name,
			"last_name":    "Rivera",
			"phone_number": "312-555-0100",
			"carrier_id":   carrier.ID,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create driver status = %d, body %s", rec.Code, rec.Body.String())
		}
		var driver tms.Driver
		decodeBody(t, rec, &driver)
		drivers = append(drivers, driver)
	}

	legs := make([]tms.LegDetail, 0, 2)
	for i, driver := range drivers {
		payload := tms.LoadCreationPayload{
			ReferenceNumber: "SWAP-" + string(rune('1'+i)),
			Legs: []tms.LegPayload{{
				Stops: []tms.StopPayload{
					{StopNumber: 1, AddressID: address.ID, Action: "LL", StartRange: "2026-08-25T06:00:00Z"},
					{StopNumber: 2, AddressID: address.ID, Action: "LU", StartRange: "2026-08-25T10:00:00Z"},
				},
				Assignment: &tms.AssignmentPayload{CarrierID: carrier.ID, DriverID: driver.ID},
			}},
		}
		rec = doJSON(t, h, http.MethodPost, "/api/v1/loads", token, payload)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create load %d status = %d, body %s", i, rec.Code, rec.Body.String())
		}
		var load tms.LoadDetail
		decodeBody(t, rec, &load)
		legs = append(legs, load.Legs[0])
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/assignments/swap", token, map[string]any{
		"swap": []tms.SwapPair{
			{LegID: legs[0].ID, DriverID: drivers[1].ID},
			{LegID: legs[1].ID, DriverID: drivers[0].ID},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("swap status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/loads/"+legs[0].LoadID, token, nil)
	var load tms.LoadDetail
	decodeBody(t, rec, &load)
	if got := load.Legs[0].Assignments[0].DriverID; got != drivers[1].ID {
		t.Fatalf("leg 0 driver after swap = %s, want %s", got, drivers[1].ID)
	}
}

func TestDocumentSessionRoutes(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)
	address := createTestAddress(t, h, token, "9 Pier Blvd")

	payload := tms.LoadCreationPayload{
		ReferenceNumber: "DOC-1",
		Legs: []tms.LegPayload{{
			Stops: []tms.StopPayload{
				{StopNumber: 1, AddressID: address.ID, Action: "LL", StartRange: "2026-08-26T08:00:00Z"},
				{StopNumber: 2, AddressID: address.ID, Action: "LU", StartRange: "2026-08-26T14:00:00Z"},
			},
		}},
	}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/loads", token, payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create load status = %d, body %s", rec.Code, rec.Body.String())
	}
	var load tms.LoadDetail
	decodeBody(t, rec, &load)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/loads/"+load.ID+"/documents/session", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session status = %d, body %s", rec.Code, rec.Body.String())
	}
	var session struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &session)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/documents/sessions/"+session.ID+"/uploads", token,
		registerUploadRequest{ObjectKey: "staging/pod-1.pdf", FileName: "pod-1.pdf",
			ContentType: "application/pdf", Category: "POD"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/documents/sessions/"+session.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session status = %d, body %s", rec.Code, rec.Body.String())
	}
	var status struct {
		Uploads []json.RawMessage `json:"uploads"`
	}
	decodeBody(t, rec, &status)
	if len(status.Uploads) != 1 {
		t.Fatalf("uploads = %d", len(status.Uploads))
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/documents/sessions/"+session.ID+"/finalize", token, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("finalize status = %d, body %s", rec.Code, rec.Body.String())
	}
	var queued struct {
		TaskID string `json:"task_id"`
	}
	decodeBody(t, rec, &queued)
	if queued.TaskID == "" {
		t.Fatal("finalize returned no task id")
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/tasks/"+queued.TaskID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("task lookup status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAgentChat(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/agent/chat", token,
		map[string]string{"message": "where is load LD-1?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body %s", rec.Code, rec.Body.String())
	}
	var reply struct {
		Reply string `json:"reply"`
	}
	decodeBody(t, rec, &reply)
	if reply.Reply != "load LD-1 is in transit" {
		t.Fatalf("reply = %q", reply.Reply)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/agent/chat", token,
		map[string]string{"message": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank message status = %d", rec.Code)
	}
}

func TestAgentChatStream(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/agent/chat/stream", token,
		map[string]string{"message": "status of LD-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("stream status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "data: load") {
		t.Fatalf("stream missing deltas: %q", body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Fatalf("stream missing terminator: %q", body)
	}
}

func TestValidationErrorShape(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	payload := tms.LoadCreationPayload{
		Legs: []tms.LegPayload{{Stops: []tms.StopPayload{}}},
	}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/loads", token, payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error.Code == "" || body.Error.Message == "" {
		t.Fatalf("error body = %s", rec.Body.String())
	}
}
