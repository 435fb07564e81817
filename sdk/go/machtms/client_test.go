package machtms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/token" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode login: %v", err)
		}
		if req["email"] != "dispatch@machtms.test" {
			t.Fatalf("email = %q", req["email"])
		}
		json.NewEncoder(w).Encode(TokenPair{AccessToken: "tok-123", TokenType: "Bearer"})
	}))
	defer server.Close()

	client := New(server.URL)
	pair, err := client.Login(context.Background(), "dispatch@machtms.test", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken != "tok-123" {
		t.Fatalf("access token = %q", pair.AccessToken)
	}
	if client.token != "tok-123" {
		t.Fatal("client did not keep the access token")
	}
}

func TestRequestsCarryBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Fatalf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(Load{ID: "ld-1", ReferenceNumber: "REF-9"})
	}))
	defer server.Close()

	client := New(server.URL, WithToken("tok-abc"))
	load, err := client.GetLoad(context.Background(), "ld-1")
	if err != nil {
		t.Fatalf("GetLoad: %v", err)
	}
	if load.ReferenceNumber != "REF-9" {
		t.Fatalf("reference = %q", load.ReferenceNumber)
	}
}

func TestListLoadsEncodesFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("page_size") != "25" {
			t.Fatalf("pagination query = %v", q)
		}
		if q.Get("customer") != "cust-1" {
			t.Fatalf("customer = %q", q.Get("customer"))
		}
		if got := q["status"]; len(got) != 2 || got[0] != "pending" || got[1] != "in_transit" {
			t.Fatalf("status = %v", got)
		}
		json.NewEncoder(w).Encode(LoadPage{
			Results:     []Load{{ID: "ld-1"}},
			Count:       1,
			CurrentPage: 2,
			PageSize:    25,
			HasNext:     false,
		})
	}))
	defer server.Close()

	client := New(server.URL, WithToken("tok"))
	page, err := client.ListLoads(context.Background(), ListLoadsOptions{
		Page:       2,
		PageSize:   25,
		CustomerID: "cust-1",
		Statuses:   []string{"pending", "in_transit"},
	})
	if err != nil {
		t.Fatalf("ListLoads: %v", err)
	}
	if page.CurrentPage != 2 || len(page.Results) != 1 {
		t.Fatalf("page = %+v", page)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"load ld-404 not found"}}`))
	}))
	defer server.Close()

	client := New(server.URL, WithToken("tok"))
	_, err := client.GetLoad(context.Background(), "ld-404")
	if err == nil {
		t.Fatal("expected an error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if apiErr.Message != "load ld-404 not found" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestSendInvoiceAndPollLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/loads/ld-1/invoice":
			if r.Method != http.MethodPost {
				t.Fatalf("method = %s", r.Method)
			}
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if req["amount"] != "1850.00" {
				t.Fatalf("amount = %q", req["amount"])
			}
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(InvoiceLog{ID: "log-1", LoadID: "ld-1", Status: "processing"})
		case "/api/v1/billing/invoice-logs/log-1":
			json.NewEncoder(w).Encode(InvoiceLog{ID: "log-1", LoadID: "ld-1", Status: "success"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL, WithToken("tok"))
	log, err := client.SendInvoice(context.Background(), "ld-1", "1850.00")
	if err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if log.Status != "processing" {
		t.Fatalf("status = %q", log.Status)
	}

	log, err = client.GetInvoiceLog(context.Background(), log.ID)
	if err != nil {
		t.Fatalf("GetInvoiceLog: %v", err)
	}
	if log.Status != "success" {
		t.Fatalf("polled status = %q", log.Status)
	}
}
