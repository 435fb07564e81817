package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"machtms/internal/auth"
	"machtms/internal/billing"
	apperrors "machtms/internal/errors"
)

func (s *Server) registerBillingRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/loads/{id}/invoice", s.handle("billing.send_invoice", s.sendInvoice))
	mux.Handle("GET /api/v1/loads/{id}/invoices", s.handle("billing.invoices", s.listInvoices))
	mux.Handle("GET /api/v1/loads/{id}/invoice-logs", s.handle("billing.invoice_logs", s.listInvoiceLogs))
	mux.Handle("GET /api/v1/billing/invoice-logs/{id}", s.handle("billing.invoice_log", s.getInvoiceLog))
	mux.Handle("GET /api/v1/billing/profile", s.handle("billing.profile", s.getBillingProfile))
	mux.Handle("PUT /api/v1/billing/profile", s.handle("billing.save_profile", s.saveBillingProfile))
	mux.Handle("GET /api/v1/billing/gmail/connect", s.handle("billing.gmail_connect", s.gmailConnect))
	mux.Handle("GET /api/v1/billing/gmail/callback", s.handle("billing.gmail_callback", s.gmailCallback))
	mux.Handle("GET /api/v1/billing/gmail/status", s.handle("billing.gmail_status", s.gmailStatus))
}

func (s *Server) sendInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeValidation, err, "amount must be a decimal number"))
		return
	}
	log, err := s.deps.Billing.SendInvoice(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, log)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.deps.Billing.ListInvoices(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": invoices})
}

func (s *Server) listInvoiceLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.deps.Billing.ListInvoiceLogs(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": logs})
}

func (s *Server) getInvoiceLog(w http.ResponseWriter, r *http.Request) {
	log, err := s.deps.Billing.InvoiceLog(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (s *Server) getBillingProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Billing.Profile(r.Context(), auth.OrgFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) saveBillingProfile(w http.ResponseWriter, r *http.Request) {
	var req billing.OrganizationProfile
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	profile, err := s.deps.Billing.SaveProfile(r.Context(), auth.OrgFromContext(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// gmailConnect starts the OAuth consent flow. The organization id
// rides along as the state parameter and is checked on the callback.
func (s *Server) gmailConnect(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gmail == nil {
		writeError(w, apperrors.New(apperrors.CodeInitializationFailure, "gmail oauth is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": s.deps.Gmail.AuthURL(auth.OrgFromContext(r.Context())),
	})
}

func (s *Server) gmailCallback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gmail == nil {
		writeError(w, apperrors.New(apperrors.CodeInitializationFailure, "gmail oauth is not configured"))
		return
	}
	orgID := auth.OrgFromContext(r.Context())
	q := r.URL.Query()
	if state := q.Get("state"); state != "" && state != orgID {
		writeError(w, apperrors.New(apperrors.CodePermissionDenied, "oauth state does not match the organization"))
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "missing oauth code"))
		return
	}
	sender := q.Get("sender")
	token, err := s.deps.Gmail.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	credential, err := s.deps.Billing.SaveCredential(r.Context(), orgID, sender, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credential)
}

func (s *Server) gmailStatus(w http.ResponseWriter, r *http.Request) {
	credential, err := s.deps.Billing.Credential(r.Context(), auth.OrgFromContext(r.Context()))
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			writeJSON(w, http.StatusOK, map[string]any{"connected": false})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":  true,
		"sender":     credential.Sender,
		"updated_at": credential.UpdatedAt,
	})
}
