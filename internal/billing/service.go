package billing

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"machtms/internal/documents"
	apperrors "machtms/internal/errors"
	"machtms/internal/task"
	"machtms/internal/tms"
	"machtms/pkg/logger"
)

// DocumentSource lists the finished documents attached to a load.
type DocumentSource interface {
	ListLoadDocuments(ctx context.Context, orgID, loadID string) ([]*documents.PostShipmentDocument, error)
}

// TaskSubmitter enqueues background work.
type TaskSubmitter interface {
	Submit(ctx context.Context, orgID string, kind task.Kind, payload any) (*task.Task, error)
}

// Config tunes invoice delivery. DebugRecipient, when set, redirects
// every invoice email away from real customers.
type Config struct {
	PostShipmentBucket string
	DebugRecipient     string
}

// Service creates invoices and emails them with the load's paperwork.
type Service struct {
	store   Store
	domain  *tms.Service
	docs    DocumentSource
	objects documents.ObjectStore
	sender  Sender
	tasks   TaskSubmitter
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewService wires the billing flow.
func NewService(store Store, domain *tms.Service, docs DocumentSource, objects documents.ObjectStore, sender Sender, tasks TaskSubmitter, cfg Config) *Service {
	return &Service{
		store:   store,
		domain:  domain,
		docs:    docs,
		objects: objects,
		sender:  sender,
		tasks:   tasks,
		cfg:     cfg,
		log:     logger.Named("billing"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SaveCredential stores the token pair obtained from the OAuth
// callback as the organization's sending account.
func (s *Service) SaveCredential(ctx context.Context, orgID, sender string, token *oauth2.Token) (*GmailCredential, error) {
	if sender == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "sender address is required")
	}
	credential := &GmailCredential{
		OrgID:        orgID,
		Sender:       sender,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		UpdatedAt:    s.now().UTC(),
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		credential.TokenExpiry = &expiry
	}
	if err := s.store.SaveCredential(ctx, credential); err != nil {
		return nil, err
	}
	s.log.Info("gmail account connected", "org_id", orgID, "sender", sender)
	return credential, nil
}

// Credential returns the organization's connected sending account.
func (s *Service) Credential(ctx context.Context, orgID string) (*GmailCredential, error) {
	return s.store.GetCredential(ctx, orgID)
}

// Profile returns the organization's billing profile.
func (s *Service) Profile(ctx context.Context, orgID string) (*OrganizationProfile, error) {
	return s.store.GetProfile(ctx, orgID)
}

// SaveProfile upserts the company identity printed on invoices. The
// invoice counter is managed by the store and cannot be set here.
func (s *Service) SaveProfile(ctx context.Context, orgID string, profile OrganizationProfile) (*OrganizationProfile, error) {
	if strings.TrimSpace(profile.CompanyName) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "company name is required")
	}
	profile.OrgID = orgID
	profile.InvoiceCounter = 0
	profile.UpdatedAt = s.now().UTC()
	if err := s.store.SaveProfile(ctx, &profile); err != nil {
		return nil, err
	}
	return s.store.GetProfile(ctx, orgID)
}

// SendInvoice creates the invoice and its delivery log, then queues
// the email. The log is returned immediately so callers can poll it.
func (s *Service) SendInvoice(ctx context.Context, orgID, loadID string, amount decimal.Decimal) (*GmailInvoiceLog, error) {
	if amount.IsNegative() {
		return nil, apperrors.New(apperrors.CodeValidation, "invoice amount cannot be negative")
	}
	load, err := s.domain.GetLoad(ctx, orgID, loadID)
	if err != nil {
		return nil, err
	}
	if load.Customer == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "load has no customer to invoice")
	}
	if _, err := s.store.GetCredential(ctx, orgID); err != nil {
		return nil, err
	}
	recipient, err := s.resolveRecipient(ctx, orgID, load.Customer.ID)
	if err != nil {
		return nil, err
	}

	number, err := s.store.NextInvoiceNumber(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	invoice := &Invoice{
		ID:        s.newID(),
		Number:    strconv.FormatInt(number, 10),
		OrgID:     orgID,
		LoadID:    loadID,
		Amount:    amount,
		CreatedAt: now,
	}
	if err := s.store.CreateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	log := &GmailInvoiceLog{
		ID:        s.newID(),
		OrgID:     orgID,
		LoadID:    loadID,
		InvoiceID: invoice.ID,
		Recipient: recipient,
		Status:    LogProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateInvoiceLog(ctx, log); err != nil {
		return nil, err
	}
	if s.tasks == nil {
		return nil, apperrors.New(apperrors.CodeInitializationFailure,
			"billing has no task queue")
	}
	if _, err := s.tasks.Submit(ctx, orgID, task.KindInvoiceEmail, task.InvoiceEmailPayload{
		LoadID:       loadID,
		InvoiceLogID: log.ID,
	}); err != nil {
		return nil, err
	}
	return log, nil
}

// InvoiceLog returns one delivery log.
func (s *Service) InvoiceLog(ctx context.Context, orgID, id string) (*GmailInvoiceLog, error) {
	return s.store.GetInvoiceLog(ctx, orgID, id)
}

// ListInvoiceLogs returns a load's delivery logs.
func (s *Service) ListInvoiceLogs(ctx context.Context, orgID, loadID string) ([]*GmailInvoiceLog, error) {
	return s.store.ListInvoiceLogsByLoad(ctx, orgID, loadID)
}

// ListInvoices returns a load's invoices.
func (s *Service) ListInvoices(ctx context.Context, orgID, loadID string) ([]*Invoice, error) {
	return s.store.ListInvoicesByLoad(ctx, orgID, loadID)
}

// HandleInvoiceEmailTask is the billing.invoice_email task handler.
func (s *Service) HandleInvoiceEmailTask(ctx context.Context, t *task.Task) (string, error) {
	var payload task.InvoiceEmailPayload
	if err := t.DecodePayload(&payload); err != nil {
		return "", err
	}
	return s.ProcessInvoiceEmail(ctx, t.OrgID, payload.InvoiceLogID)
}

// ProcessInvoiceEmail gathers the load's paperwork, renders the
// invoice, and sends everything to the log's recipient. The log is
// marked success or error on the way out.
func (s *Service) ProcessInvoiceEmail(ctx context.Context, orgID, logID string) (string, error) {
	log, err := s.store.GetInvoiceLog(ctx, orgID, logID)
	if err != nil {
		return "", err
	}
	summary, err := s.deliver(ctx, log)
	if err != nil {
		s.markLog(ctx, log, LogError, err.Error())
		return "", err
	}
	s.markLog(ctx, log, LogSuccess, "")
	return summary, nil
}

func (s *Service) deliver(ctx context.Context, log *GmailInvoiceLog) (string, error) {
	invoice, err := s.store.GetInvoice(ctx, log.OrgID, log.InvoiceID)
	if err != nil {
		return "", err
	}
	load, err := s.domain.GetLoad(ctx, log.OrgID, log.LoadID)
	if err != nil {
		return "", err
	}
	if load.Customer == nil {
		return "", apperrors.New(apperrors.CodeValidation, "load has no customer to invoice")
	}
	credential, err := s.store.GetCredential(ctx, log.OrgID)
	if err != nil {
		return "", err
	}
	profile, err := s.store.GetProfile(ctx, log.OrgID)
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			return "", err
		}
		profile = &OrganizationProfile{}
	}

	invoicePDF, err := s.renderInvoice(ctx, invoice, load, profile)
	if err != nil {
		return "", err
	}
	objectKey, err := s.storeInvoice(ctx, invoice, load, invoicePDF)
	if err != nil {
		return "", err
	}
	invoice.ObjectKey = objectKey
	if err := s.store.UpdateInvoice(ctx, invoice); err != nil {
		return "", err
	}

	attachments := []Attachment{{
		FileName: InvoiceFileName(load.Customer.Name, invoice.Number, load.ReferenceNumber),
		Data:     invoicePDF,
	}}
	paperwork, err := s.gatherPaperwork(ctx, load)
	if err != nil {
		return "", err
	}
	attachments = append(attachments, paperwork...)

	subject := InvoiceSubject(load.Customer.Name, load.ReferenceNumber)
	body := InvoiceBody(load.ReferenceNumber, profile.RemitMessage)
	raw, err := BuildMIMEMessage(credential.Sender, log.Recipient, subject, body, attachments)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeExecutorFailure, err, "build invoice email")
	}
	refreshed, err := s.sender.Send(ctx, credential, raw)
	if err != nil {
		return "", err
	}
	s.persistRefreshedToken(ctx, credential, refreshed)

	billed := tms.BillingBilled
	update := tms.LoadUpdate{BillingStatus: &billed, InvoiceID: &invoice.Number}
	if _, err := s.domain.UpdateLoad(ctx, log.OrgID, load.ID, update); err != nil {
		s.log.Error("failed to mark load billed",
			"org_id", log.OrgID, "load_id", load.ID, "error", err)
	}

	s.log.Info("invoice sent",
		"org_id", log.OrgID,
		"load_id", load.ID,
		"invoice_id", invoice.ID,
		"recipient", log.Recipient,
		"attachments", len(attachments),
	)
	return "invoice " + invoice.ID + " sent to " + log.Recipient, nil
}

// renderInvoice builds the PDF from the load with stop addresses
// resolved. Unresolvable addresses leave the line blank.
func (s *Service) renderInvoice(ctx context.Context, invoice *Invoice, load *tms.LoadDetail, profile *OrganizationProfile) ([]byte, error) {
	doc := InvoiceDocument{
		InvoiceID:     invoice.Number,
		Date:          invoice.CreatedAt,
		CompanyName:   profile.CompanyName,
		CompanyStreet: profile.Street,
		CompanyPhone:  profile.Phone,
		CompanyEmail:  profile.Email,
		RemitMessage:  profile.RemitMessage,
		CustomerName:  load.Customer.Name,
		Reference:     load.ReferenceNumber,
		BOLNumber:     load.BOLNumber,
		Amount:        invoice.Amount,
	}
	if contacts, err := s.domain.ListAPContacts(ctx, load.OrgID, load.Customer.ID); err == nil && len(contacts) > 0 {
		doc.BillTo = contacts[0].Email
	}
	for _, leg := range load.Legs {
		for _, stop := range leg.Stops {
			line := InvoiceStop{Action: string(stop.Action), Scheduled: stop.StartRange}
			if address, err := s.domain.GetAddress(ctx, load.OrgID, stop.AddressID); err == nil {
				line.Address = address.String()
			}
			doc.Stops = append(doc.Stops, line)
		}
	}
	return RenderInvoicePDF(doc)
}

// storeInvoice uploads the rendered PDF to the post-shipment bucket so
// it shows up alongside the load's other documents.
func (s *Service) storeInvoice(ctx context.Context, invoice *Invoice, load *tms.LoadDetail, pdf []byte) (string, error) {
	_, objectKey := documents.ObjectKeyPair(load.Customer.Name, invoice.Number, load.ReferenceNumber, documents.CategoryInvoice)
	if err := s.objects.Put(ctx, s.cfg.PostShipmentBucket, objectKey, pdf, "application/pdf"); err != nil {
		return "", err
	}
	return objectKey, nil
}

// gatherPaperwork collects the latest rate confirmation plus every
// proof of delivery and lumper receipt, the latter merged into one
// PDF.
func (s *Service) gatherPaperwork(ctx context.Context, load *tms.LoadDetail) ([]Attachment, error) {
	docs, err := s.docs.ListLoadDocuments(ctx, load.OrgID, load.ID)
	if err != nil {
		return nil, err
	}

	var rateConfirmation *documents.PostShipmentDocument
	var deliveryDocs []*documents.PostShipmentDocument
	for _, doc := range docs {
		switch doc.Category {
		case documents.CategoryRateConfirmation:
			// Lists come back oldest first, so the last one wins.
			rateConfirmation = doc
		case documents.CategoryProofOfDelivery, documents.CategoryLumper:
			deliveryDocs = append(deliveryDocs, doc)
		}
	}

	var attachments []Attachment
	if rateConfirmation != nil {
		data, err := s.objects.Get(ctx, s.cfg.PostShipmentBucket, rateConfirmation.ObjectKey)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, Attachment{FileName: rateConfirmation.FileName, Data: data})
	}
	if len(deliveryDocs) > 0 {
		payloads := make([][]byte, len(deliveryDocs))
		for i, doc := range deliveryDocs {
			data, err := s.objects.Get(ctx, s.cfg.PostShipmentBucket, doc.ObjectKey)
			if err != nil {
				return nil, err
			}
			payloads[i] = data
		}
		merged, err := documents.MergePDFs(payloads)
		if err != nil {
			return nil, err
		}
		name := documents.DocumentName(load.Customer.Name, "", load.ReferenceNumber, documents.CategoryProofOfDelivery) + ".pdf"
		attachments = append(attachments, Attachment{FileName: name, Data: merged})
	}
	return attachments, nil
}

// resolveRecipient picks the customer's first accounts payable
// contact, or the debug override when one is configured.
func (s *Service) resolveRecipient(ctx context.Context, orgID, customerID string) (string, error) {
	if s.cfg.DebugRecipient != "" {
		return s.cfg.DebugRecipient, nil
	}
	contacts, err := s.domain.ListAPContacts(ctx, orgID, customerID)
	if err != nil {
		return "", err
	}
	for _, contact := range contacts {
		if contact.Email != "" {
			return contact.Email, nil
		}
	}
	return "", apperrors.New(apperrors.CodeValidation,
		"customer has no accounts payable contact with an email address")
}

func (s *Service) persistRefreshedToken(ctx context.Context, credential *GmailCredential, token *oauth2.Token) {
	if token == nil || token.AccessToken == credential.AccessToken {
		return
	}
	credential.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		credential.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		credential.TokenExpiry = &expiry
	}
	credential.UpdatedAt = s.now().UTC()
	if err := s.store.SaveCredential(ctx, credential); err != nil {
		s.log.Error("failed to persist refreshed gmail token",
			"org_id", credential.OrgID, "error", err)
	}
}

func (s *Service) markLog(ctx context.Context, log *GmailInvoiceLog, status InvoiceLogStatus, detail string) {
	log.Status = status
	log.Detail = detail
	log.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateInvoiceLog(ctx, log); err != nil {
		s.log.Error("failed to update invoice log",
			"invoice_log_id", log.ID, "error", err)
	}
}
