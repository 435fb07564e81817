package billing

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"machtms/internal/documents"
	apperrors "machtms/internal/errors"
	"machtms/internal/task"
	"machtms/internal/tms"
)

type fakeObjects struct {
	data map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{data: make(map[string][]byte)}
}

func (f *fakeObjects) Put(_ context.Context, bucket, key string, body []byte, _ string) error {
	f.data[bucket+"/"+key] = body
	return nil
}

func (f *fakeObjects) Get(_ context.Context, bucket, key string) ([]byte, error) {
	body, ok := f.data[bucket+"/"+key]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "object "+key+" not found")
	}
	return body, nil
}

type fakeSender struct {
	sent [][]byte
	err  error
}

func (f *fakeSender) Send(_ context.Context, _ *GmailCredential, raw []byte) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, raw)
	return nil, nil
}

type fakeSubmitter struct {
	submitted []task.Kind
	payloads  []any
}

func (f *fakeSubmitter) Submit(_ context.Context, orgID string, kind task.Kind, payload any) (*task.Task, error) {
	f.submitted = append(f.submitted, kind)
	f.payloads = append(f.payloads, payload)
	return &task.Task{ID: "task-1", OrgID: orgID, Kind: kind, Status: task.StatusPending}, nil
}

type fakeDocSource struct {
	docs []*documents.PostShipmentDocument
}

func (f *fakeDocSource) ListLoadDocuments(_ context.Context, _, _ string) ([]*documents.PostShipmentDocument, error) {
	return f.docs, nil
}

func samplePDF(t *testing.T, text string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(40, 10, text)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("build sample pdf: %v", err)
	}
	return buf.Bytes()
}

type billingFixture struct {
	svc     *Service
	store   *MemoryStore
	domain  *tms.Service
	objects *fakeObjects
	sender  *fakeSender
	tasks   *fakeSubmitter
	docs    *fakeDocSource
	orgID   string
	loadID  string
}

func newBillingFixture(t *testing.T, cfg Config) *billingFixture {
	t.Helper()
	ctx := context.Background()
	domain := tms.NewService(tms.NewMemoryStore(), nil)
	orgID := "org-1"

	customer, err := domain.CreateCustomer(ctx, orgID, tms.Customer{Name: "Acme Logistics LLC"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if _, err := domain.AddAPContact(ctx, orgID, tms.CustomerAP{
		CustomerID:  customer.ID,
		Email:       "ap@acme.com",
		PaymentType: tms.PaymentStandard,
	}); err != nil {
		t.Fatalf("AddAPContact: %v", err)
	}
	address, err := domain.CreateAddress(ctx, orgID, tms.Address{
		Street: "100 Dock Rd", City: "Fontana", State: "CA", ZipCode: "92335",
	})
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	load, err := domain.CreateLoad(ctx, orgID, tms.LoadCreationPayload{
		CustomerID:      customer.ID,
		ReferenceNumber: "REF-9",
		Legs: []tms.LegPayload{{Stops: []tms.StopPayload{
			{StopNumber: 1, AddressID: address.ID, Action: "LL", StartRange: start.Format(time.RFC3339)},
			{StopNumber: 2, AddressID: address.ID, Action: "LU", StartRange: start.Add(4 * time.Hour).Format(time.RFC3339)},
		}}},
	})
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	store := NewMemoryStore()
	objects := newFakeObjects()
	sender := &fakeSender{}
	tasks := &fakeSubmitter{}
	docs := &fakeDocSource{}
	if cfg.PostShipmentBucket == "" {
		cfg.PostShipmentBucket = "post-shipment"
	}
	svc := NewService(store, domain, docs, objects, sender, tasks, cfg)
	return &billingFixture{
		svc: svc, store: store, domain: domain, objects: objects,
		sender: sender, tasks: tasks, docs: docs,
		orgID: orgID, loadID: load.ID,
	}
}

func connectAccount(t *testing.T, f *billingFixture) {
	t.Helper()
	_, err := f.svc.SaveCredential(context.Background(), f.orgID, "billing@machtms.com", &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
	})
	if err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
}

func seedDocument(f *billingFixture, data []byte, category documents.Category, fileName string, createdAt time.Time) {
	key := strings.ToLower(fileName) + "-key"
	f.objects.data["post-shipment/"+key] = data
	f.docs.docs = append(f.docs.docs, &documents.PostShipmentDocument{
		ID: fileName, OrgID: f.orgID, LoadID: f.loadID,
		Category: category, ObjectKey: key, FileName: fileName,
		CreatedAt: createdAt,
	})
}

func TestSendInvoiceQueuesEmail(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, Config{})
	connectAccount(t, f)

	log, err := f.svc.SendInvoice(ctx, f.orgID, f.loadID, decimal.NewFromInt(1850))
	if err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if log.Status != LogProcessing {
		t.Fatalf("log status = %s, want processing", log.Status)
	}
	if log.Recipient != "ap@acme.com" {
		t.Fatalf("recipient = %s", log.Recipient)
	}
	if len(f.tasks.submitted) != 1 || f.tasks.submitted[0] != task.KindInvoiceEmail {
		t.Fatalf("submitted = %v", f.tasks.submitted)
	}
	payload, ok := f.tasks.payloads[0].(task.InvoiceEmailPayload)
	if !ok || payload.InvoiceLogID != log.ID || payload.LoadID != f.loadID {
		t.Fatalf("payload = %+v", f.tasks.payloads[0])
	}

	invoices, err := f.svc.ListInvoices(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(invoices) != 1 || !invoices[0].Amount.Equal(decimal.NewFromInt(1850)) {
		t.Fatalf("invoices = %+v", invoices)
	}
}

func TestSendInvoiceRequiresConnectedAccount(t *testing.T) {
	f := newBillingFixture(t, Config{})
	_, err := f.svc.SendInvoice(context.Background(), f.orgID, f.loadID, decimal.NewFromInt(100))
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestSendInvoiceRequiresAPContact(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, Config{})
	connectAccount(t, f)

	customer, err := f.domain.CreateCustomer(ctx, f.orgID, tms.Customer{Name: "No Contact Freight"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	address, err := f.domain.CreateAddress(ctx, f.orgID, tms.Address{
		Street: "7 Yard St", City: "Rialto", State: "CA", ZipCode: "92376",
	})
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	load, err := f.domain.CreateLoad(ctx, f.orgID, tms.LoadCreationPayload{
		CustomerID:      customer.ID,
		ReferenceNumber: "REF-10",
		Legs: []tms.LegPayload{{Stops: []tms.StopPayload{
			{StopNumber: 1, AddressID: address.ID, Action: "LL", StartRange: start.Format(time.RFC3339)},
			{StopNumber: 2, AddressID: address.ID, Action: "LU", StartRange: start.Add(2 * time.Hour).Format(time.RFC3339)},
		}}},
	})
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	if _, err := f.svc.SendInvoice(ctx, f.orgID, load.ID, decimal.NewFromInt(100)); apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestDebugRecipientOverridesAPContact(t *testing.T) {
	f := newBillingFixture(t, Config{DebugRecipient: "dev@machtms.com"})
	connectAccount(t, f)

	log, err := f.svc.SendInvoice(context.Background(), f.orgID, f.loadID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if log.Recipient != "dev@machtms.com" {
		t.Fatalf("recipient = %s", log.Recipient)
	}
}

func TestProcessInvoiceEmailSendsPaperwork(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, Config{})
	connectAccount(t, f)

	base := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	seedDocument(f, samplePDF(t, "old rate con"), documents.CategoryRateConfirmation, "Acme_REF-9_RC_old.pdf", base)
	seedDocument(f, samplePDF(t, "rate con"), documents.CategoryRateConfirmation, "Acme_REF-9_RC.pdf", base.Add(time.Hour))
	seedDocument(f, samplePDF(t, "pod"), documents.CategoryProofOfDelivery, "Acme_REF-9_POD.pdf", base.Add(2*time.Hour))
	seedDocument(f, samplePDF(t, "lumper"), documents.CategoryLumper, "Acme_REF-9_LUMPER.pdf", base.Add(3*time.Hour))

	log, err := f.svc.SendInvoice(ctx, f.orgID, f.loadID, decimal.RequireFromString("1850.50"))
	if err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	summary, err := f.svc.ProcessInvoiceEmail(ctx, f.orgID, log.ID)
	if err != nil {
		t.Fatalf("ProcessInvoiceEmail: %v", err)
	}
	if summary == "" {
		t.Fatal("expected a delivery summary")
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent = %d messages", len(f.sender.sent))
	}
	message := string(f.sender.sent[0])
	for _, want := range []string{
		"To: ap@acme.com",
		"Subject: Acme Logistics LLC / Shipment# REF-9 [Invoice]",
		"Acme_REF-9_RC.pdf",
		"Acme_REF-9_POD.pdf",
		"_invoice.pdf",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("message missing %q", want)
		}
	}
	if strings.Contains(message, "Acme_REF-9_RC_old.pdf") {
		t.Error("stale rate confirmation attached")
	}

	updated, err := f.svc.InvoiceLog(ctx, f.orgID, log.ID)
	if err != nil {
		t.Fatalf("InvoiceLog: %v", err)
	}
	if updated.Status != LogSuccess {
		t.Fatalf("log status = %s, detail = %s", updated.Status, updated.Detail)
	}

	invoices, err := f.svc.ListInvoices(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if invoices[0].ObjectKey == "" {
		t.Fatal("invoice object key not recorded")
	}
	stored, err := f.objects.Get(ctx, "post-shipment", invoices[0].ObjectKey)
	if err != nil {
		t.Fatalf("stored invoice missing: %v", err)
	}
	if !bytes.HasPrefix(stored, []byte("%PDF")) {
		t.Fatal("stored invoice is not a pdf")
	}

	load, err := f.domain.GetLoad(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("GetLoad: %v", err)
	}
	if load.BillingStatus != tms.BillingBilled {
		t.Fatalf("billing status = %s, want billed", load.BillingStatus)
	}
	if load.InvoiceID != invoices[0].Number {
		t.Fatalf("load invoice_id = %q, want %q", load.InvoiceID, invoices[0].Number)
	}
}

func TestInvoiceNumbersAreSequential(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, Config{})
	connectAccount(t, f)

	if _, err := f.svc.SendInvoice(ctx, f.orgID, f.loadID, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if _, err := f.svc.SendInvoice(ctx, f.orgID, f.loadID, decimal.NewFromInt(200)); err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}

	invoices, err := f.svc.ListInvoices(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("invoices = %d", len(invoices))
	}
	if invoices[0].Number != "10001" || invoices[1].Number != "10002" {
		t.Fatalf("numbers = %s, %s", invoices[0].Number, invoices[1].Number)
	}
}

func TestProfileAppearsOnInvoiceEmail(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, Config{})
	connectAccount(t, f)

	if _, err := f.svc.SaveProfile(ctx, f.orgID, OrganizationProfile{
		CompanyName:  "Mach Freight Inc",
		Street:       "42 Carrier Way, Ontario, CA",
		RemitMessage: "Remit payment to PO Box 12, Ontario, CA 91761",
	}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	log, err := f.svc.SendInvoice(ctx, f.orgID, f.loadID, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if _, err := f.svc.ProcessInvoiceEmail(ctx, f.orgID, log.ID); err != nil {
		t.Fatalf("ProcessInvoiceEmail: %v", err)
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent = %d messages", len(f.sender.sent))
	}
	if !strings.Contains(string(f.sender.sent[0]), "Remit payment to PO Box 12") {
		t.Error("remit message missing from email body")
	}

	profile, err := f.svc.Profile(ctx, f.orgID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.CompanyName != "Mach Freight Inc" {
		t.Fatalf("company = %q", profile.CompanyName)
	}
	if profile.InvoiceCounter != invoiceCounterSeed+1 {
		t.Fatalf("counter = %d", profile.InvoiceCounter)
	}
}

func TestSaveProfileRequiresCompanyName(t *testing.T) {
	f := newBillingFixture(t, Config{})
	if _, err := f.svc.SaveProfile(context.Background(), f.orgID, OrganizationProfile{}); apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestProcessInvoiceEmailMarksErrorOnSendFailure(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, Config{})
	connectAccount(t, f)
	f.sender.err = apperrors.New(apperrors.CodeExternalService, "gmail unavailable")

	log, err := f.svc.SendInvoice(ctx, f.orgID, f.loadID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if _, err := f.svc.ProcessInvoiceEmail(ctx, f.orgID, log.ID); err == nil {
		t.Fatal("expected a send error")
	}

	updated, err := f.svc.InvoiceLog(ctx, f.orgID, log.ID)
	if err != nil {
		t.Fatalf("InvoiceLog: %v", err)
	}
	if updated.Status != LogError || updated.Detail == "" {
		t.Fatalf("log = %+v", updated)
	}
}
