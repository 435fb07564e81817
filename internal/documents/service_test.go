package documents

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"

	apperrors "machtms/internal/errors"
	"machtms/internal/task"
	"machtms/internal/tms"
)

// fakeObjects keeps objects in memory, keyed bucket/key.
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

type fakeSubmitter struct {
	submitted []task.Kind
}

func (f *fakeSubmitter) Submit(_ context.Context, orgID string, kind task.Kind, _ any) (*task.Task, error) {
	f.submitted = append(f.submitted, kind)
	return &task.Task{ID: "task-1", OrgID: orgID, Kind: kind, Status: task.StatusPending}, nil
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

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode sample png: %v", err)
	}
	return buf.Bytes()
}

type pipelineFixture struct {
	svc     *Service
	domain  *tms.Service
	objects *fakeObjects
	tasks   *fakeSubmitter
	orgID   string
	loadID  string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	ctx := context.Background()
	domain := tms.NewService(tms.NewMemoryStore(), nil)
	orgID := "org-1"

	customer, err := domain.CreateCustomer(ctx, orgID, tms.Customer{Name: "Acme Logistics LLC"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
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
		ReferenceNumber: "REF-77",
		Legs: []tms.LegPayload{{Stops: []tms.StopPayload{
			{StopNumber: 1, AddressID: address.ID, Action: "LL", StartRange: start.Format(time.RFC3339)},
			{StopNumber: 2, AddressID: address.ID, Action: "LU", StartRange: start.Add(4 * time.Hour).Format(time.RFC3339)},
		}}},
	})
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	objects := newFakeObjects()
	tasks := &fakeSubmitter{}
	svc := NewService(NewMemoryStore(), objects, domain, tasks, Config{
		UploadBucket:       "uploads",
		PostShipmentBucket: "post-shipment",
	})
	return &pipelineFixture{svc: svc, domain: domain, objects: objects, tasks: tasks, orgID: orgID, loadID: load.ID}
}

func TestSessionFlowEnqueuesMerge(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)

	session, err := f.svc.OpenSession(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	f.objects.data["uploads/raw-1"] = samplePDF(t, "pod page")
	if _, err := f.svc.RegisterUpload(ctx, f.orgID, session.ID, "raw-1", "pod.pdf", "application/pdf", CategoryProofOfDelivery); err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}

	queued, err := f.svc.FinalizeSession(ctx, f.orgID, session.ID)
	if err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	if queued.Kind != task.KindDocumentMerge {
		t.Fatalf("queued kind = %s", queued.Kind)
	}

	updated, _, err := f.svc.SessionStatus(ctx, f.orgID, session.ID)
	if err != nil {
		t.Fatalf("SessionStatus: %v", err)
	}
	if updated.Status != StatusProcessing {
		t.Fatalf("session status = %s, want processing", updated.Status)
	}

	if _, err := f.svc.FinalizeSession(ctx, f.orgID, session.ID); apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Fatalf("second finalize error = %v, want conflict", err)
	}
}

func TestFinalizeRejectsEmptySession(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)

	session, err := f.svc.OpenSession(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if _, err := f.svc.FinalizeSession(ctx, f.orgID, session.ID); apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestMergeSessionCombinesPODsAndPassesOthersThrough(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)

	session, err := f.svc.OpenSession(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	f.objects.data["uploads/pod-1"] = samplePDF(t, "pod one")
	f.objects.data["uploads/pod-2"] = samplePNG(t)
	f.objects.data["uploads/lumper-1"] = samplePDF(t, "lumper receipt")

	uploads := []struct {
		key, name, contentType string
		category               Category
	}{
		{"pod-1", "pod1.pdf", "application/pdf", CategoryProofOfDelivery},
		{"pod-2", "pod2.png", "image/png", CategoryProofOfDelivery},
		{"lumper-1", "lumper.pdf", "application/pdf", CategoryLumper},
	}
	for _, u := range uploads {
		if _, err := f.svc.RegisterUpload(ctx, f.orgID, session.ID, u.key, u.name, u.contentType, u.category); err != nil {
			t.Fatalf("RegisterUpload %s: %v", u.key, err)
		}
	}

	result, err := f.svc.MergeSession(ctx, f.orgID, session.ID)
	if err != nil {
		t.Fatalf("MergeSession: %v", err)
	}
	if result == "" {
		t.Fatal("expected a merge summary")
	}

	docs, err := f.svc.ListLoadDocuments(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("ListLoadDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want merged POD + lumper", len(docs))
	}
	byCategory := map[Category]*PostShipmentDocument{}
	for _, doc := range docs {
		byCategory[doc.Category] = doc
	}
	pod := byCategory[CategoryProofOfDelivery]
	if pod == nil || byCategory[CategoryLumper] == nil {
		t.Fatalf("categories = %+v", byCategory)
	}

	merged, err := f.objects.Get(ctx, "post-shipment", pod.ObjectKey)
	if err != nil {
		t.Fatalf("merged object missing: %v", err)
	}
	if !bytes.HasPrefix(merged, []byte("%PDF")) {
		t.Fatal("merged POD is not a pdf")
	}

	updated, logs, err := f.svc.SessionStatus(ctx, f.orgID, session.ID)
	if err != nil {
		t.Fatalf("SessionStatus: %v", err)
	}
	if updated.Status != StatusSuccess || updated.MergedKey != pod.ObjectKey {
		t.Fatalf("session = %+v", updated)
	}
	for _, log := range logs {
		if log.Status != StatusSuccess {
			t.Fatalf("upload %s status = %s", log.FileName, log.Status)
		}
	}
}

func TestMergedDocumentNameCarriesInvoiceNumber(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)

	invoiceID := "10001"
	if _, err := f.domain.UpdateLoad(ctx, f.orgID, f.loadID, tms.LoadUpdate{InvoiceID: &invoiceID}); err != nil {
		t.Fatalf("UpdateLoad: %v", err)
	}

	session, err := f.svc.OpenSession(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	f.objects.data["uploads/pod-1"] = samplePDF(t, "pod page")
	if _, err := f.svc.RegisterUpload(ctx, f.orgID, session.ID, "pod-1", "pod.pdf", "application/pdf", CategoryProofOfDelivery); err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	if _, err := f.svc.MergeSession(ctx, f.orgID, session.ID); err != nil {
		t.Fatalf("MergeSession: %v", err)
	}

	docs, err := f.svc.ListLoadDocuments(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("ListLoadDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs))
	}
	if docs[0].FileName != "Acme_10001_REF-77_POD.pdf" {
		t.Fatalf("filename = %q, want %q", docs[0].FileName, "Acme_10001_REF-77_POD.pdf")
	}
}

func TestMergeSessionMarksMissingUploadsAsErrors(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)

	session, err := f.svc.OpenSession(ctx, f.orgID, f.loadID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	f.objects.data["uploads/ok"] = samplePDF(t, "fine")
	if _, err := f.svc.RegisterUpload(ctx, f.orgID, session.ID, "ok", "ok.pdf", "application/pdf", CategoryReceipt); err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	if _, err := f.svc.RegisterUpload(ctx, f.orgID, session.ID, "missing", "gone.pdf", "application/pdf", CategoryReceipt); err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}

	if _, err := f.svc.MergeSession(ctx, f.orgID, session.ID); err != nil {
		t.Fatalf("MergeSession: %v", err)
	}

	_, logs, err := f.svc.SessionStatus(ctx, f.orgID, session.ID)
	if err != nil {
		t.Fatalf("SessionStatus: %v", err)
	}
	statuses := map[string]UploadStatus{}
	for _, log := range logs {
		statuses[log.ObjectKey] = log.Status
	}
	if statuses["ok"] != StatusSuccess || statuses["missing"] != StatusError {
		t.Fatalf("statuses = %+v", statuses)
	}
}
