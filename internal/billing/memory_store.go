package billing

import (
	"context"
	"sort"
	"sync"

	apperrors "machtms/internal/errors"
)

// MemoryStore is the in-memory Store used by tests and the default
// dev config.
type MemoryStore struct {
	mu          sync.RWMutex
	invoices    map[string]Invoice
	credentials map[string]GmailCredential
	logs        map[string]GmailInvoiceLog
	profiles    map[string]OrganizationProfile
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices:    make(map[string]Invoice),
		credentials: make(map[string]GmailCredential),
		logs:        make(map[string]GmailInvoiceLog),
		profiles:    make(map[string]OrganizationProfile),
	}
}

func (m *MemoryStore) CreateInvoice(_ context.Context, invoice *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[invoice.ID] = *invoice
	return nil
}

func (m *MemoryStore) UpdateInvoice(_ context.Context, invoice *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.invoices[invoice.ID]
	if !ok || existing.OrgID != invoice.OrgID {
		return apperrors.New(apperrors.CodeNotFound, "invoice "+invoice.ID+" not found")
	}
	m.invoices[invoice.ID] = *invoice
	return nil
}

func (m *MemoryStore) GetInvoice(_ context.Context, orgID, id string) (*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	invoice, ok := m.invoices[id]
	if !ok || invoice.OrgID != orgID {
		return nil, apperrors.New(apperrors.CodeNotFound, "invoice "+id+" not found")
	}
	out := invoice
	return &out, nil
}

func (m *MemoryStore) ListInvoicesByLoad(_ context.Context, orgID, loadID string) ([]*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Invoice
	for _, invoice := range m.invoices {
		if invoice.OrgID == orgID && invoice.LoadID == loadID {
			copied := invoice
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SaveCredential(_ context.Context, credential *GmailCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[credential.OrgID] = *credential
	return nil
}

func (m *MemoryStore) GetCredential(_ context.Context, orgID string) (*GmailCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	credential, ok := m.credentials[orgID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound,
			"no gmail account connected for organization "+orgID)
	}
	out := credential
	return &out, nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, profile *OrganizationProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *profile
	if existing, ok := m.profiles[profile.OrgID]; ok && saved.InvoiceCounter == 0 {
		saved.InvoiceCounter = existing.InvoiceCounter
	}
	if saved.InvoiceCounter == 0 {
		saved.InvoiceCounter = invoiceCounterSeed
	}
	m.profiles[profile.OrgID] = saved
	return nil
}

func (m *MemoryStore) GetProfile(_ context.Context, orgID string) (*OrganizationProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[orgID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound,
			"no billing profile for organization "+orgID)
	}
	out := profile
	return &out, nil
}

func (m *MemoryStore) NextInvoiceNumber(_ context.Context, orgID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[orgID]
	if !ok {
		profile = OrganizationProfile{OrgID: orgID, InvoiceCounter: invoiceCounterSeed}
	}
	profile.InvoiceCounter++
	m.profiles[orgID] = profile
	return profile.InvoiceCounter, nil
}

func (m *MemoryStore) CreateInvoiceLog(_ context.Context, log *GmailInvoiceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[log.ID] = *log
	return nil
}

func (m *MemoryStore) UpdateInvoiceLog(_ context.Context, log *GmailInvoiceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.logs[log.ID]
	if !ok || existing.OrgID != log.OrgID {
		return apperrors.New(apperrors.CodeNotFound, "invoice log "+log.ID+" not found")
	}
	m.logs[log.ID] = *log
	return nil
}

func (m *MemoryStore) GetInvoiceLog(_ context.Context, orgID, id string) (*GmailInvoiceLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log, ok := m.logs[id]
	if !ok || log.OrgID != orgID {
		return nil, apperrors.New(apperrors.CodeNotFound, "invoice log "+id+" not found")
	}
	out := log
	return &out, nil
}

func (m *MemoryStore) ListInvoiceLogsByLoad(_ context.Context, orgID, loadID string) ([]*GmailInvoiceLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*GmailInvoiceLog
	for _, log := range m.logs {
		if log.OrgID == orgID && log.LoadID == loadID {
			copied := log
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
