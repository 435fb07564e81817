// Package billing renders invoices and emails them to the customer's
// accounts payable contact through the organization's Gmail account.
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceLogStatus tracks one invoice email attempt.
type InvoiceLogStatus string

const (
	LogProcessing InvoiceLogStatus = "processing"
	LogSuccess    InvoiceLogStatus = "success"
	LogError      InvoiceLogStatus = "error"
)

// Invoice is a generated invoice for a load. Number is the sequential
// per-organization invoice number printed on the document; ID is the
// storage key.
type Invoice struct {
	ID        string          `json:"id"`
	Number    string          `json:"number"`
	OrgID     string          `json:"organization_id"`
	LoadID    string          `json:"load_id"`
	Amount    decimal.Decimal `json:"amount"`
	ObjectKey string          `json:"object_key,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrganizationProfile is the company identity printed on invoices and
// the source of the per-organization invoice counter.
type OrganizationProfile struct {
	OrgID          string    `json:"organization_id"`
	CompanyName    string    `json:"company_name"`
	Street         string    `json:"street,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	LogoURL        string    `json:"logo_url,omitempty"`
	RemitMessage   string    `json:"remit_message,omitempty"`
	InvoiceCounter int64     `json:"invoice_counter"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// invoiceCounterSeed is the first invoice number an organization
// without a profile row is assigned.
const invoiceCounterSeed = 10000

// GmailCredential is the per-organization OAuth token pair.
type GmailCredential struct {
	OrgID        string     `json:"organization_id"`
	Sender       string     `json:"sender"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// GmailInvoiceLog records one invoice email attempt for a load.
type GmailInvoiceLog struct {
	ID        string           `json:"id"`
	OrgID     string           `json:"organization_id"`
	LoadID    string           `json:"load_id"`
	InvoiceID string           `json:"invoice_id"`
	Recipient string           `json:"recipient"`
	Status    InvoiceLogStatus `json:"status"`
	Detail    string           `json:"detail,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store persists billing records.
type Store interface {
	CreateInvoice(ctx context.Context, invoice *Invoice) error
	UpdateInvoice(ctx context.Context, invoice *Invoice) error
	GetInvoice(ctx context.Context, orgID, id string) (*Invoice, error)
	ListInvoicesByLoad(ctx context.Context, orgID, loadID string) ([]*Invoice, error)

	SaveCredential(ctx context.Context, credential *GmailCredential) error
	GetCredential(ctx context.Context, orgID string) (*GmailCredential, error)

	SaveProfile(ctx context.Context, profile *OrganizationProfile) error
	GetProfile(ctx context.Context, orgID string) (*OrganizationProfile, error)
	// NextInvoiceNumber increments and returns the organization's
	// invoice counter, creating the profile row when absent.
	NextInvoiceNumber(ctx context.Context, orgID string) (int64, error)

	CreateInvoiceLog(ctx context.Context, log *GmailInvoiceLog) error
	UpdateInvoiceLog(ctx context.Context, log *GmailInvoiceLog) error
	GetInvoiceLog(ctx context.Context, orgID, id string) (*GmailInvoiceLog, error)
	ListInvoiceLogsByLoad(ctx context.Context, orgID, loadID string) ([]*GmailInvoiceLog, error)

	Close() error
}
