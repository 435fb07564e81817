package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"

	"github.com/shopspring/decimal"

	"machtms/internal/billing"
)

// BillingStore persists invoices, delivery logs, and the per-org
// Gmail credentials.
type BillingStore struct {
	db *sql.DB
}

// NewBillingStore wraps an existing database handle.
func NewBillingStore(db *sql.DB) *BillingStore {
	return &BillingStore{db: db}
}

func scanInvoice(scan func(...any) error) (*billing.Invoice, error) {
	var invoice billing.Invoice
	var amount string
	if err := scan(
		&invoice.ID, &invoice.Number, &invoice.OrgID, &invoice.LoadID, &amount,
		&invoice.ObjectKey, &invoice.CreatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	invoice.Amount = parsed
	return &invoice, nil
}

// CreateInvoice inserts an invoice row.
func (s *BillingStore) CreateInvoice(ctx context.Context, invoice *billing.Invoice) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, number, org_id, load_id, amount, object_key, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID, invoice.Number, invoice.OrgID, invoice.LoadID, invoice.Amount.StringFixed(2),
		invoice.ObjectKey, invoice.CreatedAt,
	)
	if err != nil {
		return storageErr(err, "insert invoice")
	}
	return nil
}

// UpdateInvoice rewrites the mutable invoice fields.
func (s *BillingStore) UpdateInvoice(ctx context.Context, invoice *billing.Invoice) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET amount = ?, object_key = ? WHERE org_id = ? AND id = ?`,
		invoice.Amount.StringFixed(2), invoice.ObjectKey, invoice.OrgID, invoice.ID,
	)
	if err != nil {
		return storageErr(err, "update invoice")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("invoice", invoice.ID)
	}
	return nil
}

// GetInvoice returns the invoice row.
func (s *BillingStore) GetInvoice(ctx context.Context, orgID, id string) (*billing.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, number, org_id, load_id, amount, object_key, created_at
        FROM invoices WHERE org_id = ? AND id = ?`, orgID, id)
	invoice, err := scanInvoice(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("invoice", id)
		}
		return nil, storageErr(err, "query invoice")
	}
	return invoice, nil
}

// ListInvoicesByLoad returns a load's invoices, oldest first.
func (s *BillingStore) ListInvoicesByLoad(ctx context.Context, orgID, loadID string) ([]*billing.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, number, org_id, load_id, amount, object_key, created_at
        FROM invoices WHERE org_id = ? AND load_id = ? ORDER BY created_at ASC`,
		orgID, loadID,
	)
	if err != nil {
		return nil, storageErr(err, "query invoices")
	}
	defer rows.Close()

	var invoices []*billing.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan invoice row")
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// SaveCredential upserts the organization's sending account.
func (s *BillingStore) SaveCredential(ctx context.Context, credential *billing.GmailCredential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gmail_credentials (org_id, sender, access_token, refresh_token, token_expiry, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE sender = VALUES(sender), access_token = VALUES(access_token),
            refresh_token = VALUES(refresh_token), token_expiry = VALUES(token_expiry),
            updated_at = VALUES(updated_at)`,
		credential.OrgID, credential.Sender, credential.AccessToken,
		credential.RefreshToken, credential.TokenExpiry, credential.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "upsert gmail credential")
	}
	return nil
}

// GetCredential returns the organization's sending account.
func (s *BillingStore) GetCredential(ctx context.Context, orgID string) (*billing.GmailCredential, error) {
	var credential billing.GmailCredential
	var expiry sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT org_id, sender, access_token, refresh_token, token_expiry, updated_at
        FROM gmail_credentials WHERE org_id = ?`, orgID,
	).Scan(
		&credential.OrgID, &credential.Sender, &credential.AccessToken,
		&credential.RefreshToken, &expiry, &credential.UpdatedAt,
	)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("gmail credential for organization", orgID)
		}
		return nil, storageErr(err, "query gmail credential")
	}
	if expiry.Valid {
		t := expiry.Time
		credential.TokenExpiry = &t
	}
	return &credential, nil
}

// SaveProfile upserts the billing profile without touching the
// invoice counter.
func (s *BillingStore) SaveProfile(ctx context.Context, profile *billing.OrganizationProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organization_profiles
            (org_id, company_name, street, phone, email, logo_url, remit_message, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE company_name = VALUES(company_name), street = VALUES(street),
            phone = VALUES(phone), email = VALUES(email), logo_url = VALUES(logo_url),
            remit_message = VALUES(remit_message), updated_at = VALUES(updated_at)`,
		profile.OrgID, profile.CompanyName, profile.Street, profile.Phone,
		profile.Email, profile.LogoURL, profile.RemitMessage, profile.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "upsert organization profile")
	}
	return nil
}

// GetProfile returns the organization's billing profile.
func (s *BillingStore) GetProfile(ctx context.Context, orgID string) (*billing.OrganizationProfile, error) {
	var profile billing.OrganizationProfile
	var remit sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT org_id, company_name, street, phone, email, logo_url, remit_message,
            invoice_counter, updated_at
        FROM organization_profiles WHERE org_id = ?`, orgID,
	).Scan(
		&profile.OrgID, &profile.CompanyName, &profile.Street, &profile.Phone,
		&profile.Email, &profile.LogoURL, &remit, &profile.InvoiceCounter,
		&profile.UpdatedAt,
	)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("billing profile for organization", orgID)
		}
		return nil, storageErr(err, "query organization profile")
	}
	profile.RemitMessage = remit.String
	return &profile, nil
}

// NextInvoiceNumber increments the organization's invoice counter
// under a row lock, creating the profile row when absent.
func (s *BillingStore) NextInvoiceNumber(ctx context.Context, orgID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr(err, "begin invoice counter tx")
	}
	defer tx.Rollback()

	var counter int64
	err = tx.QueryRowContext(ctx,
		`SELECT invoice_counter FROM organization_profiles WHERE org_id = ? FOR UPDATE`, orgID,
	).Scan(&counter)
	switch {
	case stdErrors.Is(err, sql.ErrNoRows):
		counter = 10001
		_, err = tx.ExecContext(ctx,
			`INSERT INTO organization_profiles (org_id, invoice_counter, updated_at)
            VALUES (?, ?, NOW(6))`, orgID, counter)
		if err != nil {
			return 0, storageErr(err, "seed organization profile")
		}
	case err != nil:
		return 0, storageErr(err, "lock invoice counter")
	default:
		counter++
		_, err = tx.ExecContext(ctx,
			`UPDATE organization_profiles SET invoice_counter = ? WHERE org_id = ?`,
			counter, orgID)
		if err != nil {
			return 0, storageErr(err, "bump invoice counter")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr(err, "commit invoice counter")
	}
	return counter, nil
}

const invoiceLogColumns = `id, org_id, load_id, invoice_id, recipient, status, detail, created_at, updated_at`

func scanInvoiceLog(scan func(...any) error) (*billing.GmailInvoiceLog, error) {
	var log billing.GmailInvoiceLog
	var detail sql.NullString
	if err := scan(
		&log.ID, &log.OrgID, &log.LoadID, &log.InvoiceID, &log.Recipient,
		&log.Status, &detail, &log.CreatedAt, &log.UpdatedAt,
	); err != nil {
		return nil, err
	}
	log.Detail = detail.String
	return &log, nil
}

// CreateInvoiceLog inserts a delivery log row.
func (s *BillingStore) CreateInvoiceLog(ctx context.Context, log *billing.GmailInvoiceLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gmail_invoice_logs (`+invoiceLogColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.OrgID, log.LoadID, log.InvoiceID, log.Recipient,
		log.Status, log.Detail, log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "insert invoice log")
	}
	return nil
}

// UpdateInvoiceLog rewrites the mutable log fields.
func (s *BillingStore) UpdateInvoiceLog(ctx context.Context, log *billing.GmailInvoiceLog) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE gmail_invoice_logs SET status = ?, detail = ?, updated_at = ?
        WHERE org_id = ? AND id = ?`,
		log.Status, log.Detail, log.UpdatedAt, log.OrgID, log.ID,
	)
	if err != nil {
		return storageErr(err, "update invoice log")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("invoice log", log.ID)
	}
	return nil
}

// GetInvoiceLog returns the delivery log row.
func (s *BillingStore) GetInvoiceLog(ctx context.Context, orgID, id string) (*billing.GmailInvoiceLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceLogColumns+` FROM gmail_invoice_logs WHERE org_id = ? AND id = ?`, orgID, id)
	log, err := scanInvoiceLog(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("invoice log", id)
		}
		return nil, storageErr(err, "query invoice log")
	}
	return log, nil
}

// ListInvoiceLogsByLoad returns a load's delivery logs, oldest first.
func (s *BillingStore) ListInvoiceLogsByLoad(ctx context.Context, orgID, loadID string) ([]*billing.GmailInvoiceLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceLogColumns+` FROM gmail_invoice_logs
        WHERE org_id = ? AND load_id = ? ORDER BY created_at ASC`,
		orgID, loadID,
	)
	if err != nil {
		return nil, storageErr(err, "query invoice logs")
	}
	defer rows.Close()

	var logs []*billing.GmailInvoiceLog
	for rows.Next() {
		log, err := scanInvoiceLog(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan invoice log row")
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// Close is a no-op; the shared database handle is owned by the daemon.
func (s *BillingStore) Close() error { return nil }

var _ billing.Store = (*BillingStore)(nil)
