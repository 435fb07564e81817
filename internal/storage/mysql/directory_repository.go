package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	"github.com/shopspring/decimal"

	"machtms/internal/tms"
)

// DirectoryRepository persists carriers, drivers, customers, and
// addresses.
type DirectoryRepository struct {
	db *sql.DB
}

// NewDirectoryRepository wraps an existing database handle.
func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// CreateCarrier inserts a carrier row.
func (r *DirectoryRepository) CreateCarrier(ctx context.Context, carrier *tms.Carrier) error {
	now := time.Now().UTC()
	carrier.CreatedAt = now
	carrier.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO carriers (id, org_id, name, phone, email, contractor, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		carrier.ID, carrier.OrgID, carrier.Name, carrier.Phone, carrier.Email,
		carrier.Contractor, carrier.CreatedAt, carrier.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "insert carrier")
	}
	return nil
}

const carrierColumns = `id, org_id, name, phone, email, contractor, created_at, updated_at`

func scanCarrier(scan func(...any) error) (*tms.Carrier, error) {
	var carrier tms.Carrier
	if err := scan(
		&carrier.ID, &carrier.OrgID, &carrier.Name, &carrier.Phone,
		&carrier.Email, &carrier.Contractor, &carrier.CreatedAt, &carrier.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &carrier, nil
}

// GetCarrier returns the carrier row.
func (r *DirectoryRepository) GetCarrier(ctx context.Context, orgID, id string) (*tms.Carrier, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+carrierColumns+` FROM carriers WHERE org_id = ? AND id = ?`, orgID, id)
	carrier, err := scanCarrier(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("carrier", id)
		}
		return nil, storageErr(err, "query carrier")
	}
	return carrier, nil
}

// UpdateCarrier rewrites the mutable carrier fields.
func (r *DirectoryRepository) UpdateCarrier(ctx context.Context, carrier *tms.Carrier) error {
	carrier.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE carriers SET name = ?, phone = ?, email = ?, contractor = ?, updated_at = ?
        WHERE org_id = ? AND id = ?`,
		carrier.Name, carrier.Phone, carrier.Email, carrier.Contractor,
		carrier.UpdatedAt, carrier.OrgID, carrier.ID,
	)
	if err != nil {
		return storageErr(err, "update carrier")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("carrier", carrier.ID)
	}
	return nil
}

// DeleteCarrier removes the carrier row.
func (r *DirectoryRepository) DeleteCarrier(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM carriers WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete carrier")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("carrier", id)
	}
	return nil
}

// ListCarriers returns carriers whose name matches the query prefix.
func (r *DirectoryRepository) ListCarriers(ctx context.Context, orgID string, query string, limit int) ([]*tms.Carrier, error) {
	sqlQuery := `SELECT ` + carrierColumns + ` FROM carriers WHERE org_id = ?`
	args := []any{orgID}
	if query != "" {
		sqlQuery += ` AND name LIKE ?`
		args = append(args, query+"%")
	}
	sqlQuery += ` ORDER BY name ASC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, storageErr(err, "query carriers")
	}
	defer rows.Close()

	var carriers []*tms.Carrier
	for rows.Next() {
		carrier, err := scanCarrier(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan carrier row")
		}
		carriers = append(carriers, carrier)
	}
	return carriers, rows.Err()
}

const driverColumns = `id, org_id, first_name, last_name, phone_number, email, address_id, carrier_id, created_at, updated_at`

func scanDriver(scan func(...any) error) (*tms.Driver, error) {
	var driver tms.Driver
	var addressID, carrierID sql.NullString
	if err := scan(
		&driver.ID, &driver.OrgID, &driver.FirstName, &driver.LastName,
		&driver.PhoneNumber, &driver.Email, &addressID, &carrierID,
		&driver.CreatedAt, &driver.UpdatedAt,
	); err != nil {
		return nil, err
	}
	driver.AddressID = addressID.String
	driver.CarrierID = carrierID.String
	return &driver, nil
}

// CreateDriver inserts a driver row.
func (r *DirectoryRepository) CreateDriver(ctx context.Context, driver *tms.Driver) error {
	now := time.Now().UTC()
	driver.CreatedAt = now
	driver.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO drivers (id, org_id, first_name, last_name, phone_number, email, address_id, carrier_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		driver.ID, driver.OrgID, driver.FirstName, driver.LastName, driver.PhoneNumber,
		driver.Email, nullString(driver.AddressID), nullString(driver.CarrierID),
		driver.CreatedAt, driver.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "insert driver")
	}
	return nil
}

// GetDriver returns the driver row.
func (r *DirectoryRepository) GetDriver(ctx context.Context, orgID, id string) (*tms.Driver, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE org_id = ? AND id = ?`, orgID, id)
	driver, err := scanDriver(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("driver", id)
		}
		return nil, storageErr(err, "query driver")
	}
	return driver, nil
}

// UpdateDriver rewrites the mutable driver fields.
func (r *DirectoryRepository) UpdateDriver(ctx context.Context, driver *tms.Driver) error {
	driver.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE drivers SET first_name = ?, last_name = ?, phone_number = ?, email = ?,
        address_id = ?, carrier_id = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		driver.FirstName, driver.LastName, driver.PhoneNumber, driver.Email,
		nullString(driver.AddressID), nullString(driver.CarrierID),
		driver.UpdatedAt, driver.OrgID, driver.ID,
	)
	if err != nil {
		return storageErr(err, "update driver")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("driver", driver.ID)
	}
	return nil
}

// DeleteDriver removes the driver row.
func (r *DirectoryRepository) DeleteDriver(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drivers WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete driver")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("driver", id)
	}
	return nil
}

// ListDrivers returns drivers, optionally restricted to a carrier.
func (r *DirectoryRepository) ListDrivers(ctx context.Context, orgID string, carrierID string, limit int) ([]*tms.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE org_id = ?`
	args := []any{orgID}
	if carrierID != "" {
		query += ` AND carrier_id = ?`
		args = append(args, carrierID)
	}
	query += ` ORDER BY first_name ASC, last_name ASC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "query drivers")
	}
	defer rows.Close()

	var drivers []*tms.Driver
	for rows.Next() {
		driver, err := scanDriver(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan driver row")
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

func scanCustomer(scan func(...any) error) (*tms.Customer, error) {
	var customer tms.Customer
	var addressID sql.NullString
	if err := scan(
		&customer.ID, &customer.OrgID, &customer.Name, &addressID,
		&customer.PhoneNumber, &customer.CreatedAt, &customer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	customer.AddressID = addressID.String
	return &customer, nil
}

const customerColumns = `id, org_id, name, address_id, phone_number, created_at, updated_at`

// CreateCustomer inserts a customer row.
func (r *DirectoryRepository) CreateCustomer(ctx context.Context, customer *tms.Customer) error {
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (id, org_id, name, address_id, phone_number, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		customer.ID, customer.OrgID, customer.Name, nullString(customer.AddressID),
		customer.PhoneNumber, customer.CreatedAt, customer.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "insert customer")
	}
	return nil
}

// GetCustomer returns the customer row.
func (r *DirectoryRepository) GetCustomer(ctx context.Context, orgID, id string) (*tms.Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE org_id = ? AND id = ?`, orgID, id)
	customer, err := scanCustomer(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("customer", id)
		}
		return nil, storageErr(err, "query customer")
	}
	return customer, nil
}

// UpdateCustomer rewrites the mutable customer fields.
func (r *DirectoryRepository) UpdateCustomer(ctx context.Context, customer *tms.Customer) error {
	customer.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET name = ?, address_id = ?, phone_number = ?, updated_at = ?
        WHERE org_id = ? AND id = ?`,
		customer.Name, nullString(customer.AddressID), customer.PhoneNumber,
		customer.UpdatedAt, customer.OrgID, customer.ID,
	)
	if err != nil {
		return storageErr(err, "update customer")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("customer", customer.ID)
	}
	return nil
}

// DeleteCustomer removes the customer and its contacts.
func (r *DirectoryRepository) DeleteCustomer(ctx context.Context, orgID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin delete customer tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM customer_representatives WHERE org_id = ? AND customer_id = ?`, orgID, id); err != nil {
		return storageErr(err, "delete customer representatives")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM customer_ap_contacts WHERE org_id = ? AND customer_id = ?`, orgID, id); err != nil {
		return storageErr(err, "delete customer ap contacts")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete customer")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("customer", id)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, "commit delete customer tx")
	}
	return nil
}

// ListCustomers returns customers whose name matches the query prefix.
func (r *DirectoryRepository) ListCustomers(ctx context.Context, orgID string, query string, limit int) ([]*tms.Customer, error) {
	sqlQuery := `SELECT ` + customerColumns + ` FROM customers WHERE org_id = ?`
	args := []any{orgID}
	if query != "" {
		sqlQuery += ` AND name LIKE ?`
		args = append(args, query+"%")
	}
	sqlQuery += ` ORDER BY name ASC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, storageErr(err, "query customers")
	}
	defer rows.Close()

	var customers []*tms.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan customer row")
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

// CreateRepresentative inserts a customer contact row.
func (r *DirectoryRepository) CreateRepresentative(ctx context.Context, rep *tms.CustomerRepresentative) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customer_representatives (id, org_id, customer_id, name, email, phone_number)
        VALUES (?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.OrgID, rep.CustomerID, rep.Name, rep.Email, rep.PhoneNumber,
	)
	if err != nil {
		return storageErr(err, "insert representative")
	}
	return nil
}

// ListRepresentatives returns a customer's contacts.
func (r *DirectoryRepository) ListRepresentatives(ctx context.Context, orgID, customerID string) ([]*tms.CustomerRepresentative, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, customer_id, name, email, phone_number FROM customer_representatives
        WHERE org_id = ? AND customer_id = ? ORDER BY name ASC`, orgID, customerID)
	if err != nil {
		return nil, storageErr(err, "query representatives")
	}
	defer rows.Close()

	var reps []*tms.CustomerRepresentative
	for rows.Next() {
		var rep tms.CustomerRepresentative
		if err := rows.Scan(&rep.ID, &rep.OrgID, &rep.CustomerID, &rep.Name, &rep.Email, &rep.PhoneNumber); err != nil {
			return nil, storageErr(err, "scan representative row")
		}
		reps = append(reps, &rep)
	}
	return reps, rows.Err()
}

// DeleteRepresentative removes a customer contact.
func (r *DirectoryRepository) DeleteRepresentative(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customer_representatives WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete representative")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("representative", id)
	}
	return nil
}

// CreateAPContact inserts an accounts payable contact row.
func (r *DirectoryRepository) CreateAPContact(ctx context.Context, ap *tms.CustomerAP) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customer_ap_contacts (id, org_id, customer_id, email, phone_number, payment_type)
        VALUES (?, ?, ?, ?, ?, ?)`,
		ap.ID, ap.OrgID, ap.CustomerID, ap.Email, ap.PhoneNumber, string(ap.PaymentType),
	)
	if err != nil {
		return storageErr(err, "insert ap contact")
	}
	return nil
}

// ListAPContacts returns a customer's accounts payable contacts.
func (r *DirectoryRepository) ListAPContacts(ctx context.Context, orgID, customerID string) ([]*tms.CustomerAP, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, customer_id, email, phone_number, payment_type FROM customer_ap_contacts
        WHERE org_id = ? AND customer_id = ? ORDER BY email ASC`, orgID, customerID)
	if err != nil {
		return nil, storageErr(err, "query ap contacts")
	}
	defer rows.Close()

	var contacts []*tms.CustomerAP
	for rows.Next() {
		var ap tms.CustomerAP
		var paymentType string
		if err := rows.Scan(&ap.ID, &ap.OrgID, &ap.CustomerID, &ap.Email, &ap.PhoneNumber, &paymentType); err != nil {
			return nil, storageErr(err, "scan ap contact row")
		}
		ap.PaymentType = tms.PaymentType(paymentType)
		contacts = append(contacts, &ap)
	}
	return contacts, rows.Err()
}

// DeleteAPContact removes an accounts payable contact.
func (r *DirectoryRepository) DeleteAPContact(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customer_ap_contacts WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete ap contact")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("ap contact", id)
	}
	return nil
}

const addressColumns = `id, org_id, street, city, state, zip_code, country, latitude, longitude, created_at, updated_at`

func scanAddress(scan func(...any) error) (*tms.Address, error) {
	var address tms.Address
	var latitude, longitude sql.NullString
	if err := scan(
		&address.ID, &address.OrgID, &address.Street, &address.City, &address.State,
		&address.ZipCode, &address.Country, &latitude, &longitude,
		&address.CreatedAt, &address.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if latitude.Valid {
		if dec, err := decimal.NewFromString(latitude.String); err == nil {
			address.Latitude = dec
		}
	}
	if longitude.Valid {
		if dec, err := decimal.NewFromString(longitude.String); err == nil {
			address.Longitude = dec
		}
	}
	return &address, nil
}

func nullDecimal(d decimal.Decimal) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// CreateAddress inserts an address row.
func (r *DirectoryRepository) CreateAddress(ctx context.Context, address *tms.Address) error {
	now := time.Now().UTC()
	address.CreatedAt = now
	address.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO addresses (id, org_id, street, city, state, zip_code, country, latitude, longitude, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		address.ID, address.OrgID, address.Street, address.City, address.State,
		address.ZipCode, address.Country, nullDecimal(address.Latitude), nullDecimal(address.Longitude),
		address.CreatedAt, address.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "insert address")
	}
	return nil
}

// GetAddress returns the address row.
func (r *DirectoryRepository) GetAddress(ctx context.Context, orgID, id string) (*tms.Address, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+addressColumns+` FROM addresses WHERE org_id = ? AND id = ?`, orgID, id)
	address, err := scanAddress(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("address", id)
		}
		return nil, storageErr(err, "query address")
	}
	return address, nil
}

// UpdateAddress rewrites the mutable address fields.
func (r *DirectoryRepository) UpdateAddress(ctx context.Context, address *tms.Address) error {
	address.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE addresses SET street = ?, city = ?, state = ?, zip_code = ?, country = ?,
        latitude = ?, longitude = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		address.Street, address.City, address.State, address.ZipCode, address.Country,
		nullDecimal(address.Latitude), nullDecimal(address.Longitude),
		address.UpdatedAt, address.OrgID, address.ID,
	)
	if err != nil {
		return storageErr(err, "update address")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("address", address.ID)
	}
	return nil
}

// DeleteAddress removes the address row.
func (r *DirectoryRepository) DeleteAddress(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete address")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("address", id)
	}
	return nil
}

// ListAddresses returns addresses matching the query against street or
// city.
func (r *DirectoryRepository) ListAddresses(ctx context.Context, orgID string, query string, limit int) ([]*tms.Address, error) {
	sqlQuery := `SELECT ` + addressColumns + ` FROM addresses WHERE org_id = ?`
	args := []any{orgID}
	if query != "" {
		sqlQuery += ` AND (street LIKE ? OR city LIKE ?)`
		args = append(args, "%"+query+"%", query+"%")
	}
	sqlQuery += ` ORDER BY street ASC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, storageErr(err, "query addresses")
	}
	defer rows.Close()

	var addresses []*tms.Address
	for rows.Next() {
		address, err := scanAddress(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan address row")
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

// RecordAddressUsage appends a usage row.
func (r *DirectoryRepository) RecordAddressUsage(ctx context.Context, usage *tms.AddressUsage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO address_usage (id, org_id, address_id, last_used) VALUES (?, ?, ?, ?)`,
		usage.ID, usage.OrgID, usage.AddressID, usage.LastUsed,
	)
	if err != nil {
		return storageErr(err, "insert address usage")
	}
	return nil
}

// RecordAddressUsageByCustomer appends a per-customer usage row.
func (r *DirectoryRepository) RecordAddressUsageByCustomer(ctx context.Context, usage *tms.AddressUsageByCustomer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO address_usage_by_customer (id, org_id, address_id, customer_id, last_used)
        VALUES (?, ?, ?, ?, ?)`,
		usage.ID, usage.OrgID, usage.AddressID, usage.CustomerID, usage.LastUsed,
	)
	if err != nil {
		return storageErr(err, "insert customer address usage")
	}
	return nil
}

// RecentAddresses returns addresses used since the cutoff, most
// recently used first. With a customer id the per-customer usage table
// drives the ranking.
func (r *DirectoryRepository) RecentAddresses(ctx context.Context, orgID, customerID string, since time.Time, limit int) ([]*tms.Address, error) {
	var query string
	var args []any
	if customerID != "" {
		query = `SELECT ` + prefixColumns("a", addressColumns) + ` FROM addresses a
            JOIN (SELECT address_id, MAX(last_used) AS last_used FROM address_usage_by_customer
                  WHERE org_id = ? AND customer_id = ? AND last_used >= ? GROUP BY address_id) u
            ON u.address_id = a.id
            WHERE a.org_id = ? ORDER BY u.last_used DESC LIMIT ?`
		args = []any{orgID, customerID, since, orgID, normalizeLimit(limit)}
	} else {
		query = `SELECT ` + prefixColumns("a", addressColumns) + ` FROM addresses a
            JOIN (SELECT address_id, MAX(last_used) AS last_used FROM address_usage
                  WHERE org_id = ? AND last_used >= ? GROUP BY address_id) u
            ON u.address_id = a.id
            WHERE a.org_id = ? ORDER BY u.last_used DESC LIMIT ?`
		args = []any{orgID, since, orgID, normalizeLimit(limit)}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "query recent addresses")
	}
	defer rows.Close()

	var addresses []*tms.Address
	for rows.Next() {
		address, err := scanAddress(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan address row")
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}
