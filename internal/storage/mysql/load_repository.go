package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "machtms/internal/errors"
	"machtms/internal/tms"
)

// LoadRepository persists loads, legs, stops, and assignments.
type LoadRepository struct {
	db *sql.DB
}

// NewLoadRepository wraps an existing database handle.
func NewLoadRepository(db *sql.DB) *LoadRepository {
	return &LoadRepository{db: db}
}

func notFound(kind, id string) error {
	return xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("%s %s not found", kind, id))
}

func storageErr(err error, op string) error {
	return xerrors.Wrap(xerrors.CodeStorageFailure, err, op)
}

const loadColumns = `id, org_id, reference_number, bol_number, customer_id, invoice_id, status, billing_status, trailer_type, created_at, updated_at`

func scanLoad(scan func(...any) error) (*tms.Load, error) {
	var load tms.Load
	var customerID sql.NullString
	var status, billingStatus, trailerType string
	if err := scan(
		&load.ID,
		&load.OrgID,
		&load.ReferenceNumber,
		&load.BOLNumber,
		&customerID,
		&load.InvoiceID,
		&status,
		&billingStatus,
		&trailerType,
		&load.CreatedAt,
		&load.UpdatedAt,
	); err != nil {
		return nil, err
	}
	load.CustomerID = customerID.String
	load.Status = tms.LoadStatus(status)
	load.BillingStatus = tms.BillingStatus(billingStatus)
	load.TrailerType = tms.TrailerType(trailerType)
	return &load, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// likeContains renders a contains pattern for LIKE, escaping the
// wildcard characters in the needle. Matching is case-insensitive
// under the table collation.
func likeContains(needle string) string {
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(needle)
	return "%" + escaped + "%"
}

// CreateLoad inserts the load row.
func (r *LoadRepository) CreateLoad(ctx context.Context, load *tms.Load) error {
	now := time.Now().UTC()
	load.CreatedAt = now
	load.UpdatedAt = now

	const stmt = `INSERT INTO loads
        (id, org_id, reference_number, bol_number, customer_id, invoice_id, status, billing_status, trailer_type, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, stmt,
		load.ID, load.OrgID, load.ReferenceNumber, load.BOLNumber,
		nullString(load.CustomerID), load.InvoiceID, string(load.Status), string(load.BillingStatus),
		string(load.TrailerType), load.CreatedAt, load.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "insert load")
	}
	return nil
}

// GetLoad returns the load with its nested structure resolved.
func (r *LoadRepository) GetLoad(ctx context.Context, orgID, id string) (*tms.LoadDetail, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+loadColumns+` FROM loads WHERE org_id = ? AND id = ?`, orgID, id)
	load, err := scanLoad(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("load", id)
		}
		return nil, storageErr(err, "query load")
	}
	details, err := r.assembleDetails(ctx, orgID, []*tms.Load{load})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// UpdateLoad rewrites the mutable load fields.
func (r *LoadRepository) UpdateLoad(ctx context.Context, load *tms.Load) error {
	load.UpdatedAt = time.Now().UTC()
	const stmt = `UPDATE loads SET reference_number = ?, bol_number = ?, customer_id = ?,
        invoice_id = ?, status = ?, billing_status = ?, trailer_type = ?, updated_at = ?
        WHERE org_id = ? AND id = ?`
	res, err := r.db.ExecContext(ctx, stmt,
		load.ReferenceNumber, load.BOLNumber, nullString(load.CustomerID),
		load.InvoiceID, string(load.Status), string(load.BillingStatus), string(load.TrailerType),
		load.UpdatedAt, load.OrgID, load.ID,
	)
	if err != nil {
		return storageErr(err, "update load")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("load", load.ID)
	}
	return nil
}

// DeleteLoad removes the load and everything nested under it.
func (r *LoadRepository) DeleteLoad(ctx context.Context, orgID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin delete load tx")
	}
	defer tx.Rollback()

	const legSubquery = `SELECT id FROM legs WHERE org_id = ? AND load_id = ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM shipment_assignments WHERE org_id = ? AND leg_id IN (`+legSubquery+`)`, orgID, orgID, id); err != nil {
		return storageErr(err, "delete load assignments")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stops WHERE org_id = ? AND leg_id IN (`+legSubquery+`)`, orgID, orgID, id); err != nil {
		return storageErr(err, "delete load stops")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM legs WHERE org_id = ? AND load_id = ?`, orgID, id); err != nil {
		return storageErr(err, "delete load legs")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM loads WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete load")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("load", id)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, "commit delete load tx")
	}
	return nil
}

// ListLoads returns loads matching the filter, newest first.
func (r *LoadRepository) ListLoads(ctx context.Context, orgID string, filter tms.LoadFilter) ([]*tms.LoadDetail, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conditions := []string{"org_id = ?"}
	args := []any{orgID}

	if filter.ReferenceNumber != "" {
		conditions = append(conditions, "reference_number LIKE ?")
		args = append(args, likeContains(filter.ReferenceNumber))
	}
	if filter.BOLNumber != "" {
		conditions = append(conditions, "bol_number LIKE ?")
		args = append(args, likeContains(filter.BOLNumber))
	}
	if filter.CustomerID != "" {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.BillingStatuses) > 0 {
		placeholders := make([]string, len(filter.BillingStatuses))
		for i, status := range filter.BillingStatuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, fmt.Sprintf("billing_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TrailerType != "" {
		conditions = append(conditions, "trailer_type = ?")
		args = append(args, string(filter.TrailerType))
	}
	if !filter.PickupAfter.IsZero() || !filter.PickupBefore.IsZero() {
		sub := `EXISTS (SELECT 1 FROM stops st JOIN legs lg ON st.leg_id = lg.id
            WHERE lg.load_id = loads.id AND st.action IN ('LL','HL','EMPP','HUBP')`
		if !filter.PickupAfter.IsZero() {
			sub += " AND st.start_range >= ?"
			args = append(args, filter.PickupAfter)
		}
		if !filter.PickupBefore.IsZero() {
			sub += " AND st.start_range < ?"
			args = append(args, filter.PickupBefore)
		}
		sub += ")"
		conditions = append(conditions, sub)
	}

	query := `SELECT ` + loadColumns + ` FROM loads WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "query loads")
	}
	defer rows.Close()

	loads := make([]*tms.Load, 0, filter.Limit)
	for rows.Next() {
		load, err := scanLoad(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan load row")
		}
		loads = append(loads, load)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate loads")
	}
	return r.assembleDetails(ctx, orgID, loads)
}

// assembleDetails resolves legs, stops, assignments, and customers for
// a page of loads with one query per relation.
func (r *LoadRepository) assembleDetails(ctx context.Context, orgID string, loads []*tms.Load) ([]*tms.LoadDetail, error) {
	details := make([]*tms.LoadDetail, len(loads))
	if len(loads) == 0 {
		return details, nil
	}

	loadIDs := make([]string, len(loads))
	customerIDs := make(map[string]struct{})
	for i, load := range loads {
		loadIDs[i] = load.ID
		details[i] = &tms.LoadDetail{Load: *load}
		if load.CustomerID != "" {
			customerIDs[load.CustomerID] = struct{}{}
		}
	}

	legsByLoad, legIDs, err := r.legsForLoads(ctx, orgID, loadIDs)
	if err != nil {
		return nil, err
	}
	stopsByLeg, err := r.stopsForLegs(ctx, orgID, legIDs)
	if err != nil {
		return nil, err
	}
	assignmentsByLeg, err := r.assignmentsForLegs(ctx, orgID, legIDs)
	if err != nil {
		return nil, err
	}
	customers, err := r.customersByID(ctx, orgID, customerIDs)
	if err != nil {
		return nil, err
	}

	for _, detail := range details {
		if customer, ok := customers[detail.CustomerID]; ok {
			detail.Customer = customer
		}
		for _, leg := range legsByLoad[detail.ID] {
			detail.Legs = append(detail.Legs, tms.LegDetail{
				Leg:         *leg,
				Stops:       stopsByLeg[leg.ID],
				Assignments: assignmentsByLeg[leg.ID],
			})
		}
		if detail.Legs == nil {
			detail.Legs = []tms.LegDetail{}
		}
	}
	return details, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(orgID string, ids []string) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, orgID)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

func (r *LoadRepository) legsForLoads(ctx context.Context, orgID string, loadIDs []string) (map[string][]*tms.Leg, []string, error) {
	if len(loadIDs) == 0 {
		return nil, nil, nil
	}
	query := `SELECT id, org_id, load_id, created_at FROM legs
        WHERE org_id = ? AND load_id IN (` + placeholders(len(loadIDs)) + `)
        ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, idArgs(orgID, loadIDs)...)
	if err != nil {
		return nil, nil, storageErr(err, "query legs")
	}
	defer rows.Close()

	byLoad := make(map[string][]*tms.Leg)
	var legIDs []string
	for rows.Next() {
		var leg tms.Leg
		if err := rows.Scan(&leg.ID, &leg.OrgID, &leg.LoadID, &leg.CreatedAt); err != nil {
			return nil, nil, storageErr(err, "scan leg row")
		}
		byLoad[leg.LoadID] = append(byLoad[leg.LoadID], &leg)
		legIDs = append(legIDs, leg.ID)
	}
	return byLoad, legIDs, rows.Err()
}

func scanStop(scan func(...any) error) (*tms.Stop, error) {
	var stop tms.Stop
	var action string
	var endRange sql.NullTime
	var driverNotes sql.NullString
	if err := scan(
		&stop.ID, &stop.OrgID, &stop.LegID, &stop.StopNumber, &stop.AddressID,
		&action, &stop.StartRange, &endRange, &stop.PONumbers, &driverNotes,
		&stop.CreatedAt,
	); err != nil {
		return nil, err
	}
	stop.Action = tms.StopAction(action)
	if endRange.Valid {
		end := endRange.Time
		stop.EndRange = &end
	}
	stop.DriverNotes = driverNotes.String
	return &stop, nil
}

const stopColumns = `id, org_id, leg_id, stop_number, address_id, action, start_range, end_range, po_numbers, driver_notes, created_at`

func (r *LoadRepository) stopsForLegs(ctx context.Context, orgID string, legIDs []string) (map[string][]tms.Stop, error) {
	if len(legIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + stopColumns + ` FROM stops
        WHERE org_id = ? AND leg_id IN (` + placeholders(len(legIDs)) + `)
        ORDER BY stop_number ASC`
	rows, err := r.db.QueryContext(ctx, query, idArgs(orgID, legIDs)...)
	if err != nil {
		return nil, storageErr(err, "query stops")
	}
	defer rows.Close()

	byLeg := make(map[string][]tms.Stop)
	for rows.Next() {
		stop, err := scanStop(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan stop row")
		}
		byLeg[stop.LegID] = append(byLeg[stop.LegID], *stop)
	}
	return byLeg, rows.Err()
}

func (r *LoadRepository) assignmentsForLegs(ctx context.Context, orgID string, legIDs []string) (map[string][]tms.ShipmentAssignment, error) {
	if len(legIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, org_id, leg_id, carrier_id, driver_id, created_at FROM shipment_assignments
        WHERE org_id = ? AND leg_id IN (` + placeholders(len(legIDs)) + `)
        ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, idArgs(orgID, legIDs)...)
	if err != nil {
		return nil, storageErr(err, "query assignments")
	}
	defer rows.Close()

	byLeg := make(map[string][]tms.ShipmentAssignment)
	for rows.Next() {
		var a tms.ShipmentAssignment
		if err := rows.Scan(&a.ID, &a.OrgID, &a.LegID, &a.CarrierID, &a.DriverID, &a.CreatedAt); err != nil {
			return nil, storageErr(err, "scan assignment row")
		}
		byLeg[a.LegID] = append(byLeg[a.LegID], a)
	}
	return byLeg, rows.Err()
}

func (r *LoadRepository) customersByID(ctx context.Context, orgID string, ids map[string]struct{}) (map[string]*tms.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	query := `SELECT id, org_id, name, address_id, phone_number, created_at, updated_at FROM customers
        WHERE org_id = ? AND id IN (` + placeholders(len(list)) + `)`
	rows, err := r.db.QueryContext(ctx, query, idArgs(orgID, list)...)
	if err != nil {
		return nil, storageErr(err, "query customers")
	}
	defer rows.Close()

	byID := make(map[string]*tms.Customer, len(list))
	for rows.Next() {
		customer, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan customer row")
		}
		byID[customer.ID] = customer
	}
	return byID, rows.Err()
}

// CreateLeg inserts a leg row.
func (r *LoadRepository) CreateLeg(ctx context.Context, leg *tms.Leg) error {
	leg.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO legs (id, org_id, load_id, created_at) VALUES (?, ?, ?, ?)`,
		leg.ID, leg.OrgID, leg.LoadID, leg.CreatedAt,
	)
	if err != nil {
		return storageErr(err, "insert leg")
	}
	return nil
}

// GetLeg returns the leg with stops and assignments resolved.
func (r *LoadRepository) GetLeg(ctx context.Context, orgID, id string) (*tms.LegDetail, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, load_id, created_at FROM legs WHERE org_id = ? AND id = ?`, orgID, id)
	var leg tms.Leg
	if err := row.Scan(&leg.ID, &leg.OrgID, &leg.LoadID, &leg.CreatedAt); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("leg", id)
		}
		return nil, storageErr(err, "query leg")
	}
	stops, err := r.stopsForLegs(ctx, orgID, []string{id})
	if err != nil {
		return nil, err
	}
	assignments, err := r.assignmentsForLegs(ctx, orgID, []string{id})
	if err != nil {
		return nil, err
	}
	return &tms.LegDetail{Leg: leg, Stops: stops[id], Assignments: assignments[id]}, nil
}

// DeleteLeg removes the leg and its stops and assignments.
func (r *LoadRepository) DeleteLeg(ctx context.Context, orgID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin delete leg tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shipment_assignments WHERE org_id = ? AND leg_id = ?`, orgID, id); err != nil {
		return storageErr(err, "delete leg assignments")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stops WHERE org_id = ? AND leg_id = ?`, orgID, id); err != nil {
		return storageErr(err, "delete leg stops")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM legs WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete leg")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("leg", id)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, "commit delete leg tx")
	}
	return nil
}

// CreateStop inserts a stop row. A duplicate stop number within the
// leg surfaces as a conflict.
func (r *LoadRepository) CreateStop(ctx context.Context, stop *tms.Stop) error {
	stop.CreatedAt = time.Now().UTC()
	var endRange sql.NullTime
	if stop.EndRange != nil {
		endRange = sql.NullTime{Time: *stop.EndRange, Valid: true}
	}
	const stmt = `INSERT INTO stops
        (id, org_id, leg_id, stop_number, address_id, action, start_range, end_range, po_numbers, driver_notes, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, stmt,
		stop.ID, stop.OrgID, stop.LegID, stop.StopNumber, stop.AddressID,
		string(stop.Action), stop.StartRange, endRange, stop.PONumbers, stop.DriverNotes,
		stop.CreatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return xerrors.New(xerrors.CodeConflict,
				fmt.Sprintf("stop number %d already exists on leg %s", stop.StopNumber, stop.LegID))
		}
		return storageErr(err, "insert stop")
	}
	return nil
}

// GetStop returns the stop row.
func (r *LoadRepository) GetStop(ctx context.Context, orgID, id string) (*tms.Stop, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+stopColumns+` FROM stops WHERE org_id = ? AND id = ?`, orgID, id)
	stop, err := scanStop(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("stop", id)
		}
		return nil, storageErr(err, "query stop")
	}
	return stop, nil
}

// UpdateStop rewrites the mutable stop fields.
func (r *LoadRepository) UpdateStop(ctx context.Context, stop *tms.Stop) error {
	var endRange sql.NullTime
	if stop.EndRange != nil {
		endRange = sql.NullTime{Time: *stop.EndRange, Valid: true}
	}
	const stmt = `UPDATE stops SET stop_number = ?, address_id = ?, action = ?, start_range = ?,
        end_range = ?, po_numbers = ?, driver_notes = ? WHERE org_id = ? AND id = ?`
	res, err := r.db.ExecContext(ctx, stmt,
		stop.StopNumber, stop.AddressID, string(stop.Action), stop.StartRange,
		endRange, stop.PONumbers, stop.DriverNotes, stop.OrgID, stop.ID,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return xerrors.New(xerrors.CodeConflict,
				fmt.Sprintf("stop number %d already exists on leg %s", stop.StopNumber, stop.LegID))
		}
		return storageErr(err, "update stop")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("stop", stop.ID)
	}
	return nil
}

// DeleteStop removes the stop row.
func (r *LoadRepository) DeleteStop(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stops WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete stop")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("stop", id)
	}
	return nil
}

// CreateAssignment inserts an assignment row.
func (r *LoadRepository) CreateAssignment(ctx context.Context, assignment *tms.ShipmentAssignment) error {
	assignment.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shipment_assignments (id, org_id, leg_id, carrier_id, driver_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		assignment.ID, assignment.OrgID, assignment.LegID, assignment.CarrierID,
		assignment.DriverID, assignment.CreatedAt,
	)
	if err != nil {
		return storageErr(err, "insert assignment")
	}
	return nil
}

// GetAssignment returns one assignment row.
func (r *LoadRepository) GetAssignment(ctx context.Context, orgID, id string) (*tms.ShipmentAssignment, error) {
	var assignment tms.ShipmentAssignment
	err := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, leg_id, carrier_id, driver_id, created_at
        FROM shipment_assignments WHERE org_id = ? AND id = ?`, orgID, id,
	).Scan(
		&assignment.ID, &assignment.OrgID, &assignment.LegID,
		&assignment.CarrierID, &assignment.DriverID, &assignment.CreatedAt,
	)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("assignment", id)
		}
		return nil, storageErr(err, "query assignment")
	}
	return &assignment, nil
}

// DeleteAssignment removes one assignment row.
func (r *LoadRepository) DeleteAssignment(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shipment_assignments WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storageErr(err, "delete assignment")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("assignment", id)
	}
	return nil
}

// DeleteAssignmentsByLeg clears every assignment on the leg.
func (r *LoadRepository) DeleteAssignmentsByLeg(ctx context.Context, orgID, legID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM shipment_assignments WHERE org_id = ? AND leg_id = ?`, orgID, legID)
	if err != nil {
		return storageErr(err, "delete leg assignments")
	}
	return nil
}

// ListStopsByAddress returns the most recent stops at an address.
func (r *LoadRepository) ListStopsByAddress(ctx context.Context, orgID, addressID string, limit int) ([]tms.Stop, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stopColumns+` FROM stops WHERE org_id = ? AND address_id = ?
        ORDER BY created_at DESC, id DESC LIMIT ?`, orgID, addressID, limit)
	if err != nil {
		return nil, storageErr(err, "query stops by address")
	}
	defer rows.Close()

	var stops []tms.Stop
	for rows.Next() {
		stop, err := scanStop(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan stop row")
		}
		stops = append(stops, *stop)
	}
	return stops, rows.Err()
}

// ListLoadsByDriver returns loads the driver is assigned to, newest
// first.
func (r *LoadRepository) ListLoadsByDriver(ctx context.Context, orgID, driverID string, limit int) ([]*tms.LoadDetail, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT DISTINCT ` + prefixColumns("l", loadColumns) + ` FROM loads l
        JOIN legs lg ON lg.load_id = l.id
        JOIN shipment_assignments sa ON sa.leg_id = lg.id
        WHERE l.org_id = ? AND sa.driver_id = ?
        ORDER BY l.created_at DESC, l.id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, orgID, driverID, limit)
	if err != nil {
		return nil, storageErr(err, "query loads by driver")
	}
	defer rows.Close()

	var loads []*tms.Load
	for rows.Next() {
		load, err := scanLoad(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan load row")
		}
		loads = append(loads, load)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate loads")
	}
	return r.assembleDetails(ctx, orgID, loads)
}
