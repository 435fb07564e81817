package tms

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "machtms/internal/errors"
)

// MemoryStore is an in-memory Store used in tests and single-node
// development setups. It applies the same organization scoping rules
// as the MySQL implementation.
type MemoryStore struct {
	mu sync.RWMutex

	loads       map[string]*Load
	legs        map[string]*Leg
	stops       map[string]*Stop
	assignments map[string]*ShipmentAssignment

	carriers  map[string]*Carrier
	drivers   map[string]*Driver
	customers map[string]*Customer
	reps      map[string]*CustomerRepresentative
	aps       map[string]*CustomerAP
	addresses map[string]*Address

	usages         []*AddressUsage
	customerUsages []*AddressUsageByCustomer
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loads:       make(map[string]*Load),
		legs:        make(map[string]*Leg),
		stops:       make(map[string]*Stop),
		assignments: make(map[string]*ShipmentAssignment),
		carriers:    make(map[string]*Carrier),
		drivers:     make(map[string]*Driver),
		customers:   make(map[string]*Customer),
		reps:        make(map[string]*CustomerRepresentative),
		aps:         make(map[string]*CustomerAP),
		addresses:   make(map[string]*Address),
	}
}

func notFound(kind string) error {
	return apperrors.New(apperrors.CodeNotFound, kind+" not found")
}

// CreateLoad stores a new load.
func (s *MemoryStore) CreateLoad(_ context.Context, load *Load) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *load
	s.loads[load.ID] = &clone
	return nil
}

// GetLoad returns a load with its legs, stops, and assignments.
func (s *MemoryStore) GetLoad(_ context.Context, orgID, id string) (*LoadDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	load, ok := s.loads[id]
	if !ok || load.OrgID != orgID {
		return nil, notFound("load")
	}
	return s.assembleLocked(load), nil
}

// UpdateLoad replaces the stored load row.
func (s *MemoryStore) UpdateLoad(_ context.Context, load *Load) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.loads[load.ID]
	if !ok || existing.OrgID != load.OrgID {
		return notFound("load")
	}
	clone := *load
	s.loads[load.ID] = &clone
	return nil
}

// DeleteLoad removes a load and everything nested under it.
func (s *MemoryStore) DeleteLoad(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	load, ok := s.loads[id]
	if !ok || load.OrgID != orgID {
		return notFound("load")
	}
	for legID, leg := range s.legs {
		if leg.LoadID != id {
			continue
		}
		s.deleteLegLocked(legID)
	}
	delete(s.loads, id)
	return nil
}

// ListLoads returns loads matching the filter, newest first.
func (s *MemoryStore) ListLoads(_ context.Context, orgID string, filter LoadFilter) ([]*LoadDetail, error) {
	filter.applyDefaults()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*LoadDetail
	for _, load := range s.loads {
		if load.OrgID != orgID {
			continue
		}
		detail := s.assembleLocked(load)
		if !matchLoad(detail, filter) {
			continue
		}
		matched = append(matched, detail)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func matchLoad(detail *LoadDetail, filter LoadFilter) bool {
	if filter.ReferenceNumber != "" &&
		!strings.Contains(strings.ToLower(detail.ReferenceNumber), strings.ToLower(filter.ReferenceNumber)) {
		return false
	}
	if filter.BOLNumber != "" &&
		!strings.Contains(strings.ToLower(detail.BOLNumber), strings.ToLower(filter.BOLNumber)) {
		return false
	}
	if filter.CustomerID != "" && detail.CustomerID != filter.CustomerID {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, detail.Status) {
		return false
	}
	if len(filter.BillingStatuses) > 0 && !containsBilling(filter.BillingStatuses, detail.BillingStatus) {
		return false
	}
	if filter.TrailerType != "" && detail.TrailerType != filter.TrailerType {
		return false
	}
	if !filter.PickupAfter.IsZero() || !filter.PickupBefore.IsZero() {
		if !hasPickupInRange(detail, filter.PickupAfter, filter.PickupBefore) {
			return false
		}
	}
	return true
}

func hasPickupInRange(detail *LoadDetail, after, before time.Time) bool {
	for _, leg := range detail.Legs {
		for _, stop := range leg.Stops {
			if !stop.Action.Pickup() {
				continue
			}
			if !after.IsZero() && stop.StartRange.Before(after) {
				continue
			}
			if !before.IsZero() && !stop.StartRange.Before(before) {
				continue
			}
			return true
		}
	}
	return false
}

func containsStatus(list []LoadStatus, s LoadStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsBilling(list []BillingStatus, s BillingStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// assembleLocked builds a LoadDetail. Callers hold at least the read lock.
func (s *MemoryStore) assembleLocked(load *Load) *LoadDetail {
	clone := *load
	detail := &LoadDetail{Load: clone}

	if load.CustomerID != "" {
		if customer, ok := s.customers[load.CustomerID]; ok {
			c := *customer
			detail.Customer = &c
		}
	}

	var legs []*Leg
	for _, leg := range s.legs {
		if leg.LoadID == load.ID {
			legs = append(legs, leg)
		}
	}
	sort.Slice(legs, func(i, j int) bool {
		if !legs[i].CreatedAt.Equal(legs[j].CreatedAt) {
			return legs[i].CreatedAt.Before(legs[j].CreatedAt)
		}
		return legs[i].ID < legs[j].ID
	})

	for _, leg := range legs {
		detail.Legs = append(detail.Legs, *s.assembleLegLocked(leg))
	}
	return detail
}

func (s *MemoryStore) assembleLegLocked(leg *Leg) *LegDetail {
	clone := *leg
	detail := &LegDetail{Leg: clone}
	for _, stop := range s.stops {
		if stop.LegID == leg.ID {
			detail.Stops = append(detail.Stops, *stop)
		}
	}
	sort.Slice(detail.Stops, func(i, j int) bool {
		return detail.Stops[i].StopNumber < detail.Stops[j].StopNumber
	})
	for _, assignment := range s.assignments {
		if assignment.LegID == leg.ID {
			detail.Assignments = append(detail.Assignments, *assignment)
		}
	}
	sort.Slice(detail.Assignments, func(i, j int) bool {
		return detail.Assignments[i].ID < detail.Assignments[j].ID
	})
	return detail
}

// CreateLeg stores a new leg.
func (s *MemoryStore) CreateLeg(_ context.Context, leg *Leg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	load, ok := s.loads[leg.LoadID]
	if !ok || load.OrgID != leg.OrgID {
		return notFound("load")
	}
	clone := *leg
	s.legs[leg.ID] = &clone
	return nil
}

// GetLeg returns a leg with its stops and assignments.
func (s *MemoryStore) GetLeg(_ context.Context, orgID, id string) (*LegDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leg, ok := s.legs[id]
	if !ok || leg.OrgID != orgID {
		return nil, notFound("leg")
	}
	return s.assembleLegLocked(leg), nil
}

// DeleteLeg removes a leg with its stops and assignments.
func (s *MemoryStore) DeleteLeg(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	leg, ok := s.legs[id]
	if !ok || leg.OrgID != orgID {
		return notFound("leg")
	}
	s.deleteLegLocked(id)
	return nil
}

func (s *MemoryStore) deleteLegLocked(legID string) {
	for stopID, stop := range s.stops {
		if stop.LegID == legID {
			delete(s.stops, stopID)
		}
	}
	for assignmentID, assignment := range s.assignments {
		if assignment.LegID == legID {
			delete(s.assignments, assignmentID)
		}
	}
	delete(s.legs, legID)
}

// CreateStop stores a new stop, enforcing stop number uniqueness per leg.
func (s *MemoryStore) CreateStop(_ context.Context, stop *Stop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	leg, ok := s.legs[stop.LegID]
	if !ok || leg.OrgID != stop.OrgID {
		return notFound("leg")
	}
	for _, existing := range s.stops {
		if existing.LegID == stop.LegID && existing.StopNumber == stop.StopNumber {
			return apperrors.New(apperrors.CodeConflict, "stop number already used in leg")
		}
	}
	clone := *stop
	s.stops[stop.ID] = &clone
	return nil
}

// GetStop returns a stop by id.
func (s *MemoryStore) GetStop(_ context.Context, orgID, id string) (*Stop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stop, ok := s.stops[id]
	if !ok || stop.OrgID != orgID {
		return nil, notFound("stop")
	}
	clone := *stop
	return &clone, nil
}

// UpdateStop replaces the stored stop row.
func (s *MemoryStore) UpdateStop(_ context.Context, stop *Stop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.stops[stop.ID]
	if !ok || existing.OrgID != stop.OrgID {
		return notFound("stop")
	}
	for _, other := range s.stops {
		if other.ID != stop.ID && other.LegID == stop.LegID && other.StopNumber == stop.StopNumber {
			return apperrors.New(apperrors.CodeConflict, "stop number already used in leg")
		}
	}
	clone := *stop
	s.stops[stop.ID] = &clone
	return nil
}

// DeleteStop removes a stop.
func (s *MemoryStore) DeleteStop(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stop, ok := s.stops[id]
	if !ok || stop.OrgID != orgID {
		return notFound("stop")
	}
	delete(s.stops, id)
	return nil
}

// CreateAssignment stores a new shipment assignment.
func (s *MemoryStore) CreateAssignment(_ context.Context, assignment *ShipmentAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	leg, ok := s.legs[assignment.LegID]
	if !ok || leg.OrgID != assignment.OrgID {
		return notFound("leg")
	}
	clone := *assignment
	s.assignments[assignment.ID] = &clone
	return nil
}

// GetAssignment returns one assignment.
func (s *MemoryStore) GetAssignment(_ context.Context, orgID, id string) (*ShipmentAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assignment, ok := s.assignments[id]
	if !ok || assignment.OrgID != orgID {
		return nil, notFound("assignment")
	}
	out := *assignment
	return &out, nil
}

// DeleteAssignment removes an assignment.
func (s *MemoryStore) DeleteAssignment(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignment, ok := s.assignments[id]
	if !ok || assignment.OrgID != orgID {
		return notFound("assignment")
	}
	delete(s.assignments, id)
	return nil
}

// DeleteAssignmentsByLeg removes every assignment on a leg.
func (s *MemoryStore) DeleteAssignmentsByLeg(_ context.Context, orgID, legID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, assignment := range s.assignments {
		if assignment.LegID == legID && assignment.OrgID == orgID {
			delete(s.assignments, id)
		}
	}
	return nil
}

// CreateCarrier stores a new carrier.
func (s *MemoryStore) CreateCarrier(_ context.Context, carrier *Carrier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *carrier
	s.carriers[carrier.ID] = &clone
	return nil
}

// GetCarrier returns a carrier by id.
func (s *MemoryStore) GetCarrier(_ context.Context, orgID, id string) (*Carrier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	carrier, ok := s.carriers[id]
	if !ok || carrier.OrgID != orgID {
		return nil, notFound("carrier")
	}
	clone := *carrier
	return &clone, nil
}

// UpdateCarrier replaces the stored carrier row.
func (s *MemoryStore) UpdateCarrier(_ context.Context, carrier *Carrier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.carriers[carrier.ID]
	if !ok || existing.OrgID != carrier.OrgID {
		return notFound("carrier")
	}
	clone := *carrier
	s.carriers[carrier.ID] = &clone
	return nil
}

// DeleteCarrier removes a carrier.
func (s *MemoryStore) DeleteCarrier(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	carrier, ok := s.carriers[id]
	if !ok || carrier.OrgID != orgID {
		return notFound("carrier")
	}
	delete(s.carriers, id)
	return nil
}

// ListCarriers returns carriers matching the name query, sorted by name.
func (s *MemoryStore) ListCarriers(_ context.Context, orgID string, query string, limit int) ([]*Carrier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Carrier
	query = strings.ToLower(query)
	for _, carrier := range s.carriers {
		if carrier.OrgID != orgID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(carrier.Name), query) {
			continue
		}
		clone := *carrier
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return capSlice(out, limit), nil
}

// CreateDriver stores a new driver.
func (s *MemoryStore) CreateDriver(_ context.Context, driver *Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *driver
	s.drivers[driver.ID] = &clone
	return nil
}

// GetDriver returns a driver by id.
func (s *MemoryStore) GetDriver(_ context.Context, orgID, id string) (*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	driver, ok := s.drivers[id]
	if !ok || driver.OrgID != orgID {
		return nil, notFound("driver")
	}
	clone := *driver
	return &clone, nil
}

// UpdateDriver replaces the stored driver row.
func (s *MemoryStore) UpdateDriver(_ context.Context, driver *Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.drivers[driver.ID]
	if !ok || existing.OrgID != driver.OrgID {
		return notFound("driver")
	}
	clone := *driver
	s.drivers[driver.ID] = &clone
	return nil
}

// DeleteDriver removes a driver.
func (s *MemoryStore) DeleteDriver(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	driver, ok := s.drivers[id]
	if !ok || driver.OrgID != orgID {
		return notFound("driver")
	}
	delete(s.drivers, id)
	return nil
}

// ListDrivers returns drivers, optionally restricted to a carrier.
func (s *MemoryStore) ListDrivers(_ context.Context, orgID string, carrierID string, limit int) ([]*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Driver
	for _, driver := range s.drivers {
		if driver.OrgID != orgID {
			continue
		}
		if carrierID != "" && driver.CarrierID != carrierID {
			continue
		}
		clone := *driver
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return capSlice(out, limit), nil
}

// CreateCustomer stores a new customer.
func (s *MemoryStore) CreateCustomer(_ context.Context, customer *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *customer
	s.customers[customer.ID] = &clone
	return nil
}

// GetCustomer returns a customer by id.
func (s *MemoryStore) GetCustomer(_ context.Context, orgID, id string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok || customer.OrgID != orgID {
		return nil, notFound("customer")
	}
	clone := *customer
	return &clone, nil
}

// UpdateCustomer replaces the stored customer row.
func (s *MemoryStore) UpdateCustomer(_ context.Context, customer *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[customer.ID]
	if !ok || existing.OrgID != customer.OrgID {
		return notFound("customer")
	}
	clone := *customer
	s.customers[customer.ID] = &clone
	return nil
}

// DeleteCustomer removes a customer with its contacts.
func (s *MemoryStore) DeleteCustomer(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok || customer.OrgID != orgID {
		return notFound("customer")
	}
	for repID, rep := range s.reps {
		if rep.CustomerID == id {
			delete(s.reps, repID)
		}
	}
	for apID, ap := range s.aps {
		if ap.CustomerID == id {
			delete(s.aps, apID)
		}
	}
	delete(s.customers, id)
	return nil
}

// ListCustomers returns customers matching the name query, sorted by name.
func (s *MemoryStore) ListCustomers(_ context.Context, orgID string, query string, limit int) ([]*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Customer
	query = strings.ToLower(query)
	for _, customer := range s.customers {
		if customer.OrgID != orgID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(customer.Name), query) {
			continue
		}
		clone := *customer
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return capSlice(out, limit), nil
}

// CreateRepresentative stores a customer representative.
func (s *MemoryStore) CreateRepresentative(_ context.Context, rep *CustomerRepresentative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[rep.CustomerID]
	if !ok || customer.OrgID != rep.OrgID {
		return notFound("customer")
	}
	clone := *rep
	s.reps[rep.ID] = &clone
	return nil
}

// ListRepresentatives returns a customer's representatives.
func (s *MemoryStore) ListRepresentatives(_ context.Context, orgID, customerID string) ([]*CustomerRepresentative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CustomerRepresentative
	for _, rep := range s.reps {
		if rep.OrgID != orgID || rep.CustomerID != customerID {
			continue
		}
		clone := *rep
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteRepresentative removes a representative.
func (s *MemoryStore) DeleteRepresentative(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.reps[id]
	if !ok || rep.OrgID != orgID {
		return notFound("representative")
	}
	delete(s.reps, id)
	return nil
}

// CreateAPContact stores an accounts payable contact.
func (s *MemoryStore) CreateAPContact(_ context.Context, ap *CustomerAP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[ap.CustomerID]
	if !ok || customer.OrgID != ap.OrgID {
		return notFound("customer")
	}
	clone := *ap
	s.aps[ap.ID] = &clone
	return nil
}

// ListAPContacts returns a customer's accounts payable contacts.
func (s *MemoryStore) ListAPContacts(_ context.Context, orgID, customerID string) ([]*CustomerAP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CustomerAP
	for _, ap := range s.aps {
		if ap.OrgID != orgID || ap.CustomerID != customerID {
			continue
		}
		clone := *ap
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// DeleteAPContact removes an accounts payable contact.
func (s *MemoryStore) DeleteAPContact(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.aps[id]
	if !ok || ap.OrgID != orgID {
		return notFound("ap contact")
	}
	delete(s.aps, id)
	return nil
}

// CreateAddress stores a new address.
func (s *MemoryStore) CreateAddress(_ context.Context, address *Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *address
	s.addresses[address.ID] = &clone
	return nil
}

// GetAddress returns an address by id.
func (s *MemoryStore) GetAddress(_ context.Context, orgID, id string) (*Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	address, ok := s.addresses[id]
	if !ok || address.OrgID != orgID {
		return nil, notFound("address")
	}
	clone := *address
	return &clone, nil
}

// UpdateAddress replaces the stored address row.
func (s *MemoryStore) UpdateAddress(_ context.Context, address *Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.addresses[address.ID]
	if !ok || existing.OrgID != address.OrgID {
		return notFound("address")
	}
	clone := *address
	s.addresses[address.ID] = &clone
	return nil
}

// DeleteAddress removes an address.
func (s *MemoryStore) DeleteAddress(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	address, ok := s.addresses[id]
	if !ok || address.OrgID != orgID {
		return notFound("address")
	}
	delete(s.addresses, id)
	return nil
}

// ListAddresses returns addresses whose rendered form matches the query.
func (s *MemoryStore) ListAddresses(_ context.Context, orgID string, query string, limit int) ([]*Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Address
	query = strings.ToLower(query)
	for _, address := range s.addresses {
		if address.OrgID != orgID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(address.String()), query) {
			continue
		}
		clone := *address
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return capSlice(out, limit), nil
}

// RecordAddressUsage appends an address usage row.
func (s *MemoryStore) RecordAddressUsage(_ context.Context, usage *AddressUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *usage
	s.usages = append(s.usages, &clone)
	return nil
}

// RecordAddressUsageByCustomer appends a customer-scoped usage row.
func (s *MemoryStore) RecordAddressUsageByCustomer(_ context.Context, usage *AddressUsageByCustomer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *usage
	s.customerUsages = append(s.customerUsages, &clone)
	return nil
}

// RecentAddresses returns addresses a customer used since the cutoff,
// most recently used first.
func (s *MemoryStore) RecentAddresses(_ context.Context, orgID, customerID string, since time.Time, limit int) ([]*Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]time.Time)
	if customerID != "" {
		for _, usage := range s.customerUsages {
			if usage.OrgID != orgID || usage.CustomerID != customerID {
				continue
			}
			if usage.LastUsed.Before(since) {
				continue
			}
			if usage.LastUsed.After(latest[usage.AddressID]) {
				latest[usage.AddressID] = usage.LastUsed
			}
		}
	} else {
		for _, usage := range s.usages {
			if usage.OrgID != orgID || usage.LastUsed.Before(since) {
				continue
			}
			if usage.LastUsed.After(latest[usage.AddressID]) {
				latest[usage.AddressID] = usage.LastUsed
			}
		}
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if !latest[ids[i]].Equal(latest[ids[j]]) {
			return latest[ids[i]].After(latest[ids[j]])
		}
		return ids[i] < ids[j]
	})

	var out []*Address
	for _, id := range ids {
		address, ok := s.addresses[id]
		if !ok {
			continue
		}
		clone := *address
		out = append(out, &clone)
	}
	return capSlice(out, limit), nil
}

// ListStopsByAddress returns the most recent stops at an address,
// newest first.
func (s *MemoryStore) ListStopsByAddress(_ context.Context, orgID, addressID string, limit int) ([]Stop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Stop
	for _, stop := range s.stops {
		if stop.OrgID != orgID || stop.AddressID != addressID {
			continue
		}
		out = append(out, *stop)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return capSlice(out, limit), nil
}

// ListLoadsByDriver returns loads the driver is assigned to, newest
// first.
func (s *MemoryStore) ListLoadsByDriver(_ context.Context, orgID, driverID string, limit int) ([]*LoadDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loadIDs := make(map[string]struct{})
	for _, assignment := range s.assignments {
		if assignment.OrgID != orgID || assignment.DriverID != driverID {
			continue
		}
		if leg, ok := s.legs[assignment.LegID]; ok {
			loadIDs[leg.LoadID] = struct{}{}
		}
	}

	var out []*LoadDetail
	for id := range loadIDs {
		if load, ok := s.loads[id]; ok && load.OrgID == orgID {
			out = append(out, s.assembleLocked(load))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return capSlice(out, limit), nil
}

// Close releases nothing for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func capSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
