package tms

import (
	"context"
	"time"
)

// LoadFilter narrows load listings and searches. All fields combine
// with AND; zero values are ignored.
type LoadFilter struct {
	ReferenceNumber string
	BOLNumber       string
	CustomerID      string
	Statuses        []LoadStatus
	BillingStatuses []BillingStatus
	TrailerType     TrailerType
	PickupAfter     time.Time
	PickupBefore    time.Time
	Limit           int
	Offset          int
}

// applyDefaults sanitizes the filter and caps the page size.
func (f *LoadFilter) applyDefaults() {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// LoadStore persists loads and their nested legs, stops, and
// assignments. All methods are organization scoped.
type LoadStore interface {
	CreateLoad(ctx context.Context, load *Load) error
	GetLoad(ctx context.Context, orgID, id string) (*LoadDetail, error)
	UpdateLoad(ctx context.Context, load *Load) error
	DeleteLoad(ctx context.Context, orgID, id string) error
	ListLoads(ctx context.Context, orgID string, filter LoadFilter) ([]*LoadDetail, error)

	CreateLeg(ctx context.Context, leg *Leg) error
	GetLeg(ctx context.Context, orgID, id string) (*LegDetail, error)
	DeleteLeg(ctx context.Context, orgID, id string) error

	CreateStop(ctx context.Context, stop *Stop) error
	GetStop(ctx context.Context, orgID, id string) (*Stop, error)
	UpdateStop(ctx context.Context, stop *Stop) error
	DeleteStop(ctx context.Context, orgID, id string) error

	CreateAssignment(ctx context.Context, assignment *ShipmentAssignment) error
	GetAssignment(ctx context.Context, orgID, id string) (*ShipmentAssignment, error)
	DeleteAssignment(ctx context.Context, orgID, id string) error
	DeleteAssignmentsByLeg(ctx context.Context, orgID, legID string) error

	ListStopsByAddress(ctx context.Context, orgID, addressID string, limit int) ([]Stop, error)
	ListLoadsByDriver(ctx context.Context, orgID, driverID string, limit int) ([]*LoadDetail, error)
}

// DirectoryStore persists the reference entities loads point at.
type DirectoryStore interface {
	CreateCarrier(ctx context.Context, carrier *Carrier) error
	GetCarrier(ctx context.Context, orgID, id string) (*Carrier, error)
	UpdateCarrier(ctx context.Context, carrier *Carrier) error
	DeleteCarrier(ctx context.Context, orgID, id string) error
	ListCarriers(ctx context.Context, orgID string, query string, limit int) ([]*Carrier, error)

	CreateDriver(ctx context.Context, driver *Driver) error
	GetDriver(ctx context.Context, orgID, id string) (*Driver, error)
	UpdateDriver(ctx context.Context, driver *Driver) error
	DeleteDriver(ctx context.Context, orgID, id string) error
	ListDrivers(ctx context.Context, orgID string, carrierID string, limit int) ([]*Driver, error)

	CreateCustomer(ctx context.Context, customer *Customer) error
	GetCustomer(ctx context.Context, orgID, id string) (*Customer, error)
	UpdateCustomer(ctx context.Context, customer *Customer) error
	DeleteCustomer(ctx context.Context, orgID, id string) error
	ListCustomers(ctx context.Context, orgID string, query string, limit int) ([]*Customer, error)

	CreateRepresentative(ctx context.Context, rep *CustomerRepresentative) error
	ListRepresentatives(ctx context.Context, orgID, customerID string) ([]*CustomerRepresentative, error)
	DeleteRepresentative(ctx context.Context, orgID, id string) error

	CreateAPContact(ctx context.Context, ap *CustomerAP) error
	ListAPContacts(ctx context.Context, orgID, customerID string) ([]*CustomerAP, error)
	DeleteAPContact(ctx context.Context, orgID, id string) error

	CreateAddress(ctx context.Context, address *Address) error
	GetAddress(ctx context.Context, orgID, id string) (*Address, error)
	UpdateAddress(ctx context.Context, address *Address) error
	DeleteAddress(ctx context.Context, orgID, id string) error
	ListAddresses(ctx context.Context, orgID string, query string, limit int) ([]*Address, error)

	RecordAddressUsage(ctx context.Context, usage *AddressUsage) error
	RecordAddressUsageByCustomer(ctx context.Context, usage *AddressUsageByCustomer) error
	RecentAddresses(ctx context.Context, orgID, customerID string, since time.Time, limit int) ([]*Address, error)
}

// Store combines everything the domain service needs from storage.
type Store interface {
	LoadStore
	DirectoryStore
	Close() error
}
