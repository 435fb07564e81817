package tms

import (
	"context"
	"time"

	apperrors "machtms/internal/errors"
)

// Directory entity kinds reported through the Notifier and used as
// search index targets.
const (
	KindCarrier  = "carrier"
	KindCustomer = "customer"
	KindAddress  = "address"
)

// CreateCarrier validates and stores a carrier.
func (s *Service) CreateCarrier(ctx context.Context, orgID string, carrier Carrier) (*Carrier, error) {
	if carrier.Name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "carrier_name is required")
	}
	now := s.now().UTC()
	carrier.ID = s.newID()
	carrier.OrgID = orgID
	carrier.CreatedAt = now
	carrier.UpdatedAt = now
	if err := s.store.CreateCarrier(ctx, &carrier); err != nil {
		return nil, err
	}
	s.notifier.DirectoryChanged(ctx, orgID, KindCarrier, carrier.ID)
	return &carrier, nil
}

// GetCarrier returns a carrier by id.
func (s *Service) GetCarrier(ctx context.Context, orgID, id string) (*Carrier, error) {
	return s.store.GetCarrier(ctx, orgID, id)
}

// UpdateCarrier replaces a carrier's mutable fields.
func (s *Service) UpdateCarrier(ctx context.Context, orgID string, carrier Carrier) (*Carrier, error) {
	existing, err := s.store.GetCarrier(ctx, orgID, carrier.ID)
	if err != nil {
		return nil, err
	}
	if carrier.Name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "carrier_name is required")
	}
	carrier.OrgID = orgID
	carrier.CreatedAt = existing.CreatedAt
	carrier.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateCarrier(ctx, &carrier); err != nil {
		return nil, err
	}
	s.notifier.DirectoryChanged(ctx, orgID, KindCarrier, carrier.ID)
	return &carrier, nil
}

// DeleteCarrier removes a carrier.
func (s *Service) DeleteCarrier(ctx context.Context, orgID, id string) error {
	if err := s.store.DeleteCarrier(ctx, orgID, id); err != nil {
		return err
	}
	s.notifier.DirectoryDeleted(ctx, orgID, KindCarrier, id)
	return nil
}

// ListCarriers returns carriers matching the name query.
func (s *Service) ListCarriers(ctx context.Context, orgID, query string, limit int) ([]*Carrier, error) {
	return s.store.ListCarriers(ctx, orgID, query, normalizeLimit(limit))
}

// CreateDriver validates and stores a driver. A driver's carrier must
// already exist within the organization.
func (s *Service) CreateDriver(ctx context.Context, orgID string, driver Driver) (*Driver, error) {
	if driver.FirstName == "" && driver.LastName == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "driver name is required")
	}
	if driver.CarrierID != "" {
		if _, err := s.store.GetCarrier(ctx, orgID, driver.CarrierID); err != nil {
			return nil, err
		}
	}
	if driver.AddressID != "" {
		if _, err := s.store.GetAddress(ctx, orgID, driver.AddressID); err != nil {
			return nil, err
		}
	}
	now := s.now().UTC()
	driver.ID = s.newID()
	driver.OrgID = orgID
	driver.CreatedAt = now
	driver.UpdatedAt = now
	if err := s.store.CreateDriver(ctx, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// GetDriver returns a driver by id.
func (s *Service) GetDriver(ctx context.Context, orgID, id string) (*Driver, error) {
	return s.store.GetDriver(ctx, orgID, id)
}

// UpdateDriver replaces a driver's mutable fields.
func (s *Service) UpdateDriver(ctx context.Context, orgID string, driver Driver) (*Driver, error) {
	existing, err := s.store.GetDriver(ctx, orgID, driver.ID)
	if err != nil {
		return nil, err
	}
	if driver.CarrierID != "" {
		if _, err := s.store.GetCarrier(ctx, orgID, driver.CarrierID); err != nil {
			return nil, err
		}
	}
	driver.OrgID = orgID
	driver.CreatedAt = existing.CreatedAt
	driver.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateDriver(ctx, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// DeleteDriver removes a driver.
func (s *Service) DeleteDriver(ctx context.Context, orgID, id string) error {
	return s.store.DeleteDriver(ctx, orgID, id)
}

// ListDrivers returns drivers, optionally restricted to one carrier.
func (s *Service) ListDrivers(ctx context.Context, orgID, carrierID string, limit int) ([]*Driver, error) {
	return s.store.ListDrivers(ctx, orgID, carrierID, normalizeLimit(limit))
}

// CreateCustomer validates and stores a customer.
func (s *Service) CreateCustomer(ctx context.Context, orgID string, customer Customer) (*Customer, error) {
	if customer.Name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "customer_name is required")
	}
	if customer.AddressID != "" {
		if _, err := s.store.GetAddress(ctx, orgID, customer.AddressID); err != nil {
			return nil, err
		}
	}
	now := s.now().UTC()
	customer.ID = s.newID()
	customer.OrgID = orgID
	customer.CreatedAt = now
	customer.UpdatedAt = now
	if err := s.store.CreateCustomer(ctx, &customer); err != nil {
		return nil, err
	}
	s.notifier.DirectoryChanged(ctx, orgID, KindCustomer, customer.ID)
	return &customer, nil
}

// GetCustomer returns a customer by id.
func (s *Service) GetCustomer(ctx context.Context, orgID, id string) (*Customer, error) {
	return s.store.GetCustomer(ctx, orgID, id)
}

// UpdateCustomer replaces a customer's mutable fields.
func (s *Service) UpdateCustomer(ctx context.Context, orgID string, customer Customer) (*Customer, error) {
	existing, err := s.store.GetCustomer(ctx, orgID, customer.ID)
	if err != nil {
		return nil, err
	}
	if customer.Name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "customer_name is required")
	}
	customer.OrgID = orgID
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateCustomer(ctx, &customer); err != nil {
		return nil, err
	}
	s.notifier.DirectoryChanged(ctx, orgID, KindCustomer, customer.ID)
	return &customer, nil
}

// DeleteCustomer removes a customer with its contacts.
func (s *Service) DeleteCustomer(ctx context.Context, orgID, id string) error {
	if err := s.store.DeleteCustomer(ctx, orgID, id); err != nil {
		return err
	}
	s.notifier.DirectoryDeleted(ctx, orgID, KindCustomer, id)
	return nil
}

// ListCustomers returns customers matching the name query.
func (s *Service) ListCustomers(ctx context.Context, orgID, query string, limit int) ([]*Customer, error) {
	return s.store.ListCustomers(ctx, orgID, query, normalizeLimit(limit))
}

// AddRepresentative stores a named contact for a customer.
func (s *Service) AddRepresentative(ctx context.Context, orgID string, rep CustomerRepresentative) (*CustomerRepresentative, error) {
	if rep.Name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "representative name is required")
	}
	rep.ID = s.newID()
	rep.OrgID = orgID
	if err := s.store.CreateRepresentative(ctx, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// ListRepresentatives returns a customer's representatives.
func (s *Service) ListRepresentatives(ctx context.Context, orgID, customerID string) ([]*CustomerRepresentative, error) {
	return s.store.ListRepresentatives(ctx, orgID, customerID)
}

// DeleteRepresentative removes a representative.
func (s *Service) DeleteRepresentative(ctx context.Context, orgID, id string) error {
	return s.store.DeleteRepresentative(ctx, orgID, id)
}

// AddAPContact stores an accounts payable contact for a customer.
func (s *Service) AddAPContact(ctx context.Context, orgID string, ap CustomerAP) (*CustomerAP, error) {
	if ap.Email == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "ap contact email is required")
	}
	if ap.PaymentType == "" {
		ap.PaymentType = PaymentStandard
	}
	if !ap.PaymentType.Valid() {
		return nil, apperrors.New(apperrors.CodeValidation, "unknown payment type")
	}
	ap.ID = s.newID()
	ap.OrgID = orgID
	if err := s.store.CreateAPContact(ctx, &ap); err != nil {
		return nil, err
	}
	return &ap, nil
}

// ListAPContacts returns a customer's accounts payable contacts.
func (s *Service) ListAPContacts(ctx context.Context, orgID, customerID string) ([]*CustomerAP, error) {
	return s.store.ListAPContacts(ctx, orgID, customerID)
}

// DeleteAPContact removes an accounts payable contact.
func (s *Service) DeleteAPContact(ctx context.Context, orgID, id string) error {
	return s.store.DeleteAPContact(ctx, orgID, id)
}

// CreateAddress validates and stores an address.
func (s *Service) CreateAddress(ctx context.Context, orgID string, address Address) (*Address, error) {
	if address.Street == "" || address.City == "" || address.State == "" {
		return nil, apperrors.New(apperrors.CodeValidation,
			"street, city, and state are required")
	}
	if address.Country == "" {
		address.Country = "US"
	}
	now := s.now().UTC()
	address.ID = s.newID()
	address.OrgID = orgID
	address.CreatedAt = now
	address.UpdatedAt = now
	if err := s.store.CreateAddress(ctx, &address); err != nil {
		return nil, err
	}
	s.notifier.DirectoryChanged(ctx, orgID, KindAddress, address.ID)
	return &address, nil
}

// GetAddress returns an address by id.
func (s *Service) GetAddress(ctx context.Context, orgID, id string) (*Address, error) {
	return s.store.GetAddress(ctx, orgID, id)
}

// UpdateAddress replaces an address's mutable fields.
func (s *Service) UpdateAddress(ctx context.Context, orgID string, address Address) (*Address, error) {
	existing, err := s.store.GetAddress(ctx, orgID, address.ID)
	if err != nil {
		return nil, err
	}
	address.OrgID = orgID
	address.CreatedAt = existing.CreatedAt
	address.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateAddress(ctx, &address); err != nil {
		return nil, err
	}
	s.notifier.DirectoryChanged(ctx, orgID, KindAddress, address.ID)
	return &address, nil
}

// DeleteAddress removes an address.
func (s *Service) DeleteAddress(ctx context.Context, orgID, id string) error {
	if err := s.store.DeleteAddress(ctx, orgID, id); err != nil {
		return err
	}
	s.notifier.DirectoryDeleted(ctx, orgID, KindAddress, id)
	return nil
}

// ListAddresses returns addresses matching the query.
func (s *Service) ListAddresses(ctx context.Context, orgID, query string, limit int) ([]*Address, error) {
	return s.store.ListAddresses(ctx, orgID, query, normalizeLimit(limit))
}

// RecentAddresses returns addresses a customer used in the trailing
// window, most recent first. A zero window defaults to 90 days.
func (s *Service) RecentAddresses(ctx context.Context, orgID, customerID string, window time.Duration, limit int) ([]*Address, error) {
	if window <= 0 {
		window = 90 * 24 * time.Hour
	}
	since := s.now().UTC().Add(-window)
	return s.store.RecentAddresses(ctx, orgID, customerID, since, normalizeLimit(limit))
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
