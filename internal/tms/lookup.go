package tms

import (
	"context"
	"strings"

	apperrors "machtms/internal/errors"
)

// EnsureAddress returns the existing address that matches street, city,
// state, and zip exactly (case-insensitive), creating it when absent.
func (s *Service) EnsureAddress(ctx context.Context, orgID string, address Address) (*Address, error) {
	if strings.TrimSpace(address.Street) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "address street is required")
	}
	candidates, err := s.store.ListAddresses(ctx, orgID, address.Street, 100)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if sameAddress(*candidate, address) {
			return candidate, nil
		}
	}
	return s.CreateAddress(ctx, orgID, address)
}

func sameAddress(a, b Address) bool {
	eq := func(x, y string) bool {
		return strings.EqualFold(strings.TrimSpace(x), strings.TrimSpace(y))
	}
	return eq(a.Street, b.Street) && eq(a.City, b.City) && eq(a.State, b.State) && eq(a.ZipCode, b.ZipCode)
}

// SimilarStops returns recent stops at an address, used to infer
// default actions and time windows for new stops there.
func (s *Service) SimilarStops(ctx context.Context, orgID, addressID string, limit int) ([]Stop, error) {
	if _, err := s.store.GetAddress(ctx, orgID, addressID); err != nil {
		return nil, err
	}
	return s.store.ListStopsByAddress(ctx, orgID, addressID, normalizeLimit(limit))
}

// RecentLoadsForDriver returns the driver's most recent loads.
func (s *Service) RecentLoadsForDriver(ctx context.Context, orgID, driverID string, limit int) ([]*LoadDetail, error) {
	if _, err := s.store.GetDriver(ctx, orgID, driverID); err != nil {
		return nil, err
	}
	return s.store.ListLoadsByDriver(ctx, orgID, driverID, normalizeLimit(limit))
}

// TextSearch narrows loads by partial, case-insensitive matches on the
// names of related entities.
type TextSearch struct {
	CustomerName    string
	CarrierName     string
	DriverName      string
	StopStreet      string
	Statuses        []LoadStatus
	BillingStatuses []BillingStatus
}

func (q TextSearch) empty() bool {
	return q.CustomerName == "" && q.CarrierName == "" && q.DriverName == "" &&
		q.StopStreet == "" && len(q.Statuses) == 0 && len(q.BillingStatuses) == 0
}

// SearchLoadsByText scans recent loads and keeps those whose customer,
// carrier, driver, or stop street matches the query. Results cap at
// the search limit.
func (s *Service) SearchLoadsByText(ctx context.Context, orgID string, query TextSearch) ([]*LoadDetail, error) {
	if query.empty() {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "search query cannot be empty")
	}

	filter := LoadFilter{
		Statuses:        query.Statuses,
		BillingStatuses: query.BillingStatuses,
		Limit:           100,
	}

	carriers := make(map[string]*Carrier)
	drivers := make(map[string]*Driver)
	addresses := make(map[string]*Address)

	var results []*LoadDetail
	for offset := 0; offset < 500; offset += filter.Limit {
		filter.Offset = offset
		page, err := s.store.ListLoads(ctx, orgID, filter)
		if err != nil {
			return nil, err
		}
		for _, detail := range page {
			match, err := s.matchText(ctx, orgID, detail, query, carriers, drivers, addresses)
			if err != nil {
				return nil, err
			}
			if match {
				results = append(results, detail)
				if len(results) >= maxSearchResults {
					return results, nil
				}
			}
		}
		if len(page) < filter.Limit {
			break
		}
	}
	return results, nil
}

func (s *Service) matchText(ctx context.Context, orgID string, detail *LoadDetail, query TextSearch,
	carriers map[string]*Carrier, drivers map[string]*Driver, addresses map[string]*Address) (bool, error) {

	contains := func(value, fragment string) bool {
		return fragment == "" || strings.Contains(strings.ToLower(value), strings.ToLower(fragment))
	}

	if query.CustomerName != "" {
		if detail.Customer == nil || !contains(detail.Customer.Name, query.CustomerName) {
			return false, nil
		}
	}

	if query.CarrierName != "" || query.DriverName != "" {
		matched := false
		for _, leg := range detail.Legs {
			for _, assignment := range leg.Assignments {
				carrierOK := query.CarrierName == ""
				driverOK := query.DriverName == ""
				if !carrierOK {
					carrier, err := s.cachedCarrier(ctx, orgID, assignment.CarrierID, carriers)
					if err != nil {
						return false, err
					}
					carrierOK = carrier != nil && contains(carrier.Name, query.CarrierName)
				}
				if !driverOK {
					driver, err := s.cachedDriver(ctx, orgID, assignment.DriverID, drivers)
					if err != nil {
						return false, err
					}
					driverOK = driver != nil && contains(driver.FullName(), query.DriverName)
				}
				if carrierOK && driverOK {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false, nil
		}
	}

	if query.StopStreet != "" {
		matched := false
		for _, leg := range detail.Legs {
			for _, stop := range leg.Stops {
				address, err := s.cachedAddress(ctx, orgID, stop.AddressID, addresses)
				if err != nil {
					return false, err
				}
				if address != nil && contains(address.Street, query.StopStreet) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) cachedCarrier(ctx context.Context, orgID, id string, cache map[string]*Carrier) (*Carrier, error) {
	if carrier, ok := cache[id]; ok {
		return carrier, nil
	}
	carrier, err := s.store.GetCarrier(ctx, orgID, id)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			cache[id] = nil
			return nil, nil
		}
		return nil, err
	}
	cache[id] = carrier
	return carrier, nil
}

func (s *Service) cachedDriver(ctx context.Context, orgID, id string, cache map[string]*Driver) (*Driver, error) {
	if driver, ok := cache[id]; ok {
		return driver, nil
	}
	driver, err := s.store.GetDriver(ctx, orgID, id)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			cache[id] = nil
			return nil, nil
		}
		return nil, err
	}
	cache[id] = driver
	return driver, nil
}

func (s *Service) cachedAddress(ctx context.Context, orgID, id string, cache map[string]*Address) (*Address, error) {
	if address, ok := cache[id]; ok {
		return address, nil
	}
	address, err := s.store.GetAddress(ctx, orgID, id)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			cache[id] = nil
			return nil, nil
		}
		return nil, err
	}
	cache[id] = address
	return address, nil
}
