package search

import (
	"context"

	"machtms/internal/tms"
)

// LoadDocument is the flattened load shape stored in the index. Stops
// carry rendered address lines so street-level queries hit loads.
type LoadDocument struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Reference      string         `json:"reference"`
	BOLNumber      string         `json:"bol_number,omitempty"`
	InvoiceID      string         `json:"invoice_id,omitempty"`
	Status         string         `json:"status"`
	BillingStatus  string         `json:"billing_status"`
	Customer       string         `json:"customer,omitempty"`
	Carrier        string         `json:"carrier,omitempty"`
	Stops          []StopDocument `json:"stops"`
}

// StopDocument is one flattened stop on a load document.
type StopDocument struct {
	StopNumber int    `json:"stop_num"`
	Action     string `json:"action"`
	Address    string `json:"address"`
}

// AddressDocument is the indexed address shape.
type AddressDocument struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Street         string `json:"street"`
	City           string `json:"city"`
	State          string `json:"state"`
	ZipCode        string `json:"zip_code"`
}

// CompanyDocument covers customers and carriers; both index by name.
type CompanyDocument struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	CompanyName    string `json:"company_name"`
}

// transformLoad flattens a load and resolves the names the index
// stores instead of ids. Unresolvable references leave blanks rather
// than failing the whole document.
func (s *Service) transformLoad(ctx context.Context, load *tms.LoadDetail) (LoadDocument, error) {
	doc := LoadDocument{
		ID:             load.ID,
		OrganizationID: load.OrgID,
		Reference:      load.ReferenceNumber,
		BOLNumber:      load.BOLNumber,
		InvoiceID:      load.InvoiceID,
		Status:         string(load.Status),
		BillingStatus:  string(load.BillingStatus),
	}
	if load.Customer != nil {
		doc.Customer = load.Customer.Name
	}

	for _, leg := range load.Legs {
		if doc.Carrier == "" && len(leg.Assignments) > 0 {
			if carrier, err := s.tms.GetCarrier(ctx, load.OrgID, leg.Assignments[0].CarrierID); err == nil {
				doc.Carrier = carrier.Name
			}
		}
		for _, stop := range leg.Stops {
			line := ""
			if address, err := s.tms.GetAddress(ctx, load.OrgID, stop.AddressID); err == nil {
				line = address.String()
			}
			doc.Stops = append(doc.Stops, StopDocument{
				StopNumber: stop.StopNumber,
				Action:     string(stop.Action),
				Address:    line,
			})
		}
	}
	return doc, nil
}

func transformAddress(address *tms.Address) AddressDocument {
	return AddressDocument{
		ID:             address.ID,
		OrganizationID: address.OrgID,
		Street:         address.Street,
		City:           address.City,
		State:          address.State,
		ZipCode:        address.ZipCode,
	}
}

func transformCustomer(customer *tms.Customer) CompanyDocument {
	return CompanyDocument{
		ID:             customer.ID,
		OrganizationID: customer.OrgID,
		CompanyName:    customer.Name,
	}
}

func transformCarrier(carrier *tms.Carrier) CompanyDocument {
	return CompanyDocument{
		ID:             carrier.ID,
		OrganizationID: carrier.OrgID,
		CompanyName:    carrier.Name,
	}
}
