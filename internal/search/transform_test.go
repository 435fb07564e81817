package search

import (
	"context"
	"testing"
	"time"

	"machtms/internal/tms"
)

func TestTransformLoadFlattensStopsAndNames(t *testing.T) {
	ctx := context.Background()
	domain := tms.NewService(tms.NewMemoryStore(), nil)
	orgID := "org-1"

	customer, err := domain.CreateCustomer(ctx, orgID, tms.Customer{Name: "Acme Logistics LLC"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	pickup, err := domain.CreateAddress(ctx, orgID, tms.Address{
		Street: "100 Dock Rd", City: "Fontana", State: "CA", ZipCode: "92335",
	})
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	drop, err := domain.CreateAddress(ctx, orgID, tms.Address{
		Street: "200 Yard Ave", City: "Reno", State: "NV", ZipCode: "89502",
	})
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	carrier, err := domain.CreateCarrier(ctx, orgID, tms.Carrier{Name: "Mach Trucking"})
	if err != nil {
		t.Fatalf("CreateCarrier: %v", err)
	}
	driver, err := domain.CreateDriver(ctx, orgID, tms.Driver{
		FirstName: "Pat", LastName: "Lee", PhoneNumber: "555-0100", CarrierID: carrier.ID,
	})
	if err != nil {
		t.Fatalf("CreateDriver: %v", err)
	}

	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	load, err := domain.CreateLoad(ctx, orgID, tms.LoadCreationPayload{
		CustomerID:      customer.ID,
		ReferenceNumber: "REF-100",
		Legs: []tms.LegPayload{{
			Stops: []tms.StopPayload{
				{StopNumber: 1, AddressID: pickup.ID, Action: "LL", StartRange: start.Format(time.RFC3339)},
				{StopNumber: 2, AddressID: drop.ID, Action: "LU", StartRange: start.Add(6 * time.Hour).Format(time.RFC3339)},
			},
			Assignment: &tms.AssignmentPayload{CarrierID: carrier.ID, DriverID: driver.ID},
		}},
	})
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	invoiceID := "10001"
	load, err = domain.UpdateLoad(ctx, orgID, load.ID, tms.LoadUpdate{InvoiceID: &invoiceID})
	if err != nil {
		t.Fatalf("UpdateLoad: %v", err)
	}

	svc := NewService(Config{Host: "http://127.0.0.1:7700"}, domain)
	doc, err := svc.transformLoad(ctx, load)
	if err != nil {
		t.Fatalf("transformLoad: %v", err)
	}

	if doc.ID != load.ID || doc.OrganizationID != orgID {
		t.Fatalf("doc identity = %q/%q", doc.ID, doc.OrganizationID)
	}
	if doc.Customer != "Acme Logistics LLC" || doc.Carrier != "Mach Trucking" {
		t.Fatalf("names = %q / %q", doc.Customer, doc.Carrier)
	}
	if doc.InvoiceID != "10001" {
		t.Fatalf("invoice_id = %q, want %q", doc.InvoiceID, "10001")
	}
	if len(doc.Stops) != 2 {
		t.Fatalf("stops = %d, want 2", len(doc.Stops))
	}
	if doc.Stops[0].Action != "LL" || doc.Stops[0].Address != "100 Dock Rd, Fontana, CA, 92335, US" {
		t.Fatalf("first stop = %+v", doc.Stops[0])
	}
}

func TestIndexForEntity(t *testing.T) {
	cases := []struct {
		entity string
		index  Index
		ok     bool
	}{
		{"load", IndexLoads, true},
		{"address", IndexAddresses, true},
		{"customer", IndexCustomers, true},
		{"carrier", IndexCarriers, true},
		{"driver", "", false},
	}
	for _, tc := range cases {
		index, ok := indexForEntity(tc.entity)
		if ok != tc.ok || index != tc.index {
			t.Fatalf("indexForEntity(%q) = %q, %v", tc.entity, index, ok)
		}
	}
}

func TestIndexUIDsApplyPrefix(t *testing.T) {
	domain := tms.NewService(tms.NewMemoryStore(), nil)
	svc := NewService(Config{Host: "http://127.0.0.1:7700", IndexPrefix: "DEBUG_"}, domain)
	if got := svc.uid(IndexLoads); got != "DEBUG_TMS_LOAD" {
		t.Fatalf("uid = %q", got)
	}
}
