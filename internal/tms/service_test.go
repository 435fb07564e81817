package tms

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fixture struct {
	svc       *Service
	store     *MemoryStore
	orgID     string
	customer  *Customer
	addresses []*Address
	carriers  []*Carrier
	drivers   []*Driver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, nil)
	f := &fixture{svc: svc, store: store, orgID: "org-1"}

	customer, err := svc.CreateCustomer(ctx, f.orgID, Customer{Name: "Acme Logistics LLC"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	f.customer = customer

	for i := 0; i < 3; i++ {
		address, err := svc.CreateAddress(ctx, f.orgID, Address{
			Street:  fmt.Sprintf("%d Dock Rd", 100+i),
			City:    "Fontana",
			State:   "CA",
			ZipCode: "92335",
		})
		if err != nil {
			t.Fatalf("create address: %v", err)
		}
		f.addresses = append(f.addresses, address)
	}

	for i := 0; i < 2; i++ {
		carrier, err := svc.CreateCarrier(ctx, f.orgID, Carrier{Name: fmt.Sprintf("Carrier %d", i+1)})
		if err != nil {
			t.Fatalf("create carrier: %v", err)
		}
		f.carriers = append(f.carriers, carrier)

		driver, err := svc.CreateDriver(ctx, f.orgID, Driver{
			FirstName:   fmt.Sprintf("Driver%d", i+1),
			LastName:    "Test",
			PhoneNumber: "555-0100",
			CarrierID:   carrier.ID,
		})
		if err != nil {
			t.Fatalf("create driver: %v", err)
		}
		f.drivers = append(f.drivers, driver)
	}
	return f
}

func (f *fixture) payload(pickup time.Time, assignment *AssignmentPayload) LoadCreationPayload {
	return LoadCreationPayload{
		CustomerID:      f.customer.ID,
		ReferenceNumber: "REF-" + pickup.Format("0102"),
		Legs: []LegPayload{
			{
				Stops: []StopPayload{
					{
						StopNumber: 1,
						AddressID:  f.addresses[0].ID,
						Action:     "LL",
						StartRange: pickup.Format(time.RFC3339),
					},
					{
						StopNumber: 2,
						AddressID:  f.addresses[1].ID,
						Action:     "LU",
						StartRange: pickup.Add(6 * time.Hour).Format(time.RFC3339),
					},
				},
				Assignment: assignment,
			},
		},
	}
}

func TestCreateLoadNested(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	detail, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, &AssignmentPayload{
		CarrierID: f.carriers[0].ID,
		DriverID:  f.drivers[0].ID,
	}))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	if detail.Status != LoadPending || detail.BillingStatus != BillingPendingDelivery {
		t.Fatalf("unexpected defaults: %s / %s", detail.Status, detail.BillingStatus)
	}
	if len(detail.Legs) != 1 || len(detail.Legs[0].Stops) != 2 {
		t.Fatalf("unexpected nested shape: %+v", detail.Legs)
	}
	if len(detail.Legs[0].Assignments) != 1 {
		t.Fatal("expected the leg to be assigned")
	}
	if detail.HasUnassignedLeg() {
		t.Fatal("assigned load reported as unassigned")
	}
	if !detail.FirstPickupTime().Equal(pickup) {
		t.Fatalf("first pickup = %v, want %v", detail.FirstPickupTime(), pickup)
	}
}

func TestCreateLoadRejectsForeignDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, &AssignmentPayload{
		CarrierID: f.carriers[0].ID,
		DriverID:  f.drivers[1].ID, // belongs to carriers[1]
	}))
	if err == nil {
		t.Fatal("expected assignment with mismatched carrier to fail")
	}
}

func TestCreateLoadIsolatedByOrganization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	detail, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, nil))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	if _, err := f.svc.GetLoad(ctx, "org-2", detail.ID); err == nil {
		t.Fatal("load leaked across organizations")
	}
}

func TestSwapDrivers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	first, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, &AssignmentPayload{
		CarrierID: f.carriers[0].ID, DriverID: f.drivers[0].ID,
	}))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	second, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup.Add(time.Hour), &AssignmentPayload{
		CarrierID: f.carriers[1].ID, DriverID: f.drivers[1].ID,
	}))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	err = f.svc.SwapDrivers(ctx, f.orgID, SwapRequest{
		LegIDs: []string{first.Legs[0].ID, second.Legs[0].ID},
	})
	if err != nil {
		t.Fatalf("SwapDrivers: %v", err)
	}

	firstLeg, err := f.svc.store.GetLeg(ctx, f.orgID, first.Legs[0].ID)
	if err != nil {
		t.Fatalf("GetLeg: %v", err)
	}
	secondLeg, err := f.svc.store.GetLeg(ctx, f.orgID, second.Legs[0].ID)
	if err != nil {
		t.Fatalf("GetLeg: %v", err)
	}

	if got := firstLeg.Assignments[0]; got.DriverID != f.drivers[1].ID || got.CarrierID != f.carriers[1].ID {
		t.Fatalf("first leg assignment = %+v, want driver %s carrier %s", got, f.drivers[1].ID, f.carriers[1].ID)
	}
	if got := secondLeg.Assignments[0]; got.DriverID != f.drivers[0].ID || got.CarrierID != f.carriers[0].ID {
		t.Fatalf("second leg assignment = %+v, want driver %s carrier %s", got, f.drivers[0].ID, f.carriers[0].ID)
	}
	if len(firstLeg.Assignments) != 1 || len(secondLeg.Assignments) != 1 {
		t.Fatal("swap should leave exactly one assignment per leg")
	}
}

func TestSwapDriversRequiresTwoLegs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.svc.SwapDrivers(ctx, f.orgID, SwapRequest{LegIDs: []string{"leg-1"}}); err == nil {
		t.Fatal("expected swap with one leg to fail")
	}
}

func TestLoadsForDayOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// Assigned load picking up early.
	early, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(day.Add(6*time.Hour), &AssignmentPayload{
		CarrierID: f.carriers[0].ID, DriverID: f.drivers[0].ID,
	}))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	// Unassigned load picking up later; must still sort first.
	unassigned, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(day.Add(14*time.Hour), nil))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	// Load picking up the next day; must not appear.
	if _, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(day.Add(26*time.Hour), nil)); err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	entries, err := f.svc.LoadsForDay(ctx, f.orgID, day)
	if err != nil {
		t.Fatalf("LoadsForDay: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 loads on the day, got %d", len(entries))
	}
	if entries[0].ID != unassigned.ID {
		t.Fatal("unassigned load should sort first")
	}
	if !entries[0].Unassigned || entries[1].Unassigned {
		t.Fatalf("unassigned flags wrong: %+v", entries)
	}
	if entries[1].ID != early.ID {
		t.Fatal("assigned load missing from day view")
	}
}

func TestLoadsForWeekStartsSunday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 2026-03-04 is a Wednesday; its week starts Sunday 2026-03-01.
	wednesday := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(wednesday, nil)); err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	days, err := f.svc.LoadsForWeek(ctx, f.orgID, wednesday)
	if err != nil {
		t.Fatalf("LoadsForWeek: %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if days[0].Date != "2026-03-01" {
		t.Fatalf("week starts %s, want 2026-03-01", days[0].Date)
	}
	if days[6].Date != "2026-03-07" {
		t.Fatalf("week ends %s, want 2026-03-07", days[6].Date)
	}
	if len(days[3].Entries) != 1 {
		t.Fatalf("expected the load on Wednesday, got %+v", days)
	}
}

func TestSearchLoadsCapsResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 30; i++ {
		if _, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(base.Add(time.Duration(i)*time.Minute), nil)); err != nil {
			t.Fatalf("CreateLoad: %v", err)
		}
	}

	results, err := f.svc.SearchLoads(ctx, f.orgID, LoadFilter{})
	if err != nil {
		t.Fatalf("SearchLoads: %v", err)
	}
	if len(results) != maxSearchResults {
		t.Fatalf("search returned %d results, want %d", len(results), maxSearchResults)
	}
}

func TestAddStopRevalidatesSequence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	detail, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, nil))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	legID := detail.Legs[0].ID

	// LL at 3 after LU at 2 is legal; another LU at 3 is not.
	_, err = f.svc.AddStop(ctx, f.orgID, legID, StopPayload{
		StopNumber: 3,
		AddressID:  f.addresses[2].ID,
		Action:     "LU",
		StartRange: pickup.Add(8 * time.Hour).Format(time.RFC3339),
	})
	if err == nil {
		t.Fatal("expected LU after LU to be rejected")
	}

	stop, err := f.svc.AddStop(ctx, f.orgID, legID, StopPayload{
		StopNumber: 3,
		AddressID:  f.addresses[2].ID,
		Action:     "LL",
		StartRange: pickup.Add(8 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("AddStop: %v", err)
	}
	if stop.StopNumber != 3 {
		t.Fatalf("stop number = %d, want 3", stop.StopNumber)
	}
}

func TestRecordAddressUsageFeedsRecency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	detail, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, nil))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	stop := detail.Legs[0].Stops[0]
	if err := f.svc.RecordAddressUsage(ctx, f.orgID, stop.ID, stop.AddressID); err != nil {
		t.Fatalf("RecordAddressUsage: %v", err)
	}

	recent, err := f.svc.RecentAddresses(ctx, f.orgID, f.customer.ID, 0, 10)
	if err != nil {
		t.Fatalf("RecentAddresses: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != stop.AddressID {
		t.Fatalf("recent addresses = %+v, want [%s]", recent, stop.AddressID)
	}
}

func TestDeleteAssignmentsRejectsUnknownIDWithoutDeleting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	detail, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, &AssignmentPayload{
		CarrierID: f.carriers[0].ID, DriverID: f.drivers[0].ID,
	}))
	if err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	legID := detail.Legs[0].ID
	assignmentID := detail.Legs[0].Assignments[0].ID

	if err := f.svc.DeleteAssignments(ctx, f.orgID, []string{assignmentID, "missing"}); err == nil {
		t.Fatal("expected the bulk delete to fail on the unknown id")
	}
	leg, err := f.svc.store.GetLeg(ctx, f.orgID, legID)
	if err != nil {
		t.Fatalf("GetLeg: %v", err)
	}
	if len(leg.Assignments) != 1 {
		t.Fatal("failed bulk delete removed an assignment")
	}

	if err := f.svc.DeleteAssignments(ctx, f.orgID, []string{assignmentID}); err != nil {
		t.Fatalf("DeleteAssignments: %v", err)
	}
	leg, err = f.svc.store.GetLeg(ctx, f.orgID, legID)
	if err != nil {
		t.Fatalf("GetLeg: %v", err)
	}
	if len(leg.Assignments) != 0 {
		t.Fatal("assignment still present after bulk delete")
	}
}
