package tms

import (
	"context"
	"testing"
	"time"
)

func TestEnsureAddressFindsExactMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	found, err := f.svc.EnsureAddress(ctx, f.orgID, Address{
		Street:  f.addresses[0].Street,
		City:    f.addresses[0].City,
		State:   f.addresses[0].State,
		ZipCode: f.addresses[0].ZipCode,
	})
	if err != nil {
		t.Fatalf("EnsureAddress: %v", err)
	}
	if found.ID != f.addresses[0].ID {
		t.Fatalf("got %s, want existing %s", found.ID, f.addresses[0].ID)
	}

	created, err := f.svc.EnsureAddress(ctx, f.orgID, Address{
		Street: "999 New Dock Rd",
		City:   "Reno",
		State:  "NV",
	})
	if err != nil {
		t.Fatalf("EnsureAddress create: %v", err)
	}
	if created.ID == f.addresses[0].ID || created.ID == "" {
		t.Fatalf("expected a new address, got %+v", created)
	}
	if created.Country != "US" {
		t.Fatalf("country default = %q", created.Country)
	}
}

func TestSearchLoadsByTextMatchesDriverName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, &AssignmentPayload{
		CarrierID: f.carriers[0].ID,
		DriverID:  f.drivers[0].ID,
	})); err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	hits, err := f.svc.SearchLoadsByText(ctx, f.orgID, TextSearch{DriverName: f.drivers[0].FirstName})
	if err != nil {
		t.Fatalf("SearchLoadsByText: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}

	misses, err := f.svc.SearchLoadsByText(ctx, f.orgID, TextSearch{DriverName: "nobody"})
	if err != nil {
		t.Fatalf("SearchLoadsByText: %v", err)
	}
	if len(misses) != 0 {
		t.Fatalf("misses = %d, want 0", len(misses))
	}
}

func TestSearchLoadsByTextMatchesStopStreet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, nil)); err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	hits, err := f.svc.SearchLoadsByText(ctx, f.orgID, TextSearch{StopStreet: "Dock Rd"})
	if err != nil {
		t.Fatalf("SearchLoadsByText: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
}

func TestRecentLoadsForDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, &AssignmentPayload{
		CarrierID: f.carriers[0].ID,
		DriverID:  f.drivers[0].ID,
	})); err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	loads, err := f.svc.RecentLoadsForDriver(ctx, f.orgID, f.drivers[0].ID, 10)
	if err != nil {
		t.Fatalf("RecentLoadsForDriver: %v", err)
	}
	if len(loads) != 1 {
		t.Fatalf("loads = %d, want 1", len(loads))
	}

	other, err := f.svc.RecentLoadsForDriver(ctx, f.orgID, f.drivers[1].ID, 10)
	if err != nil {
		t.Fatalf("RecentLoadsForDriver: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("other driver loads = %d, want 0", len(other))
	}
}

func TestSimilarStopsReturnsRecentActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pickup := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateLoad(ctx, f.orgID, f.payload(pickup, nil)); err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}

	stops, err := f.svc.SimilarStops(ctx, f.orgID, f.addresses[0].ID, 5)
	if err != nil {
		t.Fatalf("SimilarStops: %v", err)
	}
	if len(stops) != 1 || stops[0].Action != ActionLiveLoad {
		t.Fatalf("stops = %+v", stops)
	}
}
