package tms

import (
	"testing"
	"time"
)

func validPayload() LoadCreationPayload {
	return LoadCreationPayload{
		CustomerID:      "cust-1",
		ReferenceNumber: "REF-100",
		TrailerType:     "53ft",
		Legs: []LegPayload{
			{
				Stops: []StopPayload{
					{
						StopNumber: 1,
						AddressID:  "addr-1",
						Action:     "LL",
						StartRange: "2026-03-02T08:00:00Z",
						EndRange:   "2026-03-02T10:00:00Z",
					},
					{
						StopNumber: 2,
						AddressID:  "addr-2",
						Action:     "LU",
						StartRange: "2026-03-02T15:00:00Z",
					},
				},
			},
		},
	}
}

func TestLoadCreationPayloadValidate(t *testing.T) {
	validated, err := validPayload().Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if validated.Load.Status != LoadPending {
		t.Fatalf("status = %q, want %q", validated.Load.Status, LoadPending)
	}
	if validated.Load.BillingStatus != BillingPendingDelivery {
		t.Fatalf("billing_status = %q, want %q", validated.Load.BillingStatus, BillingPendingDelivery)
	}
	if validated.Load.TrailerType != TrailerLarge53 {
		t.Fatalf("trailer_type = %q, want %q", validated.Load.TrailerType, TrailerLarge53)
	}
	if len(validated.Legs) != 1 || len(validated.Legs[0].Stops) != 2 {
		t.Fatalf("unexpected shape: %+v", validated.Legs)
	}
	want := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if !validated.Legs[0].Stops[0].StartRange.Equal(want) {
		t.Fatalf("start_range = %v, want %v", validated.Legs[0].Stops[0].StartRange, want)
	}
}

func TestLoadCreationPayloadValidateSortsStops(t *testing.T) {
	payload := validPayload()
	payload.Legs[0].Stops[0], payload.Legs[0].Stops[1] = payload.Legs[0].Stops[1], payload.Legs[0].Stops[0]

	validated, err := payload.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if validated.Legs[0].Stops[0].StopNumber != 1 {
		t.Fatalf("stops not sorted by stop number: %+v", validated.Legs[0].Stops)
	}
}

func TestLoadCreationPayloadValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*LoadCreationPayload)
	}{
		{"bad status", func(p *LoadCreationPayload) { p.Status = "shipped" }},
		{"bad billing status", func(p *LoadCreationPayload) { p.BillingStatus = "owed" }},
		{"bad trailer", func(p *LoadCreationPayload) { p.TrailerType = "54ft" }},
		{"no legs", func(p *LoadCreationPayload) { p.Legs = nil }},
		{"empty leg", func(p *LoadCreationPayload) { p.Legs[0].Stops = nil }},
		{"stop numbers not from 1", func(p *LoadCreationPayload) {
			p.Legs[0].Stops[0].StopNumber = 2
			p.Legs[0].Stops[1].StopNumber = 7
		}},
		{"gap in stop numbers", func(p *LoadCreationPayload) {
			p.Legs[0].Stops[1].StopNumber = 3
		}},
		{"bad action", func(p *LoadCreationPayload) { p.Legs[0].Stops[0].Action = "ZZ" }},
		{"missing address", func(p *LoadCreationPayload) { p.Legs[0].Stops[0].AddressID = "" }},
		{"bad start", func(p *LoadCreationPayload) { p.Legs[0].Stops[0].StartRange = "tomorrow" }},
		{"end before start", func(p *LoadCreationPayload) {
			p.Legs[0].Stops[0].EndRange = "2026-03-02T07:00:00Z"
		}},
		{"duplicate stop numbers", func(p *LoadCreationPayload) {
			p.Legs[0].Stops[1].StopNumber = 1
		}},
		{"invalid transition", func(p *LoadCreationPayload) {
			p.Legs[0].Stops[1].Action = "LL"
		}},
		{"half assignment", func(p *LoadCreationPayload) {
			p.Legs[0].Assignment = &AssignmentPayload{CarrierID: "carrier-1"}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validPayload()
			tc.mutate(&payload)
			if _, err := payload.Validate(); err == nil {
				t.Fatal("expected validation to fail")
			}
		})
	}
}
