package tms

import (
	"fmt"
	"sort"
	"time"

	apperrors "machtms/internal/errors"
)

// StopPayload is the wire form of a stop inside a load creation
// request, both on the REST API and from the load creation agents.
type StopPayload struct {
	StopNumber  int    `json:"stop_number"`
	AddressID   string `json:"address"`
	Action      string `json:"action"`
	StartRange  string `json:"start_range"`
	EndRange    string `json:"end_range,omitempty"`
	PONumbers   string `json:"po_numbers,omitempty"`
	DriverNotes string `json:"driver_notes,omitempty"`
}

// AssignmentPayload names the carrier and driver hauling a leg.
type AssignmentPayload struct {
	CarrierID string `json:"carrier"`
	DriverID  string `json:"driver"`
}

// LegPayload is one leg of a load creation request.
type LegPayload struct {
	Stops      []StopPayload      `json:"stops"`
	Assignment *AssignmentPayload `json:"shipment_assignment,omitempty"`
}

// LoadCreationPayload is the full nested load creation request.
type LoadCreationPayload struct {
	CustomerID      string       `json:"customer,omitempty"`
	ReferenceNumber string       `json:"reference_number,omitempty"`
	BOLNumber       string       `json:"bol_number,omitempty"`
	TrailerType     string       `json:"trailer_type,omitempty"`
	Status          string       `json:"status,omitempty"`
	BillingStatus   string       `json:"billing_status,omitempty"`
	Legs            []LegPayload `json:"legs"`
}

// validatedStop is a StopPayload with its fields parsed.
type validatedStop struct {
	StopPayload
	Action     StopAction
	StartRange time.Time
	EndRange   *time.Time
}

type validatedLeg struct {
	Stops      []validatedStop
	Assignment *AssignmentPayload
}

// validatedPayload is the result of Validate, ready to persist.
type validatedPayload struct {
	Load Load
	Legs []validatedLeg
}

// Validate checks the payload against the domain rules and returns the
// parsed form. Stops within each leg are sorted by stop number before
// the action sequence is checked.
func (p LoadCreationPayload) Validate() (*validatedPayload, error) {
	status := LoadStatus(p.Status)
	if p.Status == "" {
		status = LoadPending
	}
	if !status.Valid() {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("unknown load status %q", p.Status))
	}

	billing := BillingStatus(p.BillingStatus)
	if p.BillingStatus == "" {
		billing = BillingPendingDelivery
	}
	if !billing.Valid() {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("unknown billing status %q", p.BillingStatus))
	}

	trailer, err := ParseTrailerType(p.TrailerType)
	if err != nil {
		return nil, err
	}

	out := &validatedPayload{
		Load: Load{
			ReferenceNumber: p.ReferenceNumber,
			BOLNumber:       p.BOLNumber,
			CustomerID:      p.CustomerID,
			Status:          status,
			BillingStatus:   billing,
			TrailerType:     trailer,
		},
	}

	if len(p.Legs) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation,
			"a load needs at least one leg")
	}

	for legIdx, leg := range p.Legs {
		if len(leg.Stops) == 0 {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("leg %d has no stops", legIdx))
		}

		stops := make([]validatedStop, 0, len(leg.Stops))
		seen := make(map[int]bool, len(leg.Stops))
		for _, stop := range leg.Stops {
			parsed, err := stop.parse(legIdx)
			if err != nil {
				return nil, err
			}
			if seen[stop.StopNumber] {
				return nil, apperrors.New(apperrors.CodeValidation,
					fmt.Sprintf("leg %d has duplicate stop number %d", legIdx, stop.StopNumber))
			}
			seen[stop.StopNumber] = true
			stops = append(stops, parsed)
		}
		sort.Slice(stops, func(i, j int) bool {
			return stops[i].StopNumber < stops[j].StopNumber
		})
		for i, stop := range stops {
			if stop.StopNumber != i+1 {
				return nil, apperrors.New(apperrors.CodeValidation,
					fmt.Sprintf("leg %d stop numbers must run 1..%d, got %d", legIdx, len(stops), stop.StopNumber))
			}
		}

		actions := make([]StopAction, len(stops))
		for i, stop := range stops {
			actions[i] = stop.Action
		}
		if err := ValidateActionSequence(actions); err != nil {
			return nil, err
		}

		if leg.Assignment != nil {
			if leg.Assignment.CarrierID == "" || leg.Assignment.DriverID == "" {
				return nil, apperrors.New(apperrors.CodeValidation,
					fmt.Sprintf("leg %d assignment needs both carrier and driver", legIdx))
			}
		}

		out.Legs = append(out.Legs, validatedLeg{Stops: stops, Assignment: leg.Assignment})
	}

	return out, nil
}

func (s StopPayload) parse(legIdx int) (validatedStop, error) {
	action := StopAction(s.Action)
	if !action.Valid() {
		return validatedStop{}, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("leg %d stop %d has unknown action %q", legIdx, s.StopNumber, s.Action))
	}
	if s.AddressID == "" {
		return validatedStop{}, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("leg %d stop %d is missing an address", legIdx, s.StopNumber))
	}

	start, err := time.Parse(time.RFC3339, s.StartRange)
	if err != nil {
		return validatedStop{}, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("leg %d stop %d start_range is not RFC 3339: %v", legIdx, s.StopNumber, err))
	}

	var end *time.Time
	if s.EndRange != "" {
		parsed, err := time.Parse(time.RFC3339, s.EndRange)
		if err != nil {
			return validatedStop{}, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("leg %d stop %d end_range is not RFC 3339: %v", legIdx, s.StopNumber, err))
		}
		if parsed.Before(start) {
			return validatedStop{}, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("leg %d stop %d end_range precedes start_range", legIdx, s.StopNumber))
		}
		end = &parsed
	}

	return validatedStop{
		StopPayload: s,
		Action:      action,
		StartRange:  start,
		EndRange:    end,
	}, nil
}
