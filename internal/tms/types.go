package tms

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoadStatus tracks a load through its operational lifecycle.
type LoadStatus string

const (
	LoadPending      LoadStatus = "pending"
	LoadAssigned     LoadStatus = "assigned"
	LoadDispatched   LoadStatus = "dispatched"
	LoadInTransit    LoadStatus = "in_transit"
	LoadTimesMissing LoadStatus = "times_missing"
	LoadRescheduled  LoadStatus = "rescheduled"
	LoadClaim        LoadStatus = "claim"
	LoadAtHub        LoadStatus = "at_hub"
	LoadComplete     LoadStatus = "complete"
	LoadTONU         LoadStatus = "tonu"
)

// Valid reports whether s is a known load status.
func (s LoadStatus) Valid() bool {
	switch s {
	case LoadPending, LoadAssigned, LoadDispatched, LoadInTransit,
		LoadTimesMissing, LoadRescheduled, LoadClaim, LoadAtHub,
		LoadComplete, LoadTONU:
		return true
	}
	return false
}

// BillingStatus tracks a load through the billing lifecycle,
// independently of its operational status.
type BillingStatus string

const (
	BillingPaperworkPending BillingStatus = "paperwork_pending"
	BillingPendingDelivery  BillingStatus = "pending_delivery"
	BillingBilled           BillingStatus = "billed"
	BillingRejected         BillingStatus = "rejected"
	BillingPaid             BillingStatus = "paid"
)

// Valid reports whether s is a known billing status.
func (s BillingStatus) Valid() bool {
	switch s {
	case BillingPaperworkPending, BillingPendingDelivery, BillingBilled,
		BillingRejected, BillingPaid:
		return true
	}
	return false
}

// TrailerType identifies the trailer length required by a load.
type TrailerType string

const (
	TrailerSmall20  TrailerType = "SMALL_20"
	TrailerSmall28  TrailerType = "SMALL_28"
	TrailerMedium40 TrailerType = "MEDIUM_40"
	TrailerMedium45 TrailerType = "MEDIUM_45"
	TrailerLarge48  TrailerType = "LARGE_48"
	TrailerLarge53  TrailerType = "LARGE_53"
)

// Valid reports whether t is a known trailer type. The empty string is
// allowed because loads may be created before the trailer is known.
func (t TrailerType) Valid() bool {
	switch t {
	case "", TrailerSmall20, TrailerSmall28, TrailerMedium40,
		TrailerMedium45, TrailerLarge48, TrailerLarge53:
		return true
	}
	return false
}

// StopAction is the work a driver performs at a stop.
type StopAction string

const (
	ActionLiveLoad    StopAction = "LL"
	ActionLiveUnload  StopAction = "LU"
	ActionHookLoaded  StopAction = "HL"
	ActionDropLoaded  StopAction = "LD"
	ActionEmptyPickup StopAction = "EMPP"
	ActionEmptyDrop   StopAction = "EMPD"
	ActionHubPickup   StopAction = "HUBP"
	ActionHubDropoff  StopAction = "HUBD"
)

// Valid reports whether a is a known stop action.
func (a StopAction) Valid() bool {
	switch a {
	case ActionLiveLoad, ActionLiveUnload, ActionHookLoaded, ActionDropLoaded,
		ActionEmptyPickup, ActionEmptyDrop, ActionHubPickup, ActionHubDropoff:
		return true
	}
	return false
}

// PaymentType distinguishes how an accounts payable contact pays.
type PaymentType string

const (
	PaymentQuickPay PaymentType = "quickpay"
	PaymentStandard PaymentType = "standard"
)

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	return p == PaymentQuickPay || p == PaymentStandard
}

// Address is a physical location referenced by stops, customers, and
// drivers. Latitude and longitude are optional.
type Address struct {
	ID        string          `json:"id"`
	OrgID     string          `json:"organization_id"`
	Street    string          `json:"street"`
	City      string          `json:"city"`
	State     string          `json:"state"`
	ZipCode   string          `json:"zip_code"`
	Country   string          `json:"country"`
	Latitude  decimal.Decimal `json:"latitude,omitempty"`
	Longitude decimal.Decimal `json:"longitude,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// String renders the address as a single comma separated line.
func (a Address) String() string {
	out := ""
	for _, part := range []string{a.Street, a.City, a.State, a.ZipCode, a.Country} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

// Customer is a business customer or broker that tenders loads.
type Customer struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"organization_id"`
	Name        string    `json:"customer_name"`
	AddressID   string    `json:"address_id,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CustomerRepresentative is a named contact at a customer.
type CustomerRepresentative struct {
	ID          string `json:"id"`
	OrgID       string `json:"organization_id"`
	CustomerID  string `json:"customer_id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// CustomerAP is an accounts payable contact for a customer, the
// address invoices are sent to.
type CustomerAP struct {
	ID          string      `json:"id"`
	OrgID       string      `json:"organization_id"`
	CustomerID  string      `json:"customer_id"`
	Email       string      `json:"email"`
	PhoneNumber string      `json:"phone_number,omitempty"`
	PaymentType PaymentType `json:"payment_type"`
}

// Carrier is a trucking company that hauls legs.
type Carrier struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"organization_id"`
	Name       string    `json:"carrier_name"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Contractor bool      `json:"contractor"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Driver is a truck driver, optionally employed by a carrier.
type Driver struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"organization_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email,omitempty"`
	AddressID   string    `json:"address_id,omitempty"`
	CarrierID   string    `json:"carrier_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FullName returns the driver's display name.
func (d Driver) FullName() string {
	if d.FirstName == "" {
		return d.LastName
	}
	if d.LastName == "" {
		return d.FirstName
	}
	return d.FirstName + " " + d.LastName
}

// Load is a shipment moving for a customer. A load is split into one
// or more legs, each hauled by a single carrier and driver.
type Load struct {
	ID              string        `json:"id"`
	OrgID           string        `json:"organization_id"`
	ReferenceNumber string        `json:"reference_number,omitempty"`
	BOLNumber       string        `json:"bol_number,omitempty"`
	CustomerID      string        `json:"customer_id,omitempty"`
	InvoiceID       string        `json:"invoice_id,omitempty"`
	Status          LoadStatus    `json:"status"`
	BillingStatus   BillingStatus `json:"billing_status"`
	TrailerType     TrailerType   `json:"trailer_type,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Leg is one carrier-hauled segment of a load's journey. Legs order by
// creation within the load.
type Leg struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"organization_id"`
	LoadID    string    `json:"load_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Stop is a location within a leg where the driver performs an action.
// StopNumber orders stops within the leg and is unique per leg.
type Stop struct {
	ID          string     `json:"id"`
	OrgID       string     `json:"organization_id"`
	LegID       string     `json:"leg_id"`
	StopNumber  int        `json:"stop_number"`
	AddressID   string     `json:"address_id"`
	Action      StopAction `json:"action"`
	StartRange  time.Time  `json:"start_range"`
	EndRange    *time.Time `json:"end_range,omitempty"`
	PONumbers   string     `json:"po_numbers,omitempty"`
	DriverNotes string     `json:"driver_notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ShipmentAssignment binds a carrier and one of its drivers to a leg.
type ShipmentAssignment struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"organization_id"`
	LegID     string    `json:"leg_id"`
	CarrierID string    `json:"carrier_id"`
	DriverID  string    `json:"driver_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AddressUsage records one use of an address by a stop, for recency
// ranking of address suggestions.
type AddressUsage struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"organization_id"`
	AddressID string    `json:"address_id"`
	LastUsed  time.Time `json:"last_used"`
}

// AddressUsageByCustomer records one use of an address on a customer's
// load. Rows accumulate so any date range can be aggregated later.
type AddressUsageByCustomer struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"organization_id"`
	AddressID  string    `json:"address_id"`
	CustomerID string    `json:"customer_id"`
	LastUsed   time.Time `json:"last_used"`
}

// LegDetail is a leg with its stops and assignment resolved.
type LegDetail struct {
	Leg
	Stops       []Stop               `json:"stops"`
	Assignments []ShipmentAssignment `json:"shipment_assignments,omitempty"`
}

// LoadDetail is a load with its full nested structure resolved.
type LoadDetail struct {
	Load
	Customer *Customer   `json:"customer,omitempty"`
	Legs     []LegDetail `json:"legs"`
}

// HasUnassignedLeg reports whether any leg lacks an assignment.
func (l LoadDetail) HasUnassignedLeg() bool {
	for _, leg := range l.Legs {
		if len(leg.Assignments) == 0 {
			return true
		}
	}
	return false
}

// FirstPickupTime returns the earliest pickup stop start across all
// legs, or the zero time when the load has no pickup stops.
func (l LoadDetail) FirstPickupTime() time.Time {
	var first time.Time
	for _, leg := range l.Legs {
		for _, stop := range leg.Stops {
			if !stop.Action.Pickup() {
				continue
			}
			if first.IsZero() || stop.StartRange.Before(first) {
				first = stop.StartRange
			}
		}
	}
	return first
}
