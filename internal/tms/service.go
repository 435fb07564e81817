package tms

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "machtms/internal/errors"
	"machtms/pkg/logger"
)

// maxSearchResults caps load search responses so the UI and the
// lookup agents always get a bounded answer.
const maxSearchResults = 25

// Notifier receives domain change events. Implementations enqueue
// background work such as search indexing and address usage tracking.
type Notifier interface {
	LoadChanged(ctx context.Context, orgID, loadID string)
	LoadDeleted(ctx context.Context, orgID, loadID string)
	DirectoryChanged(ctx context.Context, orgID, kind, id string)
	DirectoryDeleted(ctx context.Context, orgID, kind, id string)
	AddressUsed(ctx context.Context, orgID, stopID, addressID string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) LoadChanged(context.Context, string, string) {}
func (NopNotifier) LoadDeleted(context.Context, string, string) {}

func (NopNotifier) DirectoryChanged(context.Context, string, string, string) {}
func (NopNotifier) DirectoryDeleted(context.Context, string, string, string) {}
func (NopNotifier) AddressUsed(context.Context, string, string, string)      {}

// Service implements the transportation domain operations on top of a
// Store. All operations are organization scoped and validated before
// anything is persisted.
type Service struct {
	store    Store
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService builds a Service. A nil notifier falls back to NopNotifier.
func NewService(store Store, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		store:    store,
		notifier: notifier,
		log:      logger.Named("tms"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CreateLoad validates the nested payload and persists the load with
// its legs, stops, and assignments.
func (s *Service) CreateLoad(ctx context.Context, orgID string, payload LoadCreationPayload) (*LoadDetail, error) {
	validated, err := payload.Validate()
	if err != nil {
		return nil, err
	}

	if validated.Load.CustomerID != "" {
		if _, err := s.store.GetCustomer(ctx, orgID, validated.Load.CustomerID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	load := validated.Load
	load.ID = s.newID()
	load.OrgID = orgID
	load.CreatedAt = now
	load.UpdatedAt = now
	if err := s.store.CreateLoad(ctx, &load); err != nil {
		return nil, err
	}

	for _, legPayload := range validated.Legs {
		if _, err := s.createLeg(ctx, orgID, load.ID, legPayload); err != nil {
			return nil, err
		}
	}

	detail, err := s.store.GetLoad(ctx, orgID, load.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("load created",
		"org_id", orgID,
		"load_id", load.ID,
		"reference_number", load.ReferenceNumber,
		"legs", len(detail.Legs),
	)
	s.notifier.LoadChanged(ctx, orgID, load.ID)
	return detail, nil
}

// createLeg persists one validated leg with its stops and assignment.
// Legs created later sort later, so creation time carries the order.
func (s *Service) createLeg(ctx context.Context, orgID, loadID string, payload validatedLeg) (*LegDetail, error) {
	leg := Leg{
		ID:        s.newID(),
		OrgID:     orgID,
		LoadID:    loadID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateLeg(ctx, &leg); err != nil {
		return nil, err
	}

	for _, stopPayload := range payload.Stops {
		stop := Stop{
			ID:          s.newID(),
			OrgID:       orgID,
			LegID:       leg.ID,
			StopNumber:  stopPayload.StopNumber,
			AddressID:   stopPayload.AddressID,
			Action:      stopPayload.Action,
			StartRange:  stopPayload.StartRange,
			EndRange:    stopPayload.EndRange,
			PONumbers:   stopPayload.PONumbers,
			DriverNotes: stopPayload.DriverNotes,
			CreatedAt:   s.now().UTC(),
		}
		if _, err := s.store.GetAddress(ctx, orgID, stop.AddressID); err != nil {
			return nil, err
		}
		if err := s.store.CreateStop(ctx, &stop); err != nil {
			return nil, err
		}
		s.notifier.AddressUsed(ctx, orgID, stop.ID, stop.AddressID)
	}

	if payload.Assignment != nil {
		if _, err := s.assign(ctx, orgID, leg.ID, payload.Assignment.CarrierID, payload.Assignment.DriverID); err != nil {
			return nil, err
		}
	}
	return s.store.GetLeg(ctx, orgID, leg.ID)
}

// GetLoad returns the load with its full nested structure.
func (s *Service) GetLoad(ctx context.Context, orgID, id string) (*LoadDetail, error) {
	return s.store.GetLoad(ctx, orgID, id)
}

// ListLoads returns loads matching the filter, newest first.
func (s *Service) ListLoads(ctx context.Context, orgID string, filter LoadFilter) ([]*LoadDetail, error) {
	return s.store.ListLoads(ctx, orgID, filter)
}

// SearchLoads is ListLoads with a hard result cap for interactive use.
func (s *Service) SearchLoads(ctx context.Context, orgID string, filter LoadFilter) ([]*LoadDetail, error) {
	if filter.Limit <= 0 || filter.Limit > maxSearchResults {
		filter.Limit = maxSearchResults
	}
	return s.store.ListLoads(ctx, orgID, filter)
}

// LoadUpdate carries the mutable load header fields for UpdateLoad.
// Nil pointers leave the current value untouched.
type LoadUpdate struct {
	ReferenceNumber *string
	BOLNumber       *string
	CustomerID      *string
	InvoiceID       *string
	Status          *LoadStatus
	BillingStatus   *BillingStatus
	TrailerType     *TrailerType
}

// UpdateLoad patches the load header.
func (s *Service) UpdateLoad(ctx context.Context, orgID, id string, update LoadUpdate) (*LoadDetail, error) {
	detail, err := s.store.GetLoad(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	load := detail.Load

	if update.ReferenceNumber != nil {
		load.ReferenceNumber = *update.ReferenceNumber
	}
	if update.BOLNumber != nil {
		load.BOLNumber = *update.BOLNumber
	}
	if update.CustomerID != nil {
		if *update.CustomerID != "" {
			if _, err := s.store.GetCustomer(ctx, orgID, *update.CustomerID); err != nil {
				return nil, err
			}
		}
		load.CustomerID = *update.CustomerID
	}
	if update.InvoiceID != nil {
		load.InvoiceID = *update.InvoiceID
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, apperrors.New(apperrors.CodeValidation, "unknown load status")
		}
		load.Status = *update.Status
	}
	if update.BillingStatus != nil {
		if !update.BillingStatus.Valid() {
			return nil, apperrors.New(apperrors.CodeValidation, "unknown billing status")
		}
		load.BillingStatus = *update.BillingStatus
	}
	if update.TrailerType != nil {
		if !update.TrailerType.Valid() {
			return nil, apperrors.New(apperrors.CodeValidation, "unknown trailer type")
		}
		load.TrailerType = *update.TrailerType
	}

	load.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateLoad(ctx, &load); err != nil {
		return nil, err
	}
	s.notifier.LoadChanged(ctx, orgID, id)
	return s.store.GetLoad(ctx, orgID, id)
}

// DeleteLoad removes a load and everything nested under it.
func (s *Service) DeleteLoad(ctx context.Context, orgID, id string) error {
	if err := s.store.DeleteLoad(ctx, orgID, id); err != nil {
		return err
	}
	s.log.Info("load deleted", "org_id", orgID, "load_id", id)
	s.notifier.LoadDeleted(ctx, orgID, id)
	return nil
}

// AddLeg appends a validated leg to an existing load.
func (s *Service) AddLeg(ctx context.Context, orgID, loadID string, payload LegPayload) (*LegDetail, error) {
	wrapped := LoadCreationPayload{Legs: []LegPayload{payload}}
	validated, err := wrapped.Validate()
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetLoad(ctx, orgID, loadID); err != nil {
		return nil, err
	}
	detail, err := s.createLeg(ctx, orgID, loadID, validated.Legs[0])
	if err != nil {
		return nil, err
	}
	s.notifier.LoadChanged(ctx, orgID, loadID)
	return detail, nil
}

// DeleteLeg removes a leg with its stops and assignments.
func (s *Service) DeleteLeg(ctx context.Context, orgID, legID string) error {
	leg, err := s.store.GetLeg(ctx, orgID, legID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLeg(ctx, orgID, legID); err != nil {
		return err
	}
	s.notifier.LoadChanged(ctx, orgID, leg.LoadID)
	return nil
}

// AddStop inserts a stop into a leg, revalidating the action sequence.
func (s *Service) AddStop(ctx context.Context, orgID, legID string, payload StopPayload) (*Stop, error) {
	parsed, err := payload.parse(0)
	if err != nil {
		return nil, err
	}
	leg, err := s.store.GetLeg(ctx, orgID, legID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAddress(ctx, orgID, payload.AddressID); err != nil {
		return nil, err
	}

	stop := Stop{
		ID:          s.newID(),
		OrgID:       orgID,
		LegID:       legID,
		StopNumber:  parsed.StopNumber,
		AddressID:   parsed.AddressID,
		Action:      parsed.Action,
		StartRange:  parsed.StartRange,
		EndRange:    parsed.EndRange,
		PONumbers:   parsed.PONumbers,
		DriverNotes: parsed.DriverNotes,
		CreatedAt:   s.now().UTC(),
	}

	if err := validateWithStop(leg.Stops, stop); err != nil {
		return nil, err
	}
	if err := s.store.CreateStop(ctx, &stop); err != nil {
		return nil, err
	}
	s.notifier.AddressUsed(ctx, orgID, stop.ID, stop.AddressID)
	s.notifier.LoadChanged(ctx, orgID, leg.LoadID)
	return &stop, nil
}

// UpdateStop replaces a stop's fields, revalidating the leg sequence.
func (s *Service) UpdateStop(ctx context.Context, orgID, stopID string, payload StopPayload) (*Stop, error) {
	parsed, err := payload.parse(0)
	if err != nil {
		return nil, err
	}

	// Find the leg through the current stop row.
	current, leg, err := s.findStop(ctx, orgID, stopID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAddress(ctx, orgID, payload.AddressID); err != nil {
		return nil, err
	}

	updated := *current
	addressChanged := updated.AddressID != parsed.AddressID
	updated.StopNumber = parsed.StopNumber
	updated.AddressID = parsed.AddressID
	updated.Action = parsed.Action
	updated.StartRange = parsed.StartRange
	updated.EndRange = parsed.EndRange
	updated.PONumbers = parsed.PONumbers
	updated.DriverNotes = parsed.DriverNotes

	remaining := make([]Stop, 0, len(leg.Stops))
	for _, stop := range leg.Stops {
		if stop.ID != stopID {
			remaining = append(remaining, stop)
		}
	}
	if err := validateWithStop(remaining, updated); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStop(ctx, &updated); err != nil {
		return nil, err
	}
	if addressChanged {
		s.notifier.AddressUsed(ctx, orgID, updated.ID, updated.AddressID)
	}
	s.notifier.LoadChanged(ctx, orgID, leg.LoadID)
	return &updated, nil
}

// DeleteStop removes a stop if the remaining sequence stays valid.
func (s *Service) DeleteStop(ctx context.Context, orgID, stopID string) error {
	_, leg, err := s.findStop(ctx, orgID, stopID)
	if err != nil {
		return err
	}
	remaining := make([]Stop, 0, len(leg.Stops))
	for _, stop := range leg.Stops {
		if stop.ID != stopID {
			remaining = append(remaining, stop)
		}
	}
	if err := ValidateStopSequence(remaining); err != nil {
		return err
	}
	if err := s.store.DeleteStop(ctx, orgID, stopID); err != nil {
		return err
	}
	s.notifier.LoadChanged(ctx, orgID, leg.LoadID)
	return nil
}

// LoadIDForLeg resolves the load a leg belongs to.
func (s *Service) LoadIDForLeg(ctx context.Context, orgID, legID string) (string, error) {
	leg, err := s.store.GetLeg(ctx, orgID, legID)
	if err != nil {
		return "", err
	}
	return leg.LoadID, nil
}

// LoadIDForStop resolves the load a stop belongs to.
func (s *Service) LoadIDForStop(ctx context.Context, orgID, stopID string) (string, error) {
	_, leg, err := s.findStop(ctx, orgID, stopID)
	if err != nil {
		return "", err
	}
	return leg.LoadID, nil
}

// findStop resolves a stop and the leg detail containing it.
func (s *Service) findStop(ctx context.Context, orgID, stopID string) (*Stop, *LegDetail, error) {
	stop, err := s.store.GetStop(ctx, orgID, stopID)
	if err != nil {
		return nil, nil, err
	}
	leg, err := s.store.GetLeg(ctx, orgID, stop.LegID)
	if err != nil {
		return nil, nil, err
	}
	return stop, leg, nil
}

func validateWithStop(existing []Stop, stop Stop) error {
	merged := make([]Stop, 0, len(existing)+1)
	merged = append(merged, existing...)
	merged = append(merged, stop)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].StopNumber < merged[j].StopNumber
	})
	return ValidateStopSequence(merged)
}

// AssignLeg binds a carrier and driver to a leg. The driver must
// belong to the carrier.
func (s *Service) AssignLeg(ctx context.Context, orgID, legID, carrierID, driverID string) (*ShipmentAssignment, error) {
	leg, err := s.store.GetLeg(ctx, orgID, legID)
	if err != nil {
		return nil, err
	}
	assignment, err := s.assign(ctx, orgID, legID, carrierID, driverID)
	if err != nil {
		return nil, err
	}
	s.notifier.LoadChanged(ctx, orgID, leg.LoadID)
	return assignment, nil
}

func (s *Service) assign(ctx context.Context, orgID, legID, carrierID, driverID string) (*ShipmentAssignment, error) {
	if _, err := s.store.GetCarrier(ctx, orgID, carrierID); err != nil {
		return nil, err
	}
	driver, err := s.store.GetDriver(ctx, orgID, driverID)
	if err != nil {
		return nil, err
	}
	if driver.CarrierID != carrierID {
		return nil, apperrors.New(apperrors.CodeValidation,
			"driver does not belong to the assigned carrier")
	}

	assignment := ShipmentAssignment{
		ID:        s.newID(),
		OrgID:     orgID,
		LegID:     legID,
		CarrierID: carrierID,
		DriverID:  driverID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateAssignment(ctx, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// DeleteAssignments removes the given assignments. Every id is
// resolved before the first delete so a missing id fails the whole
// call without half-applying the batch.
func (s *Service) DeleteAssignments(ctx context.Context, orgID string, ids []string) error {
	if len(ids) == 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "no assignment ids given")
	}
	for _, id := range ids {
		if _, err := s.store.GetAssignment(ctx, orgID, id); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if err := s.store.DeleteAssignment(ctx, orgID, id); err != nil {
			return err
		}
	}
	return nil
}

// SwapRequest names the two legs whose drivers trade places.
type SwapRequest struct {
	LegIDs []string `json:"leg_ids"`
}

// SwapDrivers exchanges the drivers of exactly two legs. Existing
// assignments on both legs are replaced; the carrier on each new
// assignment comes from the incoming driver's own carrier.
func (s *Service) SwapDrivers(ctx context.Context, orgID string, req SwapRequest) error {
	if len(req.LegIDs) != 2 {
		return apperrors.New(apperrors.CodeInvalidArgument,
			"driver swap requires exactly two legs")
	}

	first, err := s.store.GetLeg(ctx, orgID, req.LegIDs[0])
	if err != nil {
		return err
	}
	second, err := s.store.GetLeg(ctx, orgID, req.LegIDs[1])
	if err != nil {
		return err
	}
	if len(first.Assignments) == 0 || len(second.Assignments) == 0 {
		return apperrors.New(apperrors.CodeValidation,
			"both legs must be assigned before swapping drivers")
	}

	firstDriver, err := s.store.GetDriver(ctx, orgID, first.Assignments[0].DriverID)
	if err != nil {
		return err
	}
	secondDriver, err := s.store.GetDriver(ctx, orgID, second.Assignments[0].DriverID)
	if err != nil {
		return err
	}
	if firstDriver.CarrierID == "" || secondDriver.CarrierID == "" {
		return apperrors.New(apperrors.CodeValidation,
			"both drivers must belong to a carrier")
	}

	if err := s.store.DeleteAssignmentsByLeg(ctx, orgID, first.ID); err != nil {
		return err
	}
	if err := s.store.DeleteAssignmentsByLeg(ctx, orgID, second.ID); err != nil {
		return err
	}
	if _, err := s.assign(ctx, orgID, first.ID, secondDriver.CarrierID, secondDriver.ID); err != nil {
		return err
	}
	if _, err := s.assign(ctx, orgID, second.ID, firstDriver.CarrierID, firstDriver.ID); err != nil {
		return err
	}

	s.log.Info("drivers swapped",
		"org_id", orgID,
		"leg_a", first.ID,
		"leg_b", second.ID,
	)
	s.notifier.LoadChanged(ctx, orgID, first.LoadID)
	if second.LoadID != first.LoadID {
		s.notifier.LoadChanged(ctx, orgID, second.LoadID)
	}
	return nil
}

// SwapPair names a leg and the driver that should end up on it.
type SwapPair struct {
	LegID    string `json:"leg_id"`
	DriverID string `json:"driver_id"`
}

// ApplySwap reassigns exactly two legs to the given drivers. Existing
// assignments on both legs are cleared first; each new assignment's
// carrier comes from its driver's carrier.
func (s *Service) ApplySwap(ctx context.Context, orgID string, pairs []SwapPair) error {
	if len(pairs) != 2 {
		return apperrors.New(apperrors.CodeInvalidArgument,
			"driver swap requires exactly two leg and driver pairs")
	}

	type target struct {
		leg    *LegDetail
		driver *Driver
	}
	targets := make([]target, 0, 2)
	for _, pair := range pairs {
		leg, err := s.store.GetLeg(ctx, orgID, pair.LegID)
		if err != nil {
			return err
		}
		driver, err := s.store.GetDriver(ctx, orgID, pair.DriverID)
		if err != nil {
			return err
		}
		if driver.CarrierID == "" {
			return apperrors.New(apperrors.CodeValidation,
				"driver "+driver.FullName()+" does not belong to a carrier")
		}
		targets = append(targets, target{leg: leg, driver: driver})
	}

	for _, t := range targets {
		if err := s.store.DeleteAssignmentsByLeg(ctx, orgID, t.leg.ID); err != nil {
			return err
		}
	}
	for _, t := range targets {
		if _, err := s.assign(ctx, orgID, t.leg.ID, t.driver.CarrierID, t.driver.ID); err != nil {
			return err
		}
	}

	s.log.Info("swap applied",
		"org_id", orgID,
		"leg_a", targets[0].leg.ID,
		"leg_b", targets[1].leg.ID,
	)
	s.notifier.LoadChanged(ctx, orgID, targets[0].leg.LoadID)
	if targets[1].leg.LoadID != targets[0].leg.LoadID {
		s.notifier.LoadChanged(ctx, orgID, targets[1].leg.LoadID)
	}
	return nil
}

// RecordAddressUsage writes usage rows for a stop. The customer-scoped
// row is written only when the stop's load has a customer.
func (s *Service) RecordAddressUsage(ctx context.Context, orgID, stopID, addressID string) error {
	now := s.now().UTC()
	if err := s.store.RecordAddressUsage(ctx, &AddressUsage{
		ID:        s.newID(),
		OrgID:     orgID,
		AddressID: addressID,
		LastUsed:  now,
	}); err != nil {
		return err
	}

	_, leg, err := s.findStop(ctx, orgID, stopID)
	if err != nil {
		return err
	}
	load, err := s.store.GetLoad(ctx, orgID, leg.LoadID)
	if err != nil {
		return err
	}
	if load.CustomerID == "" {
		return nil
	}
	return s.store.RecordAddressUsageByCustomer(ctx, &AddressUsageByCustomer{
		ID:         s.newID(),
		OrgID:      orgID,
		AddressID:  addressID,
		CustomerID: load.CustomerID,
		LastUsed:   now,
	})
}
