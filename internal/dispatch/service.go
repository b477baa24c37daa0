package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetcmd/internal/model"
	"fleetcmd/internal/store"
)

// Service runs the dispatch core: eligibility checks, the trip life cycle and
// the maintenance workflow. It owns no state of its own; every operation reads
// a snapshot from the injected store and writes back one guarded batch, so a
// reader can never observe a trip Started without its vehicle On Trip.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{store: st, log: log}
}

// CreateTrip validates eligibility and creates the trip in Pending. A Pending
// trip reserves nothing: the vehicle and driver are claimed at start, not at
// create, so a second Pending trip against the same vehicle is legal and the
// loser surfaces at StartTrip.
func (s *Service) CreateTrip(ctx context.Context, req model.TripRequest) (model.Trip, error) {
	if _, _, err := s.Validate(ctx, req.DriverID, req.VehicleID, req.CargoWeight); err != nil {
		return model.Trip{}, err
	}
	t := model.Trip{
		ID:          uuid.New().String(),
		DriverID:    req.DriverID,
		VehicleID:   req.VehicleID,
		CargoWeight: req.CargoWeight,
		Status:      model.TripPending,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.Apply(ctx, store.Batch{InsertTrips: []model.Trip{t}}); err != nil {
		return model.Trip{}, err
	}
	s.log.Info().Str("trip", t.ID).Str("driver", t.DriverID).Str("vehicle", t.VehicleID).Float64("cargoWeight", t.CargoWeight).Msg("trip created")
	return t, nil
}

// StartTrip moves the trip to Started and, in the same batch, claims the
// vehicle (On Trip) and driver (On Duty). The guards make racing starts on
// the same trip or vehicle lose cleanly instead of double-claiming.
func (s *Service) StartTrip(ctx context.Context, id string) (model.Trip, error) {
	t, err := s.getTrip(ctx, id)
	if err != nil {
		return model.Trip{}, err
	}
	if !tripMachine(t.Status).Can(EventStart) {
		return model.Trip{}, &InvalidTransitionError{Entity: "trip", ID: id, From: t.Status, Action: EventStart}
	}
	b := store.Batch{
		Trips:    []store.StatusWrite{{ID: id, From: []string{model.TripPending}, To: model.TripStarted}},
		Vehicles: []store.StatusWrite{{ID: t.VehicleID, From: []string{model.VehicleAvailable}, To: model.VehicleOnTrip}},
		Drivers:  []store.StatusWrite{{ID: t.DriverID, From: []string{model.DutyAvailable, model.DutyOnDuty}, To: model.DutyOnDuty}},
	}
	if err := s.store.Apply(ctx, b); err != nil {
		return model.Trip{}, s.mapApplyErr(err, EventStart)
	}
	t.Status = model.TripStarted
	s.log.Info().Str("trip", id).Str("vehicle", t.VehicleID).Str("driver", t.DriverID).Msg("trip started")
	return t, nil
}

// CompleteTrip moves the trip to Completed and releases the vehicle and
// driver back to Available in the same batch.
func (s *Service) CompleteTrip(ctx context.Context, id string) (model.Trip, error) {
	t, err := s.getTrip(ctx, id)
	if err != nil {
		return model.Trip{}, err
	}
	if !tripMachine(t.Status).Can(EventComplete) {
		return model.Trip{}, &InvalidTransitionError{Entity: "trip", ID: id, From: t.Status, Action: EventComplete}
	}
	b := store.Batch{
		Trips:    []store.StatusWrite{{ID: id, From: []string{model.TripStarted}, To: model.TripCompleted}},
		Vehicles: []store.StatusWrite{{ID: t.VehicleID, From: []string{model.VehicleOnTrip}, To: model.VehicleAvailable}},
		Drivers:  []store.StatusWrite{{ID: t.DriverID, To: model.DutyAvailable}},
	}
	if err := s.store.Apply(ctx, b); err != nil {
		return model.Trip{}, s.mapApplyErr(err, EventComplete)
	}
	t.Status = model.TripCompleted
	s.log.Info().Str("trip", id).Str("vehicle", t.VehicleID).Str("driver", t.DriverID).Msg("trip completed")
	return t, nil
}

// CancelTrip terminates the trip from Pending or Started. A Pending trip
// holds no resources, so only the trip row changes; cancelling a Started trip
// also releases its vehicle and driver.
func (s *Service) CancelTrip(ctx context.Context, id string) (model.Trip, error) {
	t, err := s.getTrip(ctx, id)
	if err != nil {
		return model.Trip{}, err
	}
	if !tripMachine(t.Status).Can(EventCancel) {
		return model.Trip{}, &InvalidTransitionError{Entity: "trip", ID: id, From: t.Status, Action: EventCancel}
	}
	b := store.Batch{
		Trips: []store.StatusWrite{{ID: id, From: []string{t.Status}, To: model.TripCancelled}},
	}
	if t.Status == model.TripStarted {
		b.Vehicles = []store.StatusWrite{{ID: t.VehicleID, From: []string{model.VehicleOnTrip}, To: model.VehicleAvailable}}
		b.Drivers = []store.StatusWrite{{ID: t.DriverID, To: model.DutyAvailable}}
	}
	if err := s.store.Apply(ctx, b); err != nil {
		return model.Trip{}, s.mapApplyErr(err, EventCancel)
	}
	t.Status = model.TripCancelled
	s.log.Info().Str("trip", id).Msg("trip cancelled")
	return t, nil
}

func (s *Service) getTrip(ctx context.Context, id string) (model.Trip, error) {
	t, err := s.store.GetTrip(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Trip{}, &NotFoundError{Entity: "trip", ID: id}
	}
	return t, err
}

// mapApplyErr turns a guard miss into the domain error the loser of a race
// should see: a trip guard miss means the life-cycle move was no longer legal,
// a vehicle or driver miss means the resource state disallows it.
func (s *Service) mapApplyErr(err error, action string) error {
	var ce *store.ConflictError
	if !errors.As(err, &ce) {
		return err
	}
	switch ce.Entity {
	case "trip", "maintenance":
		return &InvalidTransitionError{Entity: ce.Entity, ID: ce.ID, From: ce.Have, Action: action}
	case "vehicle":
		reason := "vehicle is not available"
		if ce.Have == model.VehicleOnTrip {
			reason = ReasonVehicleOnTrip
		}
		if ce.Have == model.VehicleInShop {
			reason = ReasonVehicleInShop
		}
		return &InvalidStateError{Entity: "vehicle", ID: ce.ID, State: ce.Have, Reason: reason}
	case "driver":
		return &InvalidStateError{Entity: "driver", ID: ce.ID, State: ce.Have, Reason: ReasonDriverSuspended}
	}
	return err
}
