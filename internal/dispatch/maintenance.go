package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fleetcmd/internal/model"
	"fleetcmd/internal/store"
)

// vehicle statuses from which a shop visit may begin: anything but On Trip.
var shopAdmissible = []string{model.VehicleAvailable, model.VehicleInShop, model.VehicleOffline}

// OpenMaintenance creates a Pending maintenance record and forces the vehicle
// into the shop in one batch. A vehicle on a trip cannot enter the shop; the
// two uses of a vehicle are mutually exclusive and that is enforced here, not
// left to callers.
func (s *Service) OpenMaintenance(ctx context.Context, req model.MaintenanceRequest) (model.MaintenanceRecord, error) {
	v, err := s.store.GetVehicle(ctx, req.VehicleID)
	if errors.Is(err, store.ErrNotFound) {
		return model.MaintenanceRecord{}, &NotFoundError{Entity: "vehicle", ID: req.VehicleID}
	}
	if err != nil {
		return model.MaintenanceRecord{}, err
	}
	if v.Status == model.VehicleOnTrip {
		return model.MaintenanceRecord{}, &InvalidStateError{Entity: "vehicle", ID: v.ID, State: v.Status, Reason: "cannot send vehicle to maintenance while on trip"}
	}
	rec := model.MaintenanceRecord{
		ID:          uuid.New().String(),
		VehicleID:   req.VehicleID,
		Description: req.Description,
		Status:      model.MaintenancePending,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	b := store.Batch{
		InsertMaintenance: []model.MaintenanceRecord{rec},
		Vehicles:          []store.StatusWrite{{ID: v.ID, From: shopAdmissible, To: model.VehicleInShop}},
	}
	if err := s.store.Apply(ctx, b); err != nil {
		return model.MaintenanceRecord{}, s.mapApplyErr(err, "open maintenance")
	}
	s.log.Info().Str("maintenance", rec.ID).Str("vehicle", v.ID).Msg("maintenance opened")
	return rec, nil
}

// CloseMaintenance completes a Pending record and releases the vehicle back
// to Available in the same batch.
func (s *Service) CloseMaintenance(ctx context.Context, id string) (model.MaintenanceRecord, error) {
	rec, err := s.store.GetMaintenanceRecord(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.MaintenanceRecord{}, &NotFoundError{Entity: "maintenance record", ID: id}
	}
	if err != nil {
		return model.MaintenanceRecord{}, err
	}
	if !maintenanceMachine(rec.Status).Can(EventClose) {
		return model.MaintenanceRecord{}, &InvalidTransitionError{Entity: "maintenance record", ID: id, From: rec.Status, Action: EventClose}
	}
	b := store.Batch{
		Maintenance: []store.StatusWrite{{ID: id, From: []string{model.MaintenancePending}, To: model.MaintenanceCompleted}},
		Vehicles:    []store.StatusWrite{{ID: rec.VehicleID, To: model.VehicleAvailable}},
	}
	if err := s.store.Apply(ctx, b); err != nil {
		return model.MaintenanceRecord{}, s.mapApplyErr(err, EventClose)
	}
	rec.Status = model.MaintenanceCompleted
	s.log.Info().Str("maintenance", id).Str("vehicle", rec.VehicleID).Msg("maintenance closed")
	return rec, nil
}
