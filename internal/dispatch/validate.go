package dispatch

import (
	"context"
	"errors"
	"fmt"

	"fleetcmd/internal/model"
	"fleetcmd/internal/store"
)

// Eligibility rule messages. The capacity rule is formatted with both values
// so the operator can see the overage at a glance.
const (
	ReasonLicenseExpired  = "license expired"
	ReasonDriverSuspended = "driver suspended"
	ReasonVehicleInShop   = "vehicle in shop"
	ReasonVehicleOnTrip   = "vehicle already on a trip"
	ReasonCargoNotPositive = "cargo weight must be positive"
)

// Validate decides whether a (driver, vehicle, cargo weight) triple may be
// dispatched. It has no side effects. A missing driver or vehicle is a
// *NotFoundError, distinct from business-rule violations; all violated rules
// are collected into one *EligibilityError rather than stopping at the first.
func (s *Service) Validate(ctx context.Context, driverID, vehicleID string, cargoWeight float64) (model.Driver, model.Vehicle, error) {
	d, err := s.store.GetDriver(ctx, driverID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Driver{}, model.Vehicle{}, &NotFoundError{Entity: "driver", ID: driverID}
	}
	if err != nil {
		return model.Driver{}, model.Vehicle{}, err
	}
	v, err := s.store.GetVehicle(ctx, vehicleID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Driver{}, model.Vehicle{}, &NotFoundError{Entity: "vehicle", ID: vehicleID}
	}
	if err != nil {
		return model.Driver{}, model.Vehicle{}, err
	}

	var reasons []string
	if d.LicenseStatus == model.LicenseExpired {
		reasons = append(reasons, ReasonLicenseExpired)
	}
	if d.DutyStatus == model.DutySuspended {
		reasons = append(reasons, ReasonDriverSuspended)
	}
	if v.Status == model.VehicleInShop {
		reasons = append(reasons, ReasonVehicleInShop)
	}
	if v.Status == model.VehicleOnTrip {
		reasons = append(reasons, ReasonVehicleOnTrip)
	}
	if cargoWeight <= 0 {
		reasons = append(reasons, ReasonCargoNotPositive)
	} else if cargoWeight > v.MaxLoad {
		reasons = append(reasons, fmt.Sprintf("cargo exceeds capacity: %v > %v", cargoWeight, v.MaxLoad))
	}
	if len(reasons) > 0 {
		return model.Driver{}, model.Vehicle{}, &EligibilityError{Reasons: reasons}
	}
	return d, v, nil
}
