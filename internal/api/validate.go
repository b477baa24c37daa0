package api

import (
	"fmt"

	"fleetcmd/internal/model"
)

func validateVehicleIn(in model.VehicleIn) error {
	if in.MaxLoad <= 0 {
		return fmt.Errorf("maxLoad must be > 0")
	}
	switch in.Status {
	case "", model.VehicleAvailable, model.VehicleOnTrip, model.VehicleInShop, model.VehicleOffline:
	default:
		return fmt.Errorf("invalid status: %s", in.Status)
	}
	return nil
}

func validateDriverIn(in model.DriverIn) error {
	if in.SafetyScore < 0 || in.SafetyScore > 100 {
		return fmt.Errorf("safetyScore must be in [0,100]")
	}
	switch in.LicenseStatus {
	case "", model.LicenseValid, model.LicenseExpired:
	default:
		return fmt.Errorf("invalid licenseStatus: %s", in.LicenseStatus)
	}
	switch in.DutyStatus {
	case "", model.DutyAvailable, model.DutyOnDuty, model.DutySuspended:
	default:
		return fmt.Errorf("invalid dutyStatus: %s", in.DutyStatus)
	}
	return nil
}
