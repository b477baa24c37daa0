package dispatch

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetcmd/internal/model"
	"fleetcmd/internal/store"
)

func newService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st := store.NewMemory()
	return NewService(st, zerolog.Nop()), st
}

func seedDriver(t *testing.T, st store.Store, in model.DriverIn) model.Driver {
	t.Helper()
	d, err := st.CreateDriver(context.Background(), in)
	require.NoError(t, err)
	return d
}

func seedVehicle(t *testing.T, st store.Store, in model.VehicleIn) model.Vehicle {
	t.Helper()
	v, err := st.CreateVehicle(context.Background(), in)
	require.NoError(t, err)
	return v
}

func TestValidateEligibleTriple(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseValid, DutyStatus: model.DutyAvailable})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})

	gotD, gotV, err := s.Validate(context.Background(), d.ID, v.ID, 400)
	require.NoError(t, err)
	assert.Equal(t, d.ID, gotD.ID)
	assert.Equal(t, v.ID, gotV.ID)
}

func TestValidateMissingDriverIsNotFound(t *testing.T) {
	s, st := newService(t)
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})

	_, _, err := s.Validate(context.Background(), "ghost", v.ID, 100)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "driver", nf.Entity)
}

func TestValidateMissingVehicleIsNotFound(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseValid})

	_, _, err := s.Validate(context.Background(), d.ID, "ghost", 100)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "vehicle", nf.Entity)
}

func TestValidateExpiredLicense(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseExpired})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})

	_, _, err := s.Validate(context.Background(), d.ID, v.ID, 100)
	var el *EligibilityError
	require.ErrorAs(t, err, &el)
	assert.Contains(t, el.Reasons, ReasonLicenseExpired)
}

func TestValidateSuspendedDriver(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseValid, DutyStatus: model.DutySuspended})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})

	_, _, err := s.Validate(context.Background(), d.ID, v.ID, 100)
	var el *EligibilityError
	require.ErrorAs(t, err, &el)
	assert.Contains(t, el.Reasons, ReasonDriverSuspended)
}

func TestValidateVehicleInShop(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseValid})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500, Status: model.VehicleInShop})

	_, _, err := s.Validate(context.Background(), d.ID, v.ID, 100)
	var el *EligibilityError
	require.ErrorAs(t, err, &el)
	assert.Contains(t, el.Reasons, ReasonVehicleInShop)
}

func TestValidateVehicleOnTrip(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseValid})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500, Status: model.VehicleOnTrip})

	_, _, err := s.Validate(context.Background(), d.ID, v.ID, 100)
	var el *EligibilityError
	require.ErrorAs(t, err, &el)
	assert.Contains(t, el.Reasons, ReasonVehicleOnTrip)
}

func TestValidateCapacityBoundary(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseValid})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})

	// exactly at capacity is allowed
	_, _, err := s.Validate(context.Background(), d.ID, v.ID, 500)
	require.NoError(t, err)

	// one over is not
	_, _, err = s.Validate(context.Background(), d.ID, v.ID, 600)
	var el *EligibilityError
	require.ErrorAs(t, err, &el)
	assert.Contains(t, el.Reasons, "cargo exceeds capacity: 600 > 500")
}

func TestValidateNonPositiveCargo(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseValid})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})

	for _, w := range []float64{0, -10} {
		_, _, err := s.Validate(context.Background(), d.ID, v.ID, w)
		var el *EligibilityError
		require.ErrorAs(t, err, &el)
		assert.Contains(t, el.Reasons, ReasonCargoNotPositive)
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseExpired, DutyStatus: model.DutySuspended})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500, Status: model.VehicleInShop})

	_, _, err := s.Validate(context.Background(), d.ID, v.ID, 600)
	var el *EligibilityError
	require.ErrorAs(t, err, &el)
	assert.Len(t, el.Reasons, 4)
	assert.Contains(t, el.Reasons, ReasonLicenseExpired)
	assert.Contains(t, el.Reasons, ReasonDriverSuspended)
	assert.Contains(t, el.Reasons, ReasonVehicleInShop)
	assert.Contains(t, el.Reasons, "cargo exceeds capacity: 600 > 500")
}
