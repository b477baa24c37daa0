package model

// Status values for vehicles, drivers, trips and maintenance records. These
// are stored and served verbatim, so they double as the wire format.
const (
	VehicleAvailable = "Available"
	VehicleOnTrip    = "On Trip"
	VehicleInShop    = "In Shop"
	VehicleOffline   = "Offline"

	LicenseValid   = "Valid"
	LicenseExpired = "Expired"

	DutyOnDuty    = "On Duty"
	DutyAvailable = "Available"
	DutySuspended = "Suspended"

	TripPending   = "Pending"
	TripStarted   = "Started"
	TripCompleted = "Completed"
	TripCancelled = "Cancelled"

	MaintenancePending   = "Pending"
	MaintenanceCompleted = "Completed"
)

// VehicleStatuses lists every valid vehicle status.
var VehicleStatuses = []string{VehicleAvailable, VehicleOnTrip, VehicleInShop, VehicleOffline}

type Vehicle struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Plate   string  `json:"plate,omitempty"`
	MaxLoad float64 `json:"maxLoad"`
	Status  string  `json:"status"`
}

type Driver struct {
	ID            string  `json:"id"`
	Name          string  `json:"name,omitempty"`
	LicenseStatus string  `json:"licenseStatus"`
	SafetyScore   float64 `json:"safetyScore"`
	DutyStatus    string  `json:"dutyStatus"`
}

// Trip pairs one driver and one vehicle against a cargo job. DriverID and
// VehicleID are set at creation and never change.
type Trip struct {
	ID          string  `json:"id"`
	DriverID    string  `json:"driverId"`
	VehicleID   string  `json:"vehicleId"`
	CargoWeight float64 `json:"cargoWeight"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt,omitempty"`
}

type MaintenanceRecord struct {
	ID          string `json:"id"`
	VehicleID   string `json:"vehicleId"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Write models for API requests

type VehicleIn struct {
	Name    string  `json:"name,omitempty"`
	Plate   string  `json:"plate,omitempty"`
	MaxLoad float64 `json:"maxLoad"`
	Status  string  `json:"status,omitempty"`
}

type DriverIn struct {
	Name          string  `json:"name,omitempty"`
	LicenseStatus string  `json:"licenseStatus,omitempty"`
	SafetyScore   float64 `json:"safetyScore,omitempty"`
	DutyStatus    string  `json:"dutyStatus,omitempty"`
}

type TripRequest struct {
	DriverID    string  `json:"driverId"`
	VehicleID   string  `json:"vehicleId"`
	CargoWeight float64 `json:"cargoWeight"`
}

type MaintenanceRequest struct {
	VehicleID   string `json:"vehicleId"`
	Description string `json:"description,omitempty"`
}

// Webhook subscriptions

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
