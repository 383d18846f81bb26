// Package station implements the station energy management core: the
// power allocator and the session registry that drives it.
package station

import "github.com/google/uuid"

// StationConfig is the immutable description of a charging site, loaded
// once at process startup and replaced only as a whole (never patched).
type StationConfig struct {
	StationID    string          `json:"stationId"`
	GridCapacity uint32          `json:"gridCapacity"`
	Chargers     []ChargerConfig `json:"chargers"`
	Battery      *BatteryConfig  `json:"battery"`
}

// ChargerConfig describes one hardware charging unit shared by one or
// more connectors.
type ChargerConfig struct {
	ID         string `json:"id"`
	MaxPower   uint32 `json:"maxPower"`
	Connectors uint8  `json:"connectors"`
}

// BatteryConfig describes the station's battery energy storage system.
// It is accepted and round-tripped through the configuration but the
// allocator never consults it — a reserved extension point.
type BatteryConfig struct {
	InitialCapacity uint32 `json:"initialCapacity"`
	Power           uint32 `json:"power"`
}

// ConnectorID identifies one physical outlet on a charger. Equality is
// structural, so it is safe to use as a map key.
type ConnectorID struct {
	ChargerID string `json:"chargerId"`
	Idx       uint8  `json:"idx"`
}

// Session is one vehicle's ongoing use of one connector.
type Session struct {
	ID              uuid.UUID   `json:"sessionId"`
	ConnectorID     ConnectorID `json:"connectorId"`
	AllocatedPower  uint32      `json:"allocatedPower"`
	VehicleMaxPower uint32      `json:"vehicleMaxPower"`
}

// saturatingSub returns a-b, clamped at 0 instead of underflowing. It is
// used for the power subtractions in this package whose operands are not
// already known to be ordered.
func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}
