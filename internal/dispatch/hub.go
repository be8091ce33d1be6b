// Package dispatch executes parsed commands against a lighting hub.
package dispatch

import (
	"context"

	"github.com/dokzlo13/lightcmd/internal/command"
)

// Hub is the set of zone and device operations the dispatcher needs.
type Hub interface {
	// SetPower turns every light of the zone on or off.
	SetPower(ctx context.Context, zone command.ZoneID, on bool) error
	// SetDimmer sets the zone brightness in the hub's native 0-255 range.
	SetDimmer(ctx context.Context, zone command.ZoneID, level int) error
	// Devices lists the devices that belong to the zone.
	Devices(ctx context.Context, zone command.ZoneID) ([]Device, error)
}

// Device is a single controllable light.
type Device interface {
	ID() string
	SupportsColor() bool
	SetColor(ctx context.Context, color command.Color) error
}
