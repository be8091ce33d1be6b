package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightcmd/internal/command"
)

// brightnessScale converts a percentage into the hub's 0-255 dimmer range.
const brightnessScale = 2.55

// ScaleBrightness converts a 0-100 percentage to the hub dimmer level, truncating.
func ScaleBrightness(percent int) int {
	return int(float64(percent) * brightnessScale)
}

// Dispatcher executes resolved commands against a Hub.
type Dispatcher struct {
	lexicon *command.Lexicon
}

// New creates a dispatcher that resolves colour names through lexicon.
func New(lexicon *command.Lexicon) *Dispatcher {
	return &Dispatcher{lexicon: lexicon}
}

// Dispatch runs every part of cmd, in shape order, against every selected zone.
//
// Hub failures do not stop the fan-out: every operation is attempted and the
// failures are returned together as a *DispatchError (nil when all succeeded).
func (d *Dispatcher) Dispatch(ctx context.Context, hub Hub, cmd command.Resolved) error {
	run := &run{hub: hub, lexicon: d.lexicon, dark: make(map[command.ZoneID]bool)}

	for _, part := range cmd.Parts() {
		for _, zone := range cmd.Zones {
			run.execute(ctx, zone, part)
		}
	}

	log.Ctx(ctx).Debug().
		Strs("tokens", cmd.Tokens).
		Str("shape", cmd.Shape.String()).
		Int("zones", len(cmd.Zones)).
		Int("operations", run.attempts).
		Int("failures", len(run.failures)).
		Msg("Command dispatched")

	if len(run.failures) > 0 {
		return &DispatchError{Failures: run.failures, Attempts: run.attempts}
	}
	return nil
}

// run accumulates the outcome of a single dispatch.
type run struct {
	hub      Hub
	lexicon  *command.Lexicon
	attempts int
	failures []OperationFailure

	// Zones dimmed to 0 earlier in this command. Colour is not applied to
	// them, since setting a Hue colour switches the light back on.
	dark map[command.ZoneID]bool
}

func (r *run) record(ctx context.Context, zone command.ZoneID, kind command.Kind, device string, err error) {
	r.attempts++
	if err == nil {
		return
	}
	log.Ctx(ctx).Warn().
		Err(err).
		Str("zone", string(zone)).
		Str("kind", kind.String()).
		Str("device", device).
		Msg("Hub operation failed")
	r.failures = append(r.failures, OperationFailure{Zone: zone, Kind: kind, Device: device, Err: err})
}

func (r *run) execute(ctx context.Context, zone command.ZoneID, part command.Part) {
	switch part.Kind {
	case command.KindSwitch:
		r.record(ctx, zone, part.Kind, "", r.hub.SetPower(ctx, zone, part.Literal == command.SwitchOn))

	case command.KindColor:
		if r.dark[zone] {
			log.Ctx(ctx).Debug().Str("zone", string(zone)).Msg("Skipping colour for zone dimmed to 0")
			return
		}
		color, ok := r.lexicon.Color(part.Literal)
		if !ok {
			r.record(ctx, zone, part.Kind, "", fmt.Errorf("unknown colour %q", part.Literal))
			return
		}
		devices, err := r.hub.Devices(ctx, zone)
		if err != nil {
			r.record(ctx, zone, part.Kind, "", err)
			return
		}
		for _, dev := range devices {
			if !dev.SupportsColor() {
				continue
			}
			r.record(ctx, zone, part.Kind, dev.ID(), dev.SetColor(ctx, color))
		}

	case command.KindBrightness:
		percent, ok := command.ParseBrightness(part.Literal)
		if !ok {
			r.record(ctx, zone, part.Kind, "", fmt.Errorf("invalid brightness %q", part.Literal))
			return
		}
		level := ScaleBrightness(percent)
		r.dark[zone] = level == 0
		r.record(ctx, zone, part.Kind, "", r.hub.SetDimmer(ctx, zone, level))
		// Dimming alone does not switch lights on.
		if level > 0 {
			r.record(ctx, zone, part.Kind, "", r.hub.SetPower(ctx, zone, true))
		}

	default:
		r.record(ctx, zone, part.Kind, "", fmt.Errorf("unsupported command part kind %s", part.Kind))
	}
}
