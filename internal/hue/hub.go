// Package hue adapts a Philips Hue bridge to the dispatcher's Hub interface.
package hue

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/lightcmd/internal/command"
	"github.com/dokzlo13/lightcmd/internal/config"
	"github.com/dokzlo13/lightcmd/internal/dispatch"
)

// Hue bridges accept brightness 1-254.
const maxBri = 254

// zone is the cached view of a Hue group.
type zone struct {
	groupID int
	lights  []int
}

// Hub implements dispatch.Hub on top of a Hue bridge (v1 API).
// The zone index is built once in Connect and never modified afterwards.
type Hub struct {
	bridge  *huego.Bridge
	limiter *rate.Limiter
	timeout time.Duration
	zones   map[command.ZoneID]zone
}

var _ dispatch.Hub = (*Hub)(nil)

// Connect opens the bridge and indexes its groups by name.
func Connect(ctx context.Context, cfg config.HubConfig) (*Hub, error) {
	address := cfg.Address
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		// huego rewrites Host lazily otherwise, which is not goroutine-safe.
		address = "http://" + address
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10.0
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	h := &Hub{
		bridge:  huego.New(address, cfg.Token),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		timeout: cfg.Timeout.Duration(),
		zones:   make(map[command.ZoneID]zone),
	}

	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	groups, err := h.bridge.GetGroupsContext(callCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hub groups: %w", err)
	}

	// Lowest id wins when names collide.
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })

	for _, g := range groups {
		if g.Type == "Entertainment" {
			continue
		}
		z := zone{groupID: g.ID}
		for _, lid := range g.Lights {
			id, err := strconv.Atoi(lid)
			if err != nil {
				log.Warn().Str("group", g.Name).Str("light", lid).Msg("Skipping light with non-numeric id")
				continue
			}
			z.lights = append(z.lights, id)
		}
		name := command.ZoneID(g.Name)
		if _, dup := h.zones[name]; dup {
			log.Warn().Str("group", g.Name).Int("id", g.ID).Msg("Duplicate group name, keeping lowest id")
			continue
		}
		h.zones[name] = z
	}

	log.Info().
		Str("address", address).
		Int("zones", len(h.zones)).
		Msg("Connected to hub")

	return h, nil
}

func (h *Hub) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}

func (h *Hub) zone(id command.ZoneID) (zone, error) {
	z, ok := h.zones[id]
	if !ok {
		return zone{}, fmt.Errorf("zone %q not found on hub", id)
	}
	return z, nil
}

func (h *Hub) setGroupState(ctx context.Context, id command.ZoneID, state huego.State) error {
	z, err := h.zone(id)
	if err != nil {
		return err
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	_, err = h.bridge.SetGroupStateContext(callCtx, z.groupID, state)
	return err
}

// SetPower turns a zone on or off.
func (h *Hub) SetPower(ctx context.Context, id command.ZoneID, on bool) error {
	log.Ctx(ctx).Debug().Str("zone", string(id)).Bool("on", on).Msg("Setting zone power")
	return h.setGroupState(ctx, id, huego.State{On: on})
}

// SetDimmer sets the zone brightness. huego always sends the "on" flag along
// with a state change, so level 0 switches the zone off and any other level
// switches it on.
func (h *Hub) SetDimmer(ctx context.Context, id command.ZoneID, level int) error {
	log.Ctx(ctx).Debug().Str("zone", string(id)).Int("level", level).Msg("Setting zone dimmer")
	if level <= 0 {
		return h.setGroupState(ctx, id, huego.State{On: false})
	}
	if level > maxBri {
		level = maxBri
	}
	return h.setGroupState(ctx, id, huego.State{On: true, Bri: uint8(level)})
}

// Devices fetches every light of the zone from the bridge. A light that
// cannot be fetched is still returned; its SetColor reports the lookup error.
func (h *Hub) Devices(ctx context.Context, id command.ZoneID) ([]dispatch.Device, error) {
	z, err := h.zone(id)
	if err != nil {
		return nil, err
	}

	devices := make([]dispatch.Device, 0, len(z.lights))
	for _, lid := range z.lights {
		devices = append(devices, h.fetchLight(ctx, lid))
	}
	return devices, nil
}

func (h *Hub) fetchLight(ctx context.Context, lid int) dispatch.Device {
	if err := h.limiter.Wait(ctx); err != nil {
		return &unreachableLight{id: lid, err: err}
	}
	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	l, err := h.bridge.GetLightContext(callCtx, lid)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int("light", lid).Msg("Failed to fetch light")
		return &unreachableLight{id: lid, err: fmt.Errorf("failed to fetch light %d: %w", lid, err)}
	}
	return &light{hub: h, id: lid, name: l.Name, kind: l.Type}
}

// unreachableLight stands in for a light the bridge could not return.
type unreachableLight struct {
	id  int
	err error
}

func (l *unreachableLight) ID() string          { return strconv.Itoa(l.id) }
func (l *unreachableLight) SupportsColor() bool { return true }

func (l *unreachableLight) SetColor(context.Context, command.Color) error {
	return l.err
}

// light is a single Hue light.
type light struct {
	hub  *Hub
	id   int
	name string
	kind string // Hue light type, e.g. "Extended color light"
}

func (l *light) ID() string {
	return strconv.Itoa(l.id)
}

func (l *light) temperatureOnly() bool {
	return strings.EqualFold(l.kind, "Color temperature light")
}

// SupportsColor reports whether the light accepts xy or colour temperature.
func (l *light) SupportsColor() bool {
	return strings.Contains(strings.ToLower(l.kind), "color")
}

// SetColor applies the palette colour. Hue lights reject colour changes while
// off, so the light is switched on as part of the same state change.
func (l *light) SetColor(ctx context.Context, c command.Color) error {
	state := huego.State{On: true}
	if l.temperatureOnly() {
		ct, err := hexToMirek(c.Hex)
		if err != nil {
			return err
		}
		state.Ct = ct
	} else {
		xy, err := hexToXY(c.Hex)
		if err != nil {
			return err
		}
		state.Xy = xy
	}

	if err := l.hub.limiter.Wait(ctx); err != nil {
		return err
	}
	callCtx, cancel := l.hub.callContext(ctx)
	defer cancel()

	log.Ctx(ctx).Debug().
		Int("light", l.id).
		Str("name", l.name).
		Str("color", c.Name).
		Msg("Setting light colour")

	_, err := l.hub.bridge.SetLightStateContext(callCtx, l.id, state)
	return err
}
