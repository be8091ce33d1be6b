// Package dispatchtest provides an in-memory dispatch.Hub for tests.
package dispatchtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dokzlo13/lightcmd/internal/command"
	"github.com/dokzlo13/lightcmd/internal/dispatch"
)

// Recorder is a dispatch.Hub that records every call as a string, in order.
// Every zone has one colour-capable device with id "<zone>-1". Calls made
// with a cancelled context are recorded and fail with the context error.
type Recorder struct {
	mu    sync.Mutex
	calls []string

	// Fail makes every SetPower call for the zone return an error.
	Fail map[command.ZoneID]bool
}

var _ dispatch.Hub = (*Recorder)(nil)

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{Fail: map[command.ZoneID]bool{}}
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *Recorder) SetPower(ctx context.Context, zone command.ZoneID, on bool) error {
	r.add(fmt.Sprintf("power %s %v", zone, on))
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail[zone] {
		return fmt.Errorf("zone %s unreachable", zone)
	}
	return nil
}

func (r *Recorder) SetDimmer(ctx context.Context, zone command.ZoneID, level int) error {
	r.add(fmt.Sprintf("dimmer %s %d", zone, level))
	return ctx.Err()
}

func (r *Recorder) Devices(_ context.Context, zone command.ZoneID) ([]dispatch.Device, error) {
	return []dispatch.Device{&device{rec: r, id: string(zone) + "-1"}}, nil
}

type device struct {
	rec *Recorder
	id  string
}

func (d *device) ID() string          { return d.id }
func (d *device) SupportsColor() bool { return true }

func (d *device) SetColor(ctx context.Context, c command.Color) error {
	d.rec.add(fmt.Sprintf("color %s %s", d.id, c.Hex))
	return ctx.Err()
}

// Provider hands out a fixed hub, or a fixed error, and counts requests.
type Provider struct {
	Target dispatch.Hub
	Err    error

	mu       sync.Mutex
	requests int
}

// Hub implements interpreter.HubProvider.
func (p *Provider) Hub(context.Context) (dispatch.Hub, error) {
	p.mu.Lock()
	p.requests++
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Target, nil
}

// Requests reports how many times the hub was asked for.
func (p *Provider) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}
