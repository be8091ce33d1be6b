// Package interpreter ties parsing, hub session and dispatch together into a
// single entry point shared by the HTTP and MQTT front ends.
package interpreter

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightcmd/internal/command"
	"github.com/dokzlo13/lightcmd/internal/dispatch"
	"github.com/dokzlo13/lightcmd/internal/eventbus"
)

// HubProvider hands out the hub for the current process.
type HubProvider interface {
	Hub(ctx context.Context) (dispatch.Hub, error)
}

// Request is one command as received by a front end.
type Request struct {
	ID      string
	Source  string
	Command string
}

// Interpreter executes text commands.
type Interpreter struct {
	lexicon    *command.Lexicon
	dispatcher *dispatch.Dispatcher
	hubs       HubProvider
	bus        *eventbus.Bus // optional
}

// New creates an interpreter. bus may be nil.
func New(lexicon *command.Lexicon, hubs HubProvider, bus *eventbus.Bus) *Interpreter {
	return &Interpreter{
		lexicon:    lexicon,
		dispatcher: dispatch.New(lexicon),
		hubs:       hubs,
		bus:        bus,
	}
}

// Lexicon returns the vocabulary commands are parsed with.
func (i *Interpreter) Lexicon() *command.Lexicon {
	return i.lexicon
}

// Execute parses req.Command and runs it against the hub.
//
// The command is parsed before the hub is touched, so a malformed command
// never opens the session. Once started, a command runs to completion even
// if ctx is cancelled; each hub call is bounded by the hub timeout. Errors
// match command.ErrMalformedCommand, dispatch.ErrHubOperation or the
// session's own sentinels.
func (i *Interpreter) Execute(ctx context.Context, req Request) error {
	ctx = context.WithoutCancel(ctx)
	text := strings.TrimSpace(req.Command)
	logger := log.Ctx(ctx)

	resolved, err := i.lexicon.Parse(text)
	if err != nil {
		logger.Info().Err(err).Str("command", text).Msg("Command rejected")
		i.publish(eventbus.EventTypeCommandRejected, req, text, command.Resolved{}, err)
		return err
	}

	hub, err := i.hubs.Hub(ctx)
	if err != nil {
		logger.Error().Err(err).Str("command", text).Msg("Hub unavailable")
		i.publish(eventbus.EventTypeCommandFailed, req, text, resolved, err)
		return err
	}

	if err := i.dispatcher.Dispatch(ctx, hub, resolved); err != nil {
		logger.Error().Err(err).Str("command", text).Msg("Command failed")
		i.publish(eventbus.EventTypeCommandFailed, req, text, resolved, err)
		return err
	}

	logger.Info().
		Str("command", text).
		Str("shape", resolved.Shape.String()).
		Strs("zones", zoneNames(resolved.Zones)).
		Msg("Command executed")
	i.publish(eventbus.EventTypeCommandCompleted, req, text, resolved, nil)
	return nil
}

func (i *Interpreter) publish(t eventbus.EventType, req Request, text string, resolved command.Resolved, err error) {
	if i.bus == nil {
		return
	}
	e := eventbus.Event{
		Type:      t,
		RequestID: req.ID,
		Source:    req.Source,
		Command:   text,
		Zones:     zoneNames(resolved.Zones),
	}
	if resolved.Shape != nil {
		e.Shape = resolved.Shape.String()
	}
	if err != nil {
		e.Error = err.Error()
	}
	i.bus.Publish(e)
}

func zoneNames(zones []command.ZoneID) []string {
	if len(zones) == 0 {
		return nil
	}
	names := make([]string, len(zones))
	for i, z := range zones {
		names[i] = string(z)
	}
	return names
}
