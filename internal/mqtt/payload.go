package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dokzlo13/lightcmd/internal/eventbus"
)

// ErrInvalidPayload is returned for command messages that are not JSON
// objects with string "key" and "command" fields.
var ErrInvalidPayload = errors.New("invalid command payload")

// commandMessage is an inbound command:
//
//	{"key": "...", "command": "bedroom warm 50", "id": "optional-request-id"}
type commandMessage struct {
	Key     string
	Command string
	ID      string
}

func parseCommand(payload []byte) (commandMessage, error) {
	if !gjson.ValidBytes(payload) {
		return commandMessage{}, fmt.Errorf("%w: not valid JSON", ErrInvalidPayload)
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return commandMessage{}, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}

	fields := gjson.GetMany(root.Raw, "key", "command")
	for i, name := range []string{"key", "command"} {
		if fields[i].Type != gjson.String {
			return commandMessage{}, fmt.Errorf("%w: missing string field %q", ErrInvalidPayload, name)
		}
	}

	msg := commandMessage{Key: fields[0].String(), Command: fields[1].String()}
	if id := root.Get("id"); id.Type == gjson.String {
		msg.ID = id.String()
	}
	return msg, nil
}

// result is published on the result topic for every command received over MQTT.
type result struct {
	RequestID string   `json:"id"`
	Status    string   `json:"status"`
	Command   string   `json:"command"`
	Zones     []string `json:"zones,omitempty"`
	Shape     string   `json:"shape,omitempty"`
	Error     string   `json:"error,omitempty"`
	Timestamp string   `json:"timestamp"`
}

var statusByType = map[eventbus.EventType]string{
	eventbus.EventTypeCommandCompleted: "ok",
	eventbus.EventTypeCommandFailed:    "failed",
	eventbus.EventTypeCommandRejected:  "rejected",
}

func resultPayload(e eventbus.Event) ([]byte, error) {
	return json.Marshal(result{
		RequestID: e.RequestID,
		Status:    statusByType[e.Type],
		Command:   e.Command,
		Zones:     e.Zones,
		Shape:     e.Shape,
		Error:     e.Error,
		Timestamp: e.Time.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}
