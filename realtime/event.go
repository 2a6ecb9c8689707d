package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-medlocus/model"
)

// EventType names a real-time event.
type EventType string

const (
	EventConnect      EventType = "connect"
	EventDisconnect   EventType = "disconnect"
	EventKPIUpdate    EventType = "kpi_update"
	EventNotification EventType = "notification"
)

// Event is a decoded real-time event. Exactly one of KPI and Notification is
// set for kpi_update and notification events; both are nil otherwise.
type Event struct {
	Type         EventType
	KPI          *model.KPIDelta
	Notification *model.Notification
}

// KPIUpdate builds a kpi_update event.
func KPIUpdate(id string, value float64) Event {
	return Event{Type: EventKPIUpdate, KPI: &model.KPIDelta{ID: id, Value: value}}
}

// NotificationEvent builds a notification event.
func NotificationEvent(n model.Notification) Event {
	return Event{Type: EventNotification, Notification: &n}
}

type jsonEnvelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type msgpackEnvelope struct {
	Type    EventType          `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// payload returns the value carried on the wire for e.
func (e Event) payload() any {
	switch {
	case e.KPI != nil:
		return e.KPI
	case e.Notification != nil:
		return e.Notification
	}
	return nil
}

// MarshalJSON encodes e as {"type": ..., "payload": ...}.
func (e Event) MarshalJSON() ([]byte, error) {
	env := jsonEnvelope{Type: e.Type}
	if p := e.payload(); p != nil {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// EncodeMsgpack encodes e with the same envelope as MarshalJSON.
func EncodeMsgpack(e Event) ([]byte, error) {
	env := msgpackEnvelope{Type: e.Type}
	if p := e.payload(); p != nil {
		raw, err := msgpack.Marshal(p)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return msgpack.Marshal(env)
}

// DecodeJSON decodes a text frame.
func DecodeJSON(data []byte) (Event, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return decodePayload(env.Type, env.Payload, json.Unmarshal)
}

// DecodeMsgpack decodes a binary frame.
func DecodeMsgpack(data []byte) (Event, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return decodePayload(env.Type, env.Payload, msgpack.Unmarshal)
}

func decodePayload(t EventType, raw []byte, unmarshal func([]byte, any) error) (Event, error) {
	e := Event{Type: t}
	switch t {
	case EventConnect, EventDisconnect:
		return e, nil
	case EventKPIUpdate:
		if len(raw) == 0 {
			return Event{}, fmt.Errorf("decode event: %s without payload", t)
		}
		var d model.KPIDelta
		if err := unmarshal(raw, &d); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", t, err)
		}
		e.KPI = &d
	case EventNotification:
		if len(raw) == 0 {
			return Event{}, fmt.Errorf("decode event: %s without payload", t)
		}
		var n model.Notification
		if err := unmarshal(raw, &n); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", t, err)
		}
		e.Notification = &n
	default:
		return Event{}, fmt.Errorf("decode event: unknown type %q", t)
	}
	return e, nil
}
