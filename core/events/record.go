package events

import (
	"math"
	"time"

	"github.com/invopop/jsonschema"
)

// Record is the wire representation of an event, used for logging,
// telemetry and the GUI boundary. Type and priority serialize as their
// enum names, the timestamp as epoch seconds, and the payload verbatim.
type Record struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Source    string         `json:"source"`
	Timestamp float64        `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Record converts the event into its wire representation.
func (e *Event) Record() Record {
	return Record{
		ID:        e.ID,
		Type:      e.Type.String(),
		Priority:  e.Priority.String(),
		Source:    e.Source,
		Timestamp: float64(e.Timestamp.UnixNano()) / float64(time.Second),
		Data:      e.Data,
	}
}

// FromRecord reconstructs an event from its wire representation. The type
// and priority names must belong to their closed sets.
func FromRecord(r Record) (*Event, error) {
	t, err := ParseType(r.Type)
	if err != nil {
		return nil, err
	}
	p, err := ParsePriority(r.Priority)
	if err != nil {
		return nil, err
	}

	sec, frac := math.Modf(r.Timestamp)
	return New(t,
		WithID(r.ID),
		WithPriority(p),
		WithSource(r.Source),
		WithTimestamp(time.Unix(int64(sec), int64(frac*float64(time.Second)))),
		WithData(r.Data),
	), nil
}

// RecordSchema returns the JSON schema of the wire representation, so
// external collaborators can validate records without importing this
// package.
func RecordSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.Reflect(&Record{})
}
