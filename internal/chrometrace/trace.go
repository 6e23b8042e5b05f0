package chrometrace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/perfwatch/beacon/internal/errorutil"
)

// Phase codes from the Trace Event Format.
type Phase string

const (
	PhaseBegin    Phase = "B"
	PhaseEnd      Phase = "E"
	PhaseComplete Phase = "X"
	PhaseInstant  Phase = "I"
	PhaseMetadata Phase = "M"
	PhaseCounter  Phase = "C"

	// ScopeThread marks an instant event as thread-scoped.
	ScopeThread = "t"

	// TracingStartedPrefix is shared by every variant of the marker Chrome
	// emits when tracing begins ("TracingStartedInBrowser",
	// "TracingStartedInPage"). Variants differ per recording thread but all
	// denote the same thing.
	TracingStartedPrefix = "TracingStartedIn"

	// TracingStartedInPage is the canonical page-scoped start marker name.
	TracingStartedInPage = "TracingStartedInPage"

	// DevtoolsTimelineCategory tags events belonging to the devtools
	// timeline, including start markers.
	DevtoolsTimelineCategory = "disabled-by-default-devtools.timeline"
)

var ErrMissingTraceEvents = fmt.Errorf("%w: trace has no traceEvents sequence", errorutil.ErrDataIntegrity)

// StoragePath returns the object name under which a trace is stored.
func StoragePath(organizationID, projectID uint64, traceID string) string {
	return fmt.Sprintf(
		"%d/%d/%s",
		organizationID,
		projectID,
		strings.ReplaceAll(traceID, "-", ""),
	)
}

type (
	// TraceEvent is one timestamped record in a performance capture log.
	// Timestamps are in microseconds since tracing began.
	TraceEvent struct {
		ProcessID uint64     `json:"pid"`
		ThreadID  uint64     `json:"tid"`
		Timestamp uint64     `json:"ts"`
		Phase     Phase      `json:"ph,omitempty"`
		Category  string     `json:"cat,omitempty"`
		Name      string     `json:"name,omitempty"`
		Scope     string     `json:"s,omitempty"`
		Duration  uint64     `json:"dur,omitempty"`
		Args      *EventArgs `json:"args,omitempty"`
	}

	// EventArgs is the loosely shaped payload attached to an event. Which
	// sub-record carries the frame identifier depends on the event kind.
	EventArgs struct {
		Frame     string    `json:"frame,omitempty"`
		Data      *ArgsData `json:"data,omitempty"`
		BeginData *ArgsData `json:"beginData,omitempty"`
		Counters  *ArgsData `json:"counters,omitempty"`
	}

	ArgsData struct {
		Frame string `json:"frame,omitempty"`
		Page  string `json:"page,omitempty"`
	}

	// Trace is the envelope around an ordered event sequence. Envelope
	// fields other than traceEvents are opaque to us and round-trip
	// untouched through fields.
	Trace struct {
		Events []TraceEvent

		fields map[string]json.RawMessage
	}
)

// Frame returns the frame identifier the event belongs to, if any.
//
// The identifier can live in several places depending on the event kind:
// directly on args, or under the first present of args.data, args.beginData
// and args.counters, as either a frame or a page field.
func (e TraceEvent) Frame() (string, bool) {
	if e.Args == nil {
		return "", false
	}
	if e.Args.Frame != "" {
		return e.Args.Frame, true
	}
	data := e.Args.Data
	if data == nil {
		data = e.Args.BeginData
	}
	if data == nil {
		data = e.Args.Counters
	}
	if data == nil {
		return "", false
	}
	if data.Frame != "" {
		return data.Frame, true
	}
	if data.Page != "" {
		return data.Page, true
	}
	return "", false
}

// IsStartMarker reports whether the event is one of the "tracing started"
// marker variants.
func (e TraceEvent) IsStartMarker() bool {
	return strings.HasPrefix(e.Name, TracingStartedPrefix)
}

// UnmarshalJSON accepts both the envelope form {"traceEvents": [...]} and
// the legacy bare-array form [...], which it wraps into an envelope.
func (t *Trace) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		t.fields = nil
		return json.Unmarshal(b, &t.Events)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	raw, ok := fields["traceEvents"]
	if !ok {
		return ErrMissingTraceEvents
	}
	if err := json.Unmarshal(raw, &t.Events); err != nil {
		return err
	}
	delete(fields, "traceEvents")
	t.fields = fields
	return nil
}

func (t Trace) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(t.fields)+1)
	for k, v := range t.fields {
		fields[k] = v
	}
	events, err := json.Marshal(t.Events)
	if err != nil {
		return nil, err
	}
	fields["traceEvents"] = events
	return json.Marshal(fields)
}
