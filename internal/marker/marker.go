package marker

import (
	"errors"
	"sort"

	"github.com/perfwatch/beacon/internal/chrometrace"
)

// ErrNoFrameData is returned when no event in the whole trace carries a
// frame identifier. The trace still comes back with duplicate markers
// removed, but no canonical marker can be synthesized because there is no
// dominant context to attribute it to. Callers decide whether that is
// acceptable for their trace source.
var ErrNoFrameData = errors.New("no event carries frame data")

type (
	// Context identifies the execution context an event belongs to.
	Context struct {
		ProcessID uint64 `json:"pid"`
		ThreadID  uint64 `json:"tid"`
		FrameID   string `json:"frame_id"`
	}

	// frameActivity counts how many events were seen for one context.
	// Activities are kept in first-seen order so that ties between equal
	// counts resolve to the context observed earliest.
	frameActivity struct {
		context Context
		count   int
	}

	// Summary describes what Normalize did to a trace.
	Summary struct {
		EventsIn        int      `json:"events_in"`
		EventsOut       int      `json:"events_out"`
		MarkersRemoved  int      `json:"markers_removed"`
		MarkerTimestamp uint64   `json:"marker_timestamp"`
		DominantContext *Context `json:"dominant_context,omitempty"`
		ActivityCount   int      `json:"activity_count,omitempty"`
	}
)

// Normalize rewrites the trace's event sequence so that it contains exactly
// one canonical "tracing started" marker, at index 0, attributed to the
// dominant context. Capture tools may emit zero, one or several inconsistent
// start markers across recording threads; downstream analysis expects
// exactly one.
//
// The synthesized marker keeps the timestamp of the earliest marker found in
// the input, or zero when the input had none. Relative order of all other
// events is preserved.
//
// When no event in the trace carries frame data, the markers are still
// removed but nothing is synthesized and ErrNoFrameData is returned
// alongside the summary of what was done.
func Normalize(t *chrometrace.Trace) (Summary, error) {
	if t == nil || t.Events == nil {
		return Summary{}, chrometrace.ErrMissingTraceEvents
	}

	activities := tallyFrameActivity(t.Events)
	indices, capturedTimestamp := locateStartMarkers(t.Events)

	summary := Summary{
		EventsIn:        len(t.Events),
		MarkersRemoved:  len(indices),
		MarkerTimestamp: capturedTimestamp,
		ActivityCount:   len(activities),
	}

	dominant, ok := dominantContext(activities)
	if !ok {
		t.Events = withoutIndices(t.Events, indices)
		summary.EventsOut = len(t.Events)
		return summary, ErrNoFrameData
	}
	summary.DominantContext = &dominant

	events := make([]chrometrace.TraceEvent, 0, len(t.Events)-len(indices)+1)
	events = append(events, chrometrace.TraceEvent{
		ProcessID: dominant.ProcessID,
		ThreadID:  dominant.ThreadID,
		Timestamp: capturedTimestamp,
		Phase:     chrometrace.PhaseInstant,
		Category:  chrometrace.DevtoolsTimelineCategory,
		Name:      chrometrace.TracingStartedInPage,
		Scope:     chrometrace.ScopeThread,
		Args: &chrometrace.EventArgs{
			Data: &chrometrace.ArgsData{Page: dominant.FrameID},
		},
	})
	events = appendWithoutIndices(events, t.Events, indices)
	t.Events = events
	summary.EventsOut = len(t.Events)
	return summary, nil
}

// tallyFrameActivity counts events per (process, thread, frame) context.
// Events without a resolvable frame contribute nothing. The returned slice
// is ordered by first observation of each context.
func tallyFrameActivity(events []chrometrace.TraceEvent) []frameActivity {
	seen := make(map[Context]int)
	var activities []frameActivity
	for _, event := range events {
		frameID, ok := event.Frame()
		if !ok {
			continue
		}
		context := Context{
			ProcessID: event.ProcessID,
			ThreadID:  event.ThreadID,
			FrameID:   frameID,
		}
		i, ok := seen[context]
		if !ok {
			i = len(activities)
			seen[context] = i
			activities = append(activities, frameActivity{context: context})
		}
		activities[i].count++
	}
	return activities
}

// dominantContext returns the context with the highest activity count. The
// sort has to be stable: on equal counts the context seen first in the
// original sequence wins.
func dominantContext(activities []frameActivity) (Context, bool) {
	if len(activities) == 0 {
		return Context{}, false
	}
	ranked := make([]frameActivity, len(activities))
	copy(ranked, activities)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})
	return ranked[0].context, true
}

// locateStartMarkers collects the indices of every start-marker variant,
// ascending, plus the timestamp of the earliest one (zero when there is
// none).
func locateStartMarkers(events []chrometrace.TraceEvent) ([]int, uint64) {
	var indices []int
	var capturedTimestamp uint64
	for i, event := range events {
		if !event.IsStartMarker() {
			continue
		}
		if len(indices) == 0 {
			capturedTimestamp = event.Timestamp
		}
		indices = append(indices, i)
	}
	return indices, capturedTimestamp
}

func withoutIndices(events []chrometrace.TraceEvent, indices []int) []chrometrace.TraceEvent {
	out := make([]chrometrace.TraceEvent, 0, len(events)-len(indices))
	return appendWithoutIndices(out, events, indices)
}

// appendWithoutIndices copies events onto dst in a single pass, skipping the
// given ascending indices.
func appendWithoutIndices(dst, events []chrometrace.TraceEvent, indices []int) []chrometrace.TraceEvent {
	next := 0
	for i, event := range events {
		if next < len(indices) && indices[next] == i {
			next++
			continue
		}
		dst = append(dst, event)
	}
	return dst
}
