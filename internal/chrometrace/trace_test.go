package chrometrace

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrame(t *testing.T) {
	tests := []struct {
		name  string
		event TraceEvent
		frame string
		found bool
	}{
		{
			name:  "no args",
			event: TraceEvent{},
		},
		{
			name:  "empty args",
			event: TraceEvent{Args: &EventArgs{}},
		},
		{
			name:  "direct frame",
			event: TraceEvent{Args: &EventArgs{Frame: "F1"}},
			frame: "F1",
			found: true,
		},
		{
			name: "direct frame wins over data",
			event: TraceEvent{Args: &EventArgs{
				Frame: "F1",
				Data:  &ArgsData{Frame: "F2"},
			}},
			frame: "F1",
			found: true,
		},
		{
			name:  "data frame",
			event: TraceEvent{Args: &EventArgs{Data: &ArgsData{Frame: "F2"}}},
			frame: "F2",
			found: true,
		},
		{
			name:  "data page when data frame missing",
			event: TraceEvent{Args: &EventArgs{Data: &ArgsData{Page: "F3"}}},
			frame: "F3",
			found: true,
		},
		{
			name:  "beginData frame",
			event: TraceEvent{Args: &EventArgs{BeginData: &ArgsData{Frame: "F4"}}},
			frame: "F4",
			found: true,
		},
		{
			name: "data masks beginData even when empty",
			event: TraceEvent{Args: &EventArgs{
				Data:      &ArgsData{},
				BeginData: &ArgsData{Frame: "F5"},
			}},
		},
		{
			name:  "counters page",
			event: TraceEvent{Args: &EventArgs{Counters: &ArgsData{Page: "F6"}}},
			frame: "F6",
			found: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			frame, found := test.event.Frame()
			if found != test.found {
				t.Fatalf("expected found=%v, got %v", test.found, found)
			}
			if frame != test.frame {
				t.Fatalf("expected frame %q, got %q", test.frame, frame)
			}
		})
	}
}

func TestIsStartMarker(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"TracingStartedInBrowser", true},
		{"TracingStartedInPage", true},
		{"TracingStartedInSomethingElse", true},
		{"TracingStarted", false},
		{"navigationStart", false},
		{"", false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := TraceEvent{Name: test.name}
			if got := e.IsStartMarker(); got != test.want {
				t.Fatalf("expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestUnmarshalEnvelope(t *testing.T) {
	data := []byte(`{"metadata":{"source":"DevTools"},"traceEvents":[{"pid":1,"tid":2,"ts":100,"name":"X"}]}`)
	var trace Trace
	if err := json.Unmarshal(data, &trace); err != nil {
		t.Fatal(err)
	}
	if len(trace.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(trace.Events))
	}
	e := trace.Events[0]
	if e.ProcessID != 1 || e.ThreadID != 2 || e.Timestamp != 100 || e.Name != "X" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestUnmarshalLegacyBareArray(t *testing.T) {
	data := []byte(`  [{"pid":3,"tid":4,"ts":7,"name":"Y"}]`)
	var trace Trace
	if err := json.Unmarshal(data, &trace); err != nil {
		t.Fatal(err)
	}
	if len(trace.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(trace.Events))
	}
	if trace.Events[0].Name != "Y" {
		t.Fatalf("unexpected event: %+v", trace.Events[0])
	}
}

func TestUnmarshalMissingTraceEvents(t *testing.T) {
	var trace Trace
	err := json.Unmarshal([]byte(`{"metadata":{}}`), &trace)
	if !errors.Is(err, ErrMissingTraceEvents) {
		t.Fatalf("expected ErrMissingTraceEvents, got %v", err)
	}
}

func TestMarshalRoundTripKeepsEnvelopeFields(t *testing.T) {
	data := []byte(`{"metadata":{"cpu":"arm64"},"displayTimeUnit":"ms","traceEvents":[{"pid":1,"tid":1,"ts":0,"name":"Z"}]}`)
	var trace Trace
	if err := json.Unmarshal(data, &trace); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(trace)
	if err != nil {
		t.Fatal(err)
	}
	var got, want map[string]interface{}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want["metadata"], got["metadata"]); diff != "" {
		t.Fatalf("metadata not passed through (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want["displayTimeUnit"], got["displayTimeUnit"]); diff != "" {
		t.Fatalf("displayTimeUnit not passed through (-want +got):\n%s", diff)
	}
}
