package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/perfwatch/beacon/internal/insightutil"
	"github.com/perfwatch/beacon/internal/marker"
	"github.com/perfwatch/beacon/internal/timeutil"
)

func testReport() insightutil.TraceReport {
	return insightutil.TraceReport{
		TraceID:        "ab2634ed8b8845d5a8e1cbd9e573c74e",
		OrganizationID: 1,
		ProjectID:      2,
		Received:       timeutil.Time(time.Unix(1685615475, 0)),
		Summary: marker.Summary{
			EventsIn:        5,
			EventsOut:       4,
			MarkersRemoved:  2,
			MarkerTimestamp: 5,
			DominantContext: &marker.Context{ProcessID: 1, ThreadID: 1, FrameID: "F1"},
			ActivityCount:   2,
		},
	}
}

func TestBuildNormalizedTraceKafkaMessage(t *testing.T) {
	want := NormalizedTraceKafkaMessage{
		TraceID:         "ab2634ed8b8845d5a8e1cbd9e573c74e",
		OrganizationID:  1,
		ProjectID:       2,
		EventCount:      4,
		MarkersRemoved:  2,
		MarkerTs:        5,
		DominantContext: &marker.Context{ProcessID: 1, ThreadID: 1, FrameID: "F1"},
		Received:        1685615475,
	}
	got := buildNormalizedTraceKafkaMessage(testReport())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestNewStatsRow(t *testing.T) {
	want := &StatsRow{
		TraceID:           "ab2634ed8b8845d5a8e1cbd9e573c74e",
		OrganizationID:    1,
		ProjectID:         2,
		EventsIn:          5,
		EventsOut:         4,
		MarkersRemoved:    2,
		DominantProcessID: 1,
		DominantThreadID:  1,
		DominantFrameID:   "F1",
		Received:          time.Unix(1685615475, 0),
	}
	got := newStatsRow(testReport())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stats row mismatch (-want +got):\n%s", diff)
	}
}

func TestNewStatsRowNoDominantContext(t *testing.T) {
	report := testReport()
	report.Summary.DominantContext = nil
	row := newStatsRow(report)
	if row.DominantFrameID != "" || row.DominantProcessID != 0 || row.DominantThreadID != 0 {
		t.Fatalf("expected unset dominant fields, got %+v", row)
	}
}
