package main

import (
	"time"

	"github.com/perfwatch/beacon/internal/insightutil"
)

// StatsRow is one normalization record in the BigQuery stats table.
type StatsRow struct {
	TraceID        string `bigquery:"trace_id"`
	OrganizationID uint64 `bigquery:"organization_id"`
	ProjectID      uint64 `bigquery:"project_id"`

	EventsIn       int `bigquery:"events_in"`
	EventsOut      int `bigquery:"events_out"`
	MarkersRemoved int `bigquery:"markers_removed"`

	DominantProcessID uint64 `bigquery:"dominant_pid"`
	DominantThreadID  uint64 `bigquery:"dominant_tid"`
	DominantFrameID   string `bigquery:"dominant_frame_id"`

	Received time.Time `bigquery:"received"`
}

func newStatsRow(report insightutil.TraceReport) *StatsRow {
	row := StatsRow{
		TraceID:        report.TraceID,
		OrganizationID: report.OrganizationID,
		ProjectID:      report.ProjectID,
		EventsIn:       report.Summary.EventsIn,
		EventsOut:      report.Summary.EventsOut,
		MarkersRemoved: report.Summary.MarkersRemoved,
		Received:       report.Received.Time(),
	}
	if dominant := report.Summary.DominantContext; dominant != nil {
		row.DominantProcessID = dominant.ProcessID
		row.DominantThreadID = dominant.ThreadID
		row.DominantFrameID = dominant.FrameID
	}
	return &row
}
