package main

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/perfwatch/beacon/internal/insightutil"
	"github.com/perfwatch/beacon/internal/marker"
)

type NormalizedTraceKafkaMessage struct {
	TraceID        string `json:"trace_id"`
	OrganizationID uint64 `json:"organization_id"`
	ProjectID      uint64 `json:"project_id"`

	EventCount     int    `json:"event_count"`
	MarkersRemoved int    `json:"markers_removed"`
	MarkerTs       uint64 `json:"marker_ts"`

	DominantContext *marker.Context `json:"dominant_context,omitempty"`

	Received float64 `json:"received"`
}

func buildNormalizedTraceKafkaMessage(report insightutil.TraceReport) NormalizedTraceKafkaMessage {
	return NormalizedTraceKafkaMessage{
		TraceID:         report.TraceID,
		OrganizationID:  report.OrganizationID,
		ProjectID:       report.ProjectID,
		EventCount:      report.Summary.EventsOut,
		MarkersRemoved:  report.Summary.MarkersRemoved,
		MarkerTs:        report.Summary.MarkerTimestamp,
		DominantContext: report.Summary.DominantContext,
		Received:        float64(report.Received.Time().Unix()),
	}
}

func (env *environment) sendNormalizedTraceMessage(ctx context.Context, report insightutil.TraceReport) error {
	b, err := json.Marshal(buildNormalizedTraceKafkaMessage(report))
	if err != nil {
		return err
	}
	return env.normalizedWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(report.TraceID),
		Value: b,
	})
}
