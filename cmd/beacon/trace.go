package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/beacon/internal/chrometrace"
	"github.com/perfwatch/beacon/internal/httputil"
	"github.com/perfwatch/beacon/internal/insightutil"
	"github.com/perfwatch/beacon/internal/marker"
	"github.com/perfwatch/beacon/internal/storageutil"
	"github.com/perfwatch/beacon/internal/timeutil"
)

type PostTraceResponse struct {
	TraceID string         `json:"trace_id"`
	Summary marker.Summary `json:"summary"`
}

func (env *environment) postTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	organizationID, projectID, ok := pathIDs(w, r, hub)
	if !ok {
		return
	}

	s := sentry.StartSpan(ctx, "request.body")
	s.Description = "Read request body"
	body, err := io.ReadAll(r.Body)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var trace chrometrace.Trace
	s = sentry.StartSpan(ctx, "json.unmarshal")
	s.Description = "Unmarshal trace"
	err = json.Unmarshal(body, &trace)
	s.Finish()
	if err != nil {
		log.Err(err).Msg("trace can't be unmarshaled")
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	traceID := uuid.New().String()
	received := timeutil.Time(time.Now().UTC())

	hub.Scope().SetContext("Trace metadata", map[string]interface{}{
		"trace_id":        traceID,
		"organization_id": strconv.FormatUint(organizationID, 10),
		"project_id":      strconv.FormatUint(projectID, 10),
		"events":          len(trace.Events),
		"size":            len(body),
	})

	s = sentry.StartSpan(ctx, "processing")
	s.Description = "Normalize start markers"
	summary, err := marker.Normalize(&trace)
	s.Finish()
	if err != nil && !errors.Is(err, marker.ErrNoFrameData) {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if errors.Is(err, marker.ErrNoFrameData) {
		// not fatal, the trace still had its duplicate markers removed
		log.Warn().Str("trace_id", traceID).Msg("trace carries no frame data")
	}

	storagePath := chrometrace.StoragePath(organizationID, projectID, traceID)

	s = sentry.StartSpan(ctx, "gcs.write")
	s.Description = "Write raw trace to storage"
	err = storageutil.CompressedWrite(ctx, env.tracesBucket, storagePath+".raw", json.RawMessage(body))
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s = sentry.StartSpan(ctx, "gcs.write")
	s.Description = "Write normalized trace to storage"
	err = storageutil.CompressedWrite(ctx, env.tracesBucket, storagePath, trace)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s = sentry.StartSpan(ctx, "gcs.write")
	s.Description = "Write normalization summary to storage"
	err = storageutil.CompressedWrite(ctx, env.tracesBucket, marker.SummaryStoragePath(organizationID, projectID, traceID), summary)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	report := insightutil.TraceReport{
		TraceID:        traceID,
		OrganizationID: organizationID,
		ProjectID:      projectID,
		Received:       received,
		Summary:        summary,
	}

	s = sentry.StartSpan(ctx, "processing")
	s.Description = "Send normalized trace notification to Kafka"
	err = env.sendNormalizedTraceMessage(ctx, report)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if env.sendReports {
		s = sentry.StartSpan(ctx, "processing")
		s.Description = "Forward report to insight service"
		err = env.insight.SendReport(ctx, report)
		s.Finish()
		if err != nil {
			// reporting is best effort, the trace is already stored
			hub.CaptureException(err)
		}
	}

	if env.statsInserter != nil {
		s = sentry.StartSpan(ctx, "processing")
		s.Description = "Record normalization stats"
		err = env.statsInserter.Put(ctx, newStatsRow(report))
		s.Finish()
		if err != nil {
			hub.CaptureException(err)
		}
	}

	s = sentry.StartSpan(ctx, "json.marshal")
	defer s.Finish()
	b, err := json.Marshal(PostTraceResponse{
		TraceID: traceID,
		Summary: summary,
	})
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (env *environment) getTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	organizationID, projectID, ok := pathIDs(w, r, hub)
	if !ok {
		return
	}
	ps := httprouter.ParamsFromContext(ctx)
	traceID := ps.ByName("trace_id")
	hub.Scope().SetTag("trace_id", traceID)

	var trace chrometrace.Trace
	s := sentry.StartSpan(ctx, "gcs.read")
	s.Description = "Read normalized trace from storage"
	err := storageutil.UnmarshalCompressed(
		ctx,
		env.tracesBucket,
		chrometrace.StoragePath(organizationID, projectID, traceID),
		&trace,
	)
	s.Finish()
	if err != nil {
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s = sentry.StartSpan(ctx, "json.marshal")
	defer s.Finish()
	b, err := json.Marshal(trace)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (env *environment) getRawTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	organizationID, projectID, ok := pathIDs(w, r, hub)
	if !ok {
		return
	}
	ps := httprouter.ParamsFromContext(ctx)
	traceID := ps.ByName("trace_id")
	hub.Scope().SetTag("trace_id", traceID)

	var raw json.RawMessage
	s := sentry.StartSpan(ctx, "gcs.read")
	s.Description = "Read raw trace from storage"
	err := storageutil.UnmarshalCompressed(
		ctx,
		env.tracesBucket,
		chrometrace.StoragePath(organizationID, projectID, traceID)+".raw",
		&raw,
	)
	s.Finish()
	if err != nil {
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

type TraceSummariesResponse struct {
	Summaries map[string]marker.Summary `json:"summaries"`
}

func (env *environment) getTraceSummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	organizationID, projectID, ok := pathIDs(w, r, hub)
	if !ok {
		return
	}

	params, logger, ok := httputil.GetRequiredQueryParameters(w, r, "trace_ids")
	if !ok {
		return
	}
	traceIDs := strings.Split(params["trace_ids"], ",")

	s := sentry.StartSpan(ctx, "gcs.read")
	s.Description = "Read stored normalization summaries"
	results := make(chan marker.SummaryReadJobResult, len(traceIDs))
	for _, traceID := range traceIDs {
		go marker.SummaryReadJob{
			Ctx:            ctx,
			Storage:        env.tracesBucket,
			OrganizationID: organizationID,
			ProjectID:      projectID,
			TraceID:        traceID,
			Result:         results,
		}.Read()
	}

	summaries := make(map[string]marker.Summary, len(traceIDs))
	for range traceIDs {
		result := <-results
		if result.Err != nil {
			if errors.Is(result.Err, storageutil.ErrObjectNotFound) {
				continue
			}
			hub.CaptureException(result.Err)
			continue
		}
		summaries[result.TraceID] = result.Summary
	}
	s.Finish()

	logger.Debug().Int("count", len(summaries)).Msg("trace summaries collected")

	s = sentry.StartSpan(ctx, "json.marshal")
	defer s.Finish()
	b, err := json.Marshal(TraceSummariesResponse{Summaries: summaries})
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func pathIDs(w http.ResponseWriter, r *http.Request, hub *sentry.Hub) (organizationID, projectID uint64, ok bool) {
	ps := httprouter.ParamsFromContext(r.Context())

	rawOrganizationID := ps.ByName("organization_id")
	organizationID, err := strconv.ParseUint(rawOrganizationID, 10, 64)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return 0, 0, false
	}

	rawProjectID := ps.ByName("project_id")
	projectID, err = strconv.ParseUint(rawProjectID, 10, 64)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusBadRequest)
		return 0, 0, false
	}

	hub.Scope().SetTags(map[string]string{
		"organization_id": rawOrganizationID,
		"project_id":      rawProjectID,
	})
	return organizationID, projectID, true
}
