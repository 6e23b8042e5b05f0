package marker

import (
	"context"

	"github.com/perfwatch/beacon/internal/chrometrace"
	"github.com/perfwatch/beacon/internal/storageutil"
)

// SummaryStoragePath returns the object name under which the normalization
// summary of a trace is stored, next to the trace itself.
func SummaryStoragePath(organizationID, projectID uint64, traceID string) string {
	return chrometrace.StoragePath(organizationID, projectID, traceID) + ".summary"
}

type (
	// SummaryReadJob fetches the stored normalization summary of one trace
	// and sends the outcome on Result. Jobs are meant to be spread over a
	// pool of goroutines when a request needs several summaries at once.
	SummaryReadJob struct {
		Ctx            context.Context
		Storage        storageutil.ObjectHandler
		OrganizationID uint64
		ProjectID      uint64
		TraceID        string
		Result         chan<- SummaryReadJobResult
	}

	SummaryReadJobResult struct {
		Err     error
		Summary Summary
		TraceID string
	}
)

func (job SummaryReadJob) Read() {
	var summary Summary

	err := storageutil.UnmarshalCompressed(
		job.Ctx,
		job.Storage,
		SummaryStoragePath(job.OrganizationID, job.ProjectID, job.TraceID),
		&summary,
	)

	job.Result <- SummaryReadJobResult{
		Err:     err,
		Summary: summary,
		TraceID: job.TraceID,
	}
}

func (result SummaryReadJobResult) Error() error {
	return result.Err
}
