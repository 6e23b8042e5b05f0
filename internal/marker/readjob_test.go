package marker

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/perfwatch/beacon/internal/storageprovider"
	"github.com/perfwatch/beacon/internal/storageutil"
	"github.com/perfwatch/beacon/internal/testutil"
)

func TestSummaryStoragePath(t *testing.T) {
	got := SummaryStoragePath(1, 2, "ab2634ed-8b88-45d5-a8e1-cbd9e573c74e")
	want := "1/2/ab2634ed8b8845d5a8e1cbd9e573c74e.summary"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSummaryReadJob(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true))
	if err != nil {
		t.Fatalf("couldn't create an in-memory badgerdb: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	provider := &storageprovider.Badger{DB: db}
	traceID := uuid.New().String()

	// the summary recorded at ingest time, not one recomputed from the
	// already-normalized trace
	stored := Summary{
		EventsIn:        5,
		EventsOut:       4,
		MarkersRemoved:  2,
		MarkerTimestamp: 5,
		DominantContext: &Context{ProcessID: 1, ThreadID: 1, FrameID: "F1"},
		ActivityCount:   2,
	}
	err = storageutil.CompressedWrite(ctx, provider, SummaryStoragePath(1, 2, traceID), stored)
	if err != nil {
		t.Fatalf("we should be able to write: %v", err)
	}

	results := make(chan SummaryReadJobResult, 1)
	SummaryReadJob{
		Ctx:            ctx,
		Storage:        provider,
		OrganizationID: 1,
		ProjectID:      2,
		TraceID:        traceID,
		Result:         results,
	}.Read()

	result := <-results
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.TraceID != traceID {
		t.Fatalf("expected trace ID %q, got %q", traceID, result.TraceID)
	}
	if diff := testutil.Diff(stored, result.Summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryReadJobMissingObject(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true))
	if err != nil {
		t.Fatalf("couldn't create an in-memory badgerdb: %v", err)
	}
	defer db.Close()

	results := make(chan SummaryReadJobResult, 1)
	SummaryReadJob{
		Ctx:            context.Background(),
		Storage:        &storageprovider.Badger{DB: db},
		OrganizationID: 1,
		ProjectID:      2,
		TraceID:        uuid.New().String(),
		Result:         results,
	}.Read()

	result := <-results
	if !errors.Is(result.Error(), storageutil.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", result.Error())
	}
}
