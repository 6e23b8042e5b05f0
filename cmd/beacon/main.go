package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/perfwatch/beacon/internal/httputil"
	"github.com/perfwatch/beacon/internal/insightutil"
	"github.com/perfwatch/beacon/internal/logutil"
	"github.com/perfwatch/beacon/internal/storageprovider"
	"github.com/perfwatch/beacon/internal/storageutil"
)

type environment struct {
	config ServiceConfig

	insight     insightutil.Client
	sendReports bool

	normalizedWriter *kafka.Writer
	statsInserter    *bigquery.Inserter

	storage      *storage.Client
	tracesBucket storageutil.ObjectHandler
}

var release string

func newEnvironment() (*environment, error) {
	var e environment
	if err := cleanenv.ReadEnv(&e.config); err != nil {
		return nil, err
	}

	ctx := context.Background()
	var err error
	e.storage, err = storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	e.tracesBucket = &storageprovider.Gcs{
		BucketHandle: e.storage.Bucket(e.config.TracesBucket),
	}

	if e.config.InsightHost != "" {
		e.insight, err = insightutil.NewClient(e.config.InsightHost)
		if err != nil {
			return nil, err
		}
		e.sendReports = true
	}

	if e.config.Environment == "production" && e.config.BigQueryProjectID != "" {
		bqClient, err := bigquery.NewClient(ctx, e.config.BigQueryProjectID)
		if err != nil {
			return nil, err
		}
		e.statsInserter = bqClient.
			Dataset(e.config.BigQueryDataset).
			Table(e.config.BigQueryTable).
			Inserter()
	}

	e.normalizedWriter = &kafka.Writer{
		Addr:         kafka.TCP(e.config.KafkaBrokers...),
		Async:        true,
		Balancer:     kafka.CRC32Balancer{},
		BatchSize:    100,
		Compression:  kafka.Lz4,
		ReadTimeout:  3 * time.Second,
		Topic:        e.config.NormalizedTraceTopic,
		WriteTimeout: 3 * time.Second,
	}
	return &e, nil
}

func (e *environment) shutdown() {
	err := e.storage.Close()
	if err != nil {
		sentry.CaptureException(err)
	}
	err = e.normalizedWriter.Close()
	if err != nil {
		sentry.CaptureException(err)
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", e.getHealth},
		{http.MethodGet, "/organizations/:organization_id/projects/:project_id/traces", e.getTraceSummaries},
		{http.MethodGet, "/organizations/:organization_id/projects/:project_id/traces/:trace_id", e.getTrace},
		{http.MethodGet, "/organizations/:organization_id/projects/:project_id/traces/:trace_id/raw", e.getRawTrace},
		{http.MethodPost, "/organizations/:organization_id/projects/:project_id/traces", e.postTrace},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.DecompressPayload(route.handler)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func main() {
	logutil.ConfigureLogger()

	env, err := newEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:                   env.config.SentryDSN,
		EnableTracing:         true,
		Environment:           env.config.Environment,
		Release:               release,
		TracesSampleRate:      1.0,
		BeforeSendTransaction: httputil.SetHTTPStatusCodeTag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    fmt.Sprintf(":%d", env.config.Port),
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown

	// Shutdown the rest of the environment after the HTTP connections are closed
	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
