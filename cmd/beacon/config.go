package main

type ServiceConfig struct {
	Environment string `env:"BEACON_ENVIRONMENT" env-default:"development"`
	Port        int    `env:"PORT" env-default:"8080"`

	SentryDSN string `env:"SENTRY_DSN"`

	TracesBucket string `env:"TRACES_BUCKET" env-default:"perfwatch-traces"`

	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	NormalizedTraceTopic string   `env:"NORMALIZED_TRACE_TOPIC" env-default:"normalized-traces"`

	InsightHost string `env:"INSIGHT_HOST"`

	BigQueryProjectID string `env:"BIGQUERY_PROJECT_ID"`
	BigQueryDataset   string `env:"BIGQUERY_DATASET" env-default:"traces"`
	BigQueryTable     string `env:"BIGQUERY_TABLE" env-default:"normalizations"`
}
