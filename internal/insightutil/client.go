package insightutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gojek/heimdall/v7/httpclient"

	"github.com/perfwatch/beacon/internal/marker"
	"github.com/perfwatch/beacon/internal/timeutil"
)

type (
	// Client talks to the downstream insight service, which computes
	// higher-level performance metrics from normalized traces.
	Client struct {
		url  string
		http *httpclient.Client
	}

	// TraceReport is what we forward per normalized trace.
	TraceReport struct {
		TraceID        string         `json:"trace_id"`
		OrganizationID uint64         `json:"organization_id"`
		ProjectID      uint64         `json:"project_id"`
		Received       timeutil.Time  `json:"received"`
		Summary        marker.Summary `json:"summary"`
	}

	ErrorResponse struct {
		Error Error `json:"error"`
	}

	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
)

func NewClient(host string) (Client, error) {
	if host == "" {
		return Client{}, errors.New("host must be set")
	}
	return Client{
		url: fmt.Sprintf("%s/reports", host),
		http: httpclient.NewClient(
			httpclient.WithHTTPTimeout(10*time.Second),
			httpclient.WithRetryCount(2),
		),
	}, nil
}

func (c Client) URL() string {
	return c.url
}

// SendReport posts the report to the insight service.
func (c *Client) SendReport(ctx context.Context, report TraceReport) error {
	span := sentry.StartSpan(ctx, "http.client")
	span.Description = "Send trace report"
	defer span.Finish()

	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	headers := make(http.Header)
	headers.Set("content-type", "application/json")
	headers.Set("sentry-trace", span.ToSentryTrace())
	headers.Set("referer", "api.beacon")
	resp, err := c.http.Post(c.url, bytes.NewReader(body), headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode <= 599 {
		var errResponse ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResponse)
		return fmt.Errorf(
			"error while sending trace report. http status: %d, type: %s, message: %s",
			resp.StatusCode,
			errResponse.Error.Type,
			errResponse.Error.Message,
		)
	}
	return nil
}
