// Package fdsn is the client for the web-based waveform and metadata
// service. Waveforms come back as tracejson payloads; station listings use
// the pipe-separated text format so wildcarded station codes can be expanded
// before fetching.
package fdsn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quakelab/seispick/internal/codec/tracejson"
	"github.com/quakelab/seispick/internal/domain"
)

// SourceName tags traces fetched through this client.
const SourceName = "fdsnws"

const timeLayout = "2006-01-02T15:04:05.000000"

// Client queries the web data service.
type Client struct {
	http            *resty.Client
	baseURL         string
	includeMetadata bool
	logger          *slog.Logger
}

// NewClient creates a client for the service at server:port, authenticating
// with the given credentials. When includeMetadata is set, waveform requests
// ask the server to inline station coordinates and instrument responses.
func NewClient(server string, port int, user, password string, timeout time.Duration, includeMetadata bool, logger *slog.Logger) *Client {
	http := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	if user != "" {
		http.SetBasicAuth(user, password)
	}
	return &Client{
		http:            http,
		baseURL:         fmt.Sprintf("http://%s:%d/fdsnws", server, port),
		includeMetadata: includeMetadata,
		logger:          logger,
	}
}

// SetBaseURL overrides the service URL, for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// StationCodes lists the station codes available for a network, in the
// service's pipe-separated text format.
func (c *Client) StationCodes(ctx context.Context, network string) ([]string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"network": network,
			"level":   "station",
			"format":  "text",
		}).
		Get(c.baseURL + "/station/1/query")
	if err != nil {
		return nil, fmt.Errorf("fdsn station query: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fdsn station query: status %d: %s", resp.StatusCode(), resp.String())
	}
	return parseStationText(resp.String()), nil
}

// parseStationText extracts the station code column from lines like
// "BW|RJOB|47.737|12.795|860.0|...". Comment lines start with '#'.
func parseStationText(body string) []string {
	var codes []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}
		codes = append(codes, strings.TrimSpace(fields[1]))
	}
	return codes
}

// Waveform fetches all traces for one channel selection in the given window.
func (c *Client) Waveform(ctx context.Context, network, station, location, channel string, start, end time.Time) ([]*domain.Trace, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"network":   network,
			"station":   station,
			"location":  location,
			"channel":   channel,
			"starttime": start.UTC().Format(timeLayout),
			"endtime":   end.UTC().Format(timeLayout),
		})
	if c.includeMetadata {
		req.SetQueryParam("metadata", "true")
	}

	resp, err := req.Get(c.baseURL + "/dataselect/1/query")
	if err != nil {
		return nil, fmt.Errorf("fdsn waveform query: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fdsn waveform query: status %d: %s", resp.StatusCode(), resp.String())
	}

	traces, err := tracejson.Decode(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("fdsn waveform payload: %w", err)
	}
	for _, tr := range traces {
		tr.Format = SourceName
	}
	return traces, nil
}
