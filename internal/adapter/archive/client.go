// Package archive is the client for the dedicated streaming-archive
// protocol: a line-oriented TCP exchange that answers one waveform request
// per connection with a length-prefixed tracejson payload.
package archive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/quakelab/seispick/internal/codec/tracejson"
	"github.com/quakelab/seispick/internal/domain"
)

// SourceName tags traces fetched through this client.
const SourceName = "archive"

// Client speaks the archive request protocol.
type Client struct {
	addr        string
	user        string
	institution string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewClient creates a client for the archive server at server:port.
func NewClient(server string, port int, user, institution string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		addr:        net.JoinHostPort(server, strconv.Itoa(port)),
		user:        user,
		institution: institution,
		timeout:     timeout,
		logger:      logger,
	}
}

// Waveform requests all traces for one channel selection. The request line is
//
//	GET <user> <institution> <net>.<sta>.<loc>.<cha> <start> <end>
//
// answered with "OK <nbytes>" and a tracejson payload, or "ERROR <message>".
func (c *Client) Waveform(ctx context.Context, network, station, location, channel string, start, end time.Time) ([]*domain.Trace, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("archive dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if c.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("archive deadline: %w", err)
		}
	}

	selection := strings.Join([]string{network, station, location, channel}, ".")
	request := fmt.Sprintf("GET %s %s %s %s %s\n",
		c.user, c.institution, selection,
		start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	if _, err := io.WriteString(conn, request); err != nil {
		return nil, fmt.Errorf("archive request: %w", err)
	}

	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("archive status line: %w", err)
	}
	status = strings.TrimSpace(status)

	switch {
	case strings.HasPrefix(status, "ERROR"):
		return nil, fmt.Errorf("archive server: %s", strings.TrimSpace(strings.TrimPrefix(status, "ERROR")))
	case strings.HasPrefix(status, "OK "):
		// fall through to payload read
	default:
		return nil, fmt.Errorf("archive server: unexpected status %q", status)
	}

	size, err := strconv.Atoi(strings.TrimPrefix(status, "OK "))
	if err != nil || size < 0 {
		return nil, fmt.Errorf("archive server: bad payload size in %q", status)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, fmt.Errorf("archive payload: %w", err)
	}

	traces, err := tracejson.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("archive payload: %w", err)
	}
	for _, tr := range traces {
		tr.Format = SourceName
	}
	return traces, nil
}
