// Package acquire orchestrates waveform and metadata retrieval from local
// files and the two remote data servers. Retrieval is sequential and
// best-effort: a failing station identifier is logged and skipped, never
// retried, and never aborts the run.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path"
	"strings"
	"time"

	"github.com/quakelab/seispick/internal/codec/tracejson"
	"github.com/quakelab/seispick/internal/domain"
	"github.com/quakelab/seispick/internal/observability"
)

// WaveformClient fetches the traces for one channel selection.
type WaveformClient interface {
	Waveform(ctx context.Context, network, station, location, channel string, start, end time.Time) ([]*domain.Trace, error)
}

// StationLister expands wildcarded station codes against the server's
// inventory.
type StationLister interface {
	StationCodes(ctx context.Context, network string) ([]string, error)
}

// Fetcher pulls waveforms from every configured source and groups them per
// station.
type Fetcher struct {
	FDSN       WaveformClient
	FDSNLister StationLister
	Archive    WaveformClient
	Files      []string
	FDSNIDs    []string
	ArchiveIDs []string
	Metadata   *MetadataLookup
	NoMetadata bool
	// IgnoreChecksum skips sample checksum verification on local files.
	IgnoreChecksum bool
	Start          time.Time
	End            time.Time

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Fetch retrieves all configured data. The returned groups preserve
// first-seen station order: local files first, then the web service, then
// the archive.
func (f *Fetcher) Fetch(ctx context.Context) ([]*domain.StreamGroup, error) {
	var traces []*domain.Trace

	local, err := f.readLocalFiles()
	if err != nil {
		return nil, err
	}
	traces = append(traces, local...)

	fetched := make(map[string]bool)
	for _, tr := range local {
		fetched[tr.Network+"."+tr.Station] = true
	}

	traces = append(traces, f.fetchRemote(ctx, "fdsn", f.FDSN, f.FDSNLister, f.FDSNIDs, fetched)...)
	traces = append(traces, f.fetchRemote(ctx, "archive", f.Archive, nil, f.ArchiveIDs, fetched)...)

	return domain.GroupByStation(traces), nil
}

// readLocalFiles decodes every configured waveform file, windows it to the
// requested span and attaches metadata from the local lookup tables. A
// missing or unreadable file is fatal: local paths were given explicitly.
func (f *Fetcher) readLocalFiles() ([]*domain.Trace, error) {
	var out []*domain.Trace
	for _, file := range f.Files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read waveform file: %w", err)
		}
		traces, err := tracejson.DecodeVerify(data, !f.IgnoreChecksum)
		if err != nil {
			return nil, fmt.Errorf("decode waveform file %s: %w", file, err)
		}
		for _, tr := range traces {
			tr.Trim(f.Start, f.End)
			if len(tr.Samples) == 0 {
				f.Logger.Warn("no samples inside requested window", "file", file, "trace", tr.ID())
				continue
			}
			tr.FetchedAt = domain.Now()
			if !f.NoMetadata && f.Metadata != nil {
				f.Metadata.Apply(tr)
			}
			if tr.Format == tracejson.FormatLegacyGSE {
				f.applyLegacyCalibration(tr)
			}
			out = append(out, tr)
			f.Metrics.TracesFetched.WithLabelValues("file").Inc()
		}
	}
	return out, nil
}

// fetchRemote walks a comma-split identifier list, expanding station
// wildcards where the source supports it, skipping stations already fetched
// and downgrading fetch failures to warnings.
func (f *Fetcher) fetchRemote(ctx context.Context, source string, client WaveformClient, lister StationLister, ids []string, fetched map[string]bool) []*domain.Trace {
	if client == nil || len(ids) == 0 {
		return nil
	}
	var out []*domain.Trace
	for _, id := range ids {
		network, station, location, channel, err := splitID(id)
		if err != nil {
			f.Logger.Warn("skipping malformed identifier", "source", source, "id", id, "error", err)
			continue
		}

		stations := []string{station}
		if lister != nil && strings.ContainsAny(station, "*?[") {
			stations, err = f.expandStations(ctx, lister, network, station)
			if err != nil {
				f.Logger.Warn("station expansion failed, skipping identifier", "source", source, "id", id, "error", err)
				f.Metrics.FetchErrors.WithLabelValues(source).Inc()
				continue
			}
		}

		for _, sta := range stations {
			netSta := network + "." + sta
			if fetched[netSta] {
				f.Logger.Info("station already retrieved, skipping", "station", netSta)
				continue
			}

			begin := time.Now()
			traces, err := client.Waveform(ctx, network, sta, location, channel, f.Start, f.End)
			f.Metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(begin).Seconds())
			if err != nil {
				f.Logger.Warn("station skipped", "station", netSta, "source", source, "error", err)
				f.Metrics.FetchErrors.WithLabelValues(source).Inc()
				continue
			}
			if len(traces) == 0 {
				f.Logger.Warn("station returned no data, skipping", "station", netSta, "source", source)
				continue
			}

			fetched[netSta] = true
			for _, tr := range traces {
				tr.FetchedAt = domain.Now()
				out = append(out, tr)
			}
			f.Metrics.TracesFetched.WithLabelValues(source).Add(float64(len(traces)))
			f.Logger.Info("station fetched", "station", netSta, "source", source, "traces", len(traces))
		}
	}
	return out
}

// expandStations matches a wildcarded station code against the server's
// inventory for the network.
func (f *Fetcher) expandStations(ctx context.Context, lister StationLister, network, pattern string) ([]string, error) {
	codes, err := lister.StationCodes(ctx, network)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, code := range codes {
		ok, err := path.Match(pattern, code)
		if err != nil {
			return nil, fmt.Errorf("bad station pattern %q: %w", pattern, err)
		}
		if ok {
			matched = append(matched, code)
		}
	}
	return matched, nil
}

// splitID parses a "NET.STA.LOC.CHA" identifier.
func splitID(id string) (network, station, location, channel string, err error) {
	parts := strings.Split(strings.TrimSpace(id), ".")
	if len(parts) != 4 {
		return "", "", "", "", fmt.Errorf("identifier %q is not NET.STA.LOC.CHA", id)
	}
	return parts[0], parts[1], parts[2], parts[3], nil
}

// applyLegacyCalibration folds the GSE2 calib/calper calibration into the
// overall sensitivity. Not valid for accelerometer data. Failure is logged
// and the trace kept as-is, matching the tolerant behavior picky users
// expect for legacy files.
func (f *Fetcher) applyLegacyCalibration(tr *domain.Trace) {
	if tr.Response == nil || tr.Response.Calib == 0 || tr.Response.CalPer == 0 {
		f.Logger.Warn("failed to apply legacy calibration, continuing", "trace", tr.ID())
		return
	}
	calibration := tr.Response.Calib * (2 * math.Pi / tr.Response.CalPer) * 1e-9
	if calibration == 0 || math.IsNaN(calibration) || math.IsInf(calibration, 0) {
		f.Logger.Warn("failed to apply legacy calibration, continuing", "trace", tr.ID())
		return
	}
	tr.Response.Sensitivity /= calibration
}
