// Package config defines the command-line option schema of the picker's
// support tooling and its validation rules. Server credentials fall back to
// environment variables so they can live in a .env file instead of shell
// history.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quakelab/seispick/internal/domain"
)

// Time layout accepted by --time, e.g. "2010-01-10T05:00:00".
const timeLayout = "2006-01-02T15:04:05"

// Options holds every command-line switch.
type Options struct {
	// Acquisition window.
	Time        string  // start time of the seismogram to retrieve
	Duration    float64 // seconds
	StartOffset float64 // seconds added to Time, may be negative

	// Local sources.
	Files         []string // waveform files
	MetadataFiles []string // metadata lookup tables for local waveforms

	// Web data service.
	FDSNIDs      []string // NET.STA.LOC.CHA, station wildcards allowed
	FDSNServer   string
	FDSNPort     int
	FDSNUser     string
	FDSNPassword string
	FDSNTimeout  time.Duration

	// Streaming archive server.
	ArchiveIDs         []string // NET.STA.LOC.CHA
	ArchiveServer      string
	ArchivePort        int
	ArchiveUser        string
	ArchiveInstitution string
	ArchiveTimeout     time.Duration

	// Cleanup behavior.
	Merge          domain.MergeStrategy
	NoZeroMean     bool
	NoMetadata     bool
	IgnoreChecksum bool

	// External programs.
	PluginPath   string
	ProgramsFile string

	// Runtime.
	Verbosity   string
	LogFormat   string
	MetricsAddr string
	ShowKeys    bool
}

// Load parses the given argument list (without the program name) into
// Options and validates them.
func Load(args []string) (*Options, error) {
	opts := &Options{}
	var files, metadataFiles, fdsnIDs, archiveIDs, merge string

	fs := flag.NewFlagSet("seispick", flag.ContinueOnError)
	fs.StringVar(&opts.Time, "time", "", "start time of seismogram to retrieve, e.g. 2010-01-10T05:00:00")
	fs.Float64Var(&opts.Duration, "duration", 0, "duration of seismogram in seconds")
	fs.Float64Var(&opts.StartOffset, "starttime-offset", 0, "offset added to the start time in seconds, may be negative")
	fs.StringVar(&files, "files", "", "local waveform files, comma separated")
	fs.StringVar(&metadataFiles, "metadata-files", "", "local metadata lookup tables for waveform files, comma separated")

	fs.StringVar(&fdsnIDs, "fdsn-ids", "", "ids to retrieve from the web data service, e.g. 'BW.RJOB..EH*,BW.RM?*..EH*'")
	fs.StringVar(&opts.FDSNServer, "fdsn-server", "teide", "hostname of the web data service")
	fs.IntVar(&opts.FDSNPort, "fdsn-port", 8080, "port of the web data service")
	fs.StringVar(&opts.FDSNUser, "fdsn-user", envOrDefault("FDSN_USER", "seispick"), "username for the web data service")
	fs.StringVar(&opts.FDSNPassword, "fdsn-password", os.Getenv("FDSN_PASSWORD"), "password for the web data service")
	fs.DurationVar(&opts.FDSNTimeout, "fdsn-timeout", 10*time.Second, "timeout for the web data service")

	fs.StringVar(&archiveIDs, "archive-ids", "", "ids to retrieve from the archive server, e.g. 'BW.RJOB..EH*'")
	fs.StringVar(&opts.ArchiveServer, "archive-server", "webdc.eu", "hostname of the archive server")
	fs.IntVar(&opts.ArchivePort, "archive-port", 18001, "port of the archive server")
	fs.StringVar(&opts.ArchiveUser, "archive-user", envOrDefault("ARCHIVE_USER", "Anonymous"), "username for the archive server")
	fs.StringVar(&opts.ArchiveInstitution, "archive-institution", "Anonymous", "institution reported to the archive server")
	fs.DurationVar(&opts.ArchiveTimeout, "archive-timeout", 20*time.Second, "timeout for the archive server")

	fs.StringVar(&merge, "merge", "", `merge strategy applied after fetching: "safe" discards overlaps completely, "overwrite" prefers the later trace; without it, gapped streams get discarded`)
	fs.BoolVar(&opts.NoZeroMean, "no-zero-mean", false, "deactivate offset removal of traces")
	fs.BoolVar(&opts.NoMetadata, "no-metadata", false, "deactivate fetching/attaching metadata for waveforms")
	fs.BoolVar(&opts.IgnoreChecksum, "ignore-checksum", false, "deactivate sample checksum verification for local waveform files")

	fs.StringVar(&opts.PluginPath, "plugin-path", "/baysoft/seispick/", "directory containing the external program folders; contents are copied to a scratch directory, links preserved")
	fs.StringVar(&opts.ProgramsFile, "programs-file", "", "YAML file overriding external program file names")

	fs.StringVar(&opts.Verbosity, "verbosity", "normal", "log verbosity: quiet, normal, verbose or debug")
	fs.StringVar(&opts.LogFormat, "log-format", "text", "log output format: text or json")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address, e.g. :9100 (disabled when empty)")
	fs.BoolVar(&opts.ShowKeys, "keys", false, "print keybindings and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.Files = splitList(files)
	opts.MetadataFiles = splitList(metadataFiles)
	opts.FDSNIDs = splitList(fdsnIDs)
	opts.ArchiveIDs = splitList(archiveIDs)

	strategy, err := domain.ParseMergeStrategy(merge)
	if err != nil {
		return nil, err
	}
	opts.Merge = strategy

	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) validate() error {
	switch o.Verbosity {
	case "quiet", "normal", "verbose", "debug":
	default:
		return fmt.Errorf("unknown verbosity %q", o.Verbosity)
	}
	switch o.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", o.LogFormat)
	}

	if o.hasSources() {
		if o.Time == "" {
			return errors.New("--time is required when fetching data")
		}
		if _, err := time.Parse(timeLayout, o.Time); err != nil {
			return fmt.Errorf("invalid --time: %w", err)
		}
		if o.Duration <= 0 {
			return errors.New("--duration must be positive when fetching data")
		}
	}
	return nil
}

func (o *Options) hasSources() bool {
	return len(o.Files) > 0 || len(o.FDSNIDs) > 0 || len(o.ArchiveIDs) > 0
}

// Window returns the requested acquisition time span, with the start offset
// applied. Call only after successful validation.
func (o *Options) Window() (start, end time.Time, err error) {
	start, err = time.Parse(timeLayout, o.Time)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --time: %w", err)
	}
	start = start.UTC().Add(time.Duration(o.StartOffset * float64(time.Second)))
	end = start.Add(time.Duration(o.Duration * float64(time.Second)))
	return start, end, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
