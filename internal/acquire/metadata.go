package acquire

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/quakelab/seispick/internal/domain"
)

// MetadataLookup resolves station coordinates and instrument responses for
// local waveform files from JSON lookup tables, the local stand-in for the
// station inventories the remote services inline.
type MetadataLookup struct {
	entries []metadataEntry
}

type metadataEntry struct {
	Network     string              `json:"network"`
	Station     string              `json:"station"`
	Channel     string              `json:"channel"` // glob pattern, empty matches all
	Coordinates *domain.Coordinates `json:"coordinates,omitempty"`
	Response    *domain.Response    `json:"response,omitempty"`
}

type metadataFile struct {
	Channels []metadataEntry `json:"channels"`
}

// LoadMetadata reads one or more metadata table files. Earlier files take
// precedence when several entries match a channel.
func LoadMetadata(files []string) (*MetadataLookup, error) {
	lookup := &MetadataLookup{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read metadata file: %w", err)
		}
		var mf metadataFile
		if err := json.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("decode metadata file %s: %w", file, err)
		}
		lookup.entries = append(lookup.entries, mf.Channels...)
	}
	return lookup, nil
}

// Apply attaches coordinates and response from the first matching entry,
// leaving fields the trace already carries untouched. A trace with no
// matching entry is left as-is; the metadata completeness pass decides its
// fate later.
func (m *MetadataLookup) Apply(tr *domain.Trace) {
	for _, e := range m.entries {
		if e.Network != tr.Network || e.Station != tr.Station {
			continue
		}
		if e.Channel != "" {
			if ok, err := path.Match(e.Channel, tr.Channel); err != nil || !ok {
				continue
			}
		}
		if tr.Coordinates == nil && e.Coordinates != nil {
			coords := *e.Coordinates
			tr.Coordinates = &coords
		}
		if tr.Response == nil && e.Response != nil {
			resp := *e.Response
			tr.Response = &resp
		}
		return
	}
}
