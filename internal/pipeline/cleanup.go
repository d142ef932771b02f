// Package pipeline enforces the structural invariants picked waveform data
// must satisfy: per-channel merging, Z/ZNE composition checks, duplicate
// station suppression, demeaning, and the metadata completeness pass.
// Non-conforming groups are discarded with accumulated diagnostics; the
// pipeline itself only fails on configuration errors.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quakelab/seispick/internal/domain"
	"github.com/quakelab/seispick/internal/observability"
)

// Options configures a cleanup run.
type Options struct {
	// Merge is the explicit merge strategy applied after the always-on
	// contiguity merge.
	Merge domain.MergeStrategy
	// SuppressDemean skips the detrend/demean pass.
	SuppressDemean bool
	// NoMetadata disables the metadata completeness pass entirely.
	NoMetadata bool
}

// Discard reasons, used as metric labels.
const (
	reasonMixedIdentity     = "mixed_identity"
	reasonDuplicateIdentity = "duplicate_identity"
	reasonBadTraceCount     = "bad_trace_count"
	reasonLoneNonVertical   = "lone_non_vertical"
	reasonNotZNE            = "not_zne"
	reasonMissingMetadata   = "missing_metadata"
)

const mergeHintText = "IMPORTANT:\nYou can try the --merge option (safe or overwrite) " +
	"to avoid losing groups due to gaps/overlaps."

const compositionWarning = "Warning: all groups must have either one Z trace or a set of three ZNE traces."

// Cleaner runs the validation/merge/cleanup passes.
type Cleaner struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCleaner creates a Cleaner with the given observability.
func NewCleaner(logger *slog.Logger, metrics *observability.Metrics) *Cleaner {
	return &Cleaner{logger: logger, metrics: metrics}
}

// Cleanup reduces the given groups to those satisfying the picker's
// invariants and returns the accumulated warning text, the one-time
// merge-strategy hint (empty unless a group was lost to gaps/overlaps), and
// the accepted groups. Each group is either fully accepted or fully
// discarded; an unrecognized merge strategy is the only fatal error besides
// unexpected detrend failures.
func (c *Cleaner) Cleanup(groups []*domain.StreamGroup, opts Options) (warnings, mergeHint string, accepted []*domain.StreamGroup, err error) {
	diag := &domain.DiagnosticLog{}

	if err := c.mergeAll(groups, opts.Merge, diag); err != nil {
		return "", "", nil, err
	}

	for _, g := range groups {
		g.SortDescendingChannel()
	}

	accepted = c.validate(groups, diag)

	if !opts.SuppressDemean {
		if err := c.detrendAll(accepted, diag); err != nil {
			return "", "", nil, err
		}
	}

	return diag.Warnings(), diag.MergeHint(), accepted, nil
}

// mergeAll applies the always-on contiguity merge to every group, then the
// explicit strategy if one was selected.
func (c *Cleaner) mergeAll(groups []*domain.StreamGroup, strategy domain.MergeStrategy, diag *domain.DiagnosticLog) error {
	for _, g := range groups {
		g.CleanupMerge()
	}
	if strategy == domain.MergeNone {
		return nil
	}
	for _, g := range groups {
		interpolated, err := g.MergeWith(strategy)
		if err != nil {
			return err
		}
		if interpolated {
			diag.Warnf("Interpolated over gap(s) with less than 5 samples for station: %s", g.NetSta())
			c.metrics.GapInterpolations.Inc()
		}
	}
	return nil
}

// validate runs the accept/discard ladder over every group in order.
func (c *Cleaner) validate(groups []*domain.StreamGroup, diag *domain.DiagnosticLog) []*domain.StreamGroup {
	seen := make(map[string]bool)
	accepted := make([]*domain.StreamGroup, 0, len(groups))

	for _, g := range groups {
		if len(g.Traces) == 0 {
			continue
		}
		netSta := g.NetSta()

		if g.MixedIdentity() {
			diag.Warnf("Warning: group with a mix of stations/networks. Discarding group.")
			c.discard(reasonMixedIdentity)
			continue
		}
		if seen[netSta] {
			diag.Warnf("Warning: station/network combination %q already in group list. Discarding group.", netSta)
			c.discard(reasonDuplicateIdentity)
			continue
		}

		if n := len(g.Traces); n != 1 && n != 3 {
			if !c.recoverComposition(g, netSta, diag) {
				continue
			}
		} else if !c.checkComposition(g, netSta, diag) {
			continue
		}

		seen[netSta] = true
		accepted = append(accepted, g)
		c.metrics.GroupsAccepted.Inc()
	}
	return accepted
}

// recoverComposition handles groups whose trace count is neither 1 nor 3: it
// removes every channel whose component is not Z, N or E and retries. Returns
// true if the group is now acceptable.
func (c *Cleaner) recoverComposition(g *domain.StreamGroup, netSta string, diag *domain.DiagnosticLog) bool {
	diag.Warnf(compositionWarning)

	var removed []string
	kept := g.Traces[:0]
	for _, tr := range g.Traces {
		switch tr.Component() {
		case "Z", "N", "E":
			kept = append(kept, tr)
		default:
			removed = append(removed, tr.Channel)
		}
	}
	g.Traces = kept

	if n := len(g.Traces); n == 1 || n == 3 {
		diag.Warnf("Warning: deleted some unknown channels in group %s: %s", netSta, strings.Join(removed, " "))
		return c.checkComposition(g, netSta, diag)
	}

	diag.Warnf("Group %s discarded.\nReason: number of traces != (1 or 3)\n%s", netSta, g)
	diag.SetMergeHint(mergeHintText)
	c.discard(reasonBadTraceCount)
	return false
}

// checkComposition verifies a 1-trace group is vertical and a 3-trace group
// is ordered Z, N, E.
func (c *Cleaner) checkComposition(g *domain.StreamGroup, netSta string, diag *domain.DiagnosticLog) bool {
	if len(g.Traces) == 1 && g.Traces[0].Component() != "Z" {
		diag.Warnf("%s\nGroup %s discarded. Reason: exactly one trace present but this is no Z trace\n%s",
			compositionWarning, netSta, g)
		c.discard(reasonLoneNonVertical)
		return false
	}
	if len(g.Traces) == 3 &&
		(g.Traces[0].Component() != "Z" || g.Traces[1].Component() != "N" || g.Traces[2].Component() != "E") {
		diag.Warnf("%s\nGroup %s discarded. Reason: exactly three traces present but they are not ZNE\n%s",
			compositionWarning, netSta, g)
		c.discard(reasonNotZNE)
		return false
	}
	return true
}

// detrendAll demeans every accepted group. Masked samples downgrade to a
// diagnostic; any other failure is fatal.
func (c *Cleaner) detrendAll(groups []*domain.StreamGroup, diag *domain.DiagnosticLog) error {
	for _, g := range groups {
		if err := g.Detrend(); err != nil {
			if errors.Is(err, domain.ErrMaskedSamples) {
				diag.Warnf("Detrending/demeaning not possible for station (masked traces): %s", g.NetSta())
				continue
			}
			return fmt.Errorf("detrend group %s: %w", g.NetSta(), err)
		}
	}
	return nil
}

func (c *Cleaner) discard(reason string) {
	c.metrics.GroupsDiscarded.WithLabelValues(reason).Inc()
	c.logger.Warn("group discarded", "reason", reason)
}

// CleanupMetadata discards every group whose vertical trace lacks geographic
// coordinates or instrument response, and, for three-component groups, whose
// north/east traces lack a response. Probing is best effort: an absent field
// is simply "missing", never an error. A nil-op when metadata fetching was
// disabled.
func (c *Cleaner) CleanupMetadata(groups []*domain.StreamGroup, noMetadata bool) []*domain.StreamGroup {
	if noMetadata {
		return groups
	}
	accepted := make([]*domain.StreamGroup, 0, len(groups))
	for _, g := range groups {
		if !hasRequiredMetadata(g) {
			c.logger.Warn("missing metadata, discarding group", "station", g.NetSta())
			c.metrics.GroupsDiscarded.WithLabelValues(reasonMissingMetadata).Inc()
			continue
		}
		accepted = append(accepted, g)
	}
	return accepted
}

func hasRequiredMetadata(g *domain.StreamGroup) bool {
	vertical := g.Select("Z")
	if len(vertical) == 0 {
		return false
	}
	trZ := vertical[0]
	if trZ.Coordinates == nil || trZ.Response == nil {
		return false
	}
	if len(g.Traces) == 3 {
		for _, comp := range []string{"N", "E"} {
			traces := g.Select(comp)
			if len(traces) == 0 || traces[0].Response == nil {
				return false
			}
		}
	}
	return true
}
