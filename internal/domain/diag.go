package domain

import (
	"fmt"
	"strings"
)

// DiagnosticLog accumulates human-readable cleanup diagnostics. Warnings are
// append-only; the merge hint is set at most once per run, when a group was
// lost to gaps or overlaps that an explicit merge strategy would have
// recovered.
type DiagnosticLog struct {
	warnings  strings.Builder
	mergeHint string
}

// Warnf appends a formatted warning line.
func (d *DiagnosticLog) Warnf(format string, args ...any) {
	fmt.Fprintf(&d.warnings, format+"\n", args...)
}

// SetMergeHint records the one-time merge-strategy suggestion.
func (d *DiagnosticLog) SetMergeHint(hint string) {
	if d.mergeHint == "" {
		d.mergeHint = hint
	}
}

// Warnings returns the accumulated warning text.
func (d *DiagnosticLog) Warnings() string {
	return d.warnings.String()
}

// MergeHint returns the merge suggestion, or "" if none was triggered.
func (d *DiagnosticLog) MergeHint() string {
	return d.mergeHint
}
