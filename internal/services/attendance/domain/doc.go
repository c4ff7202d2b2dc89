// Package domain holds the pure attendance and eligibility model: normalized
// names, attendance log keys, rollover-aware streak counting, ledger records,
// the typed site configuration schema, and the payback and settlement math.
//
// Nothing in this package performs I/O. Orchestration that touches storage
// lives in the autoattend and summary packages.
package domain
