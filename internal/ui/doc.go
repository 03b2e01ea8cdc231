// Package ui renders the one-shot terminal output of the autoconnect CLI:
// command headers, outcome boxes, and the results table and log tail of a
// status document.
//
// Output is styled with Lipgloss and written through a Printer, so commands
// never format text themselves. The interactive view lives in the monitor
// package and reuses the styles defined here.
//
// Zap logging stays silent unless AUTOCONNECT_LOG_LEVEL is set, which keeps
// this output readable.
package ui
