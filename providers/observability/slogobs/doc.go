// Package slogobs provides an observability.Provider implementation backed by
// log/slog.
//
// Spans and log records carry the trace id of the enclosing
// [observability.InTrace] block, so a run can be followed across the console
// and the log file. Counters and histograms are logged at DEBUG and, when
// [WithMetrics] is given, forwarded to a real metrics backend.
//
// The main entry point is [New]. Format and level come from
// GRAPHYTE_LOG_FORMAT and GRAPHYTE_LOG_LEVEL unless [WithEnv], [WithFormat]
// or [WithLevel] say otherwise. [OpenLogFile] plus [WithTee] copies every
// record to a JSON log file.
package slogobs
