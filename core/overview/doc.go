// Package overview keeps a per-run ledger of model usage.
//
// One [Overview] is attached to the run context with [Overview.ToContext];
// the client records every request into it, including the ones issued
// concurrently by fan-out branches. [Overview.Summary] produces the totals
// printed at the end of a run and stored in the run history.
package overview
