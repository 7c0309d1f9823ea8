// Package cost estimates what a run spent on model calls.
//
// Prices are kept in a [Table] of [ModelCost] entries in USD per million
// tokens. [DefaultTable] carries list prices for the OpenAI models graphyte
// is usually run with; configuration can add or override entries. The
// estimate is informational: providers bill from their own counters.
package cost
