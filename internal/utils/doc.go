// Package utils provides shared low-level helpers for the graphyte internals:
// the JSON POST round trip used by providers, string helpers for logs and
// console output, a pointer helper and a simple elapsed-time timer.
package utils
