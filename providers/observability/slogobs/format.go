package slogobs

import "strings"

// Format represents the output format for logs.
type Format string

const (
	// FormatCompact is one line per record with JSON attributes, the console
	// default.
	// Example: 2025-11-03 10:40:35  INFO stage completed -> {"stage":"01_domain_identifier"}
	FormatCompact Format = "compact"

	// FormatPretty puts each attribute on its own indented line.
	FormatPretty Format = "pretty"

	// FormatJSON is one JSON object per line, used for logs/workflow.log.
	// Example: {"time":"2025-11-03T10:40:35","level":"INFO","msg":"stage completed","stage":"..."}
	FormatJSON Format = "json"
)

// ParseFormat parses a format name. Unknown names map to FormatCompact.
func ParseFormat(s string) Format {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "pretty":
		return FormatPretty
	case "json":
		return FormatJSON
	default:
		return FormatCompact
	}
}

// FormatFromEnv resolves GRAPHYTE_LOG_FORMAT, then LOG_FORMAT.
func FormatFromEnv(lookup Lookup) Format {
	return ParseFormat(lookup.first(EnvLogFormat, "LOG_FORMAT"))
}

func (f Format) String() string {
	return string(f)
}
