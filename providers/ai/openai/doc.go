// Package openai implements the ai.Provider interface for OpenAI-compatible
// chat completions APIs.
//
// Structured answers are requested through response_format json_schema when
// the endpoint supports it. Hosts without structured outputs (older Ollama
// builds, some proxies) fall back to json_object mode with the schema appended
// to the system prompt; the caller's decoder validates either way.
//
// The main entry point is [New], which reads OPENAI_API_KEY and
// OPENAI_API_BASE_URL from the environment.
package openai
