// Package duckduckgo exposes the DuckDuckGo Instant Answer API as a chat tool.
// The API is public and needs no key; results are summarized into a short text
// the model can quote.
package duckduckgo
