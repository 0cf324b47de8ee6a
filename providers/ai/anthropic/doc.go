// Package anthropic implements ai.Provider for the Anthropic Messages API on
// top of the official anthropic-sdk-go client.
package anthropic
