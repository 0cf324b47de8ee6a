// Package openai implements ai.Provider for OpenAI-compatible chat completion
// endpoints using the official openai-go SDK. The default endpoint is the
// Hugging Face router, which serves open models such as Llama behind the same
// API.
package openai
