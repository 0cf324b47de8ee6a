// Package gemini implements ai.Provider for the Gemini API through the
// google.golang.org/genai SDK.
package gemini
