// Package client sits between the provider backends and the workflow
// packages. A [Client] is immutable once built by [New]: it carries the
// default model, system prompt, generation settings, tools and middleware
// chain, while conversation state is always passed in explicitly.
//
// One-shot prompts go through [Client.SendMessage]; callers that own a history
// use [Client.Send], or [Client.RunTools] when the model may call tools.
// [StructuredClient] decodes responses into a Go type.
package client
