// Package overview accumulates what a run spent: model calls, failures, token
// usage and tool calls requested by the model. An Overview travels in the
// context and is filled by middleware.NewOverviewMiddleware, so nested
// workflows and parallel graph nodes all report into the same instance.
package overview
