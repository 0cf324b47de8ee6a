// Package ai holds the provider-neutral request, response and streaming types
// shared by every chat backend in this module.
//
// A backend implements [Provider]; backends that can stream tokens also
// implement [StreamProvider]. Callers normally go through core/client rather
// than using a Provider directly.
package ai
