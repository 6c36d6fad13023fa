// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Lifecycle events and queued messages carry these identifiers; callers treat
// them as opaque strings.
package idgen
