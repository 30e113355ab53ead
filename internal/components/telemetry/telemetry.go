// Package telemetry is how components report what happened to them without
// depending on a logger, which keeps every report assertable in tests.
package telemetry

import (
	"fmt"
)

// API receives the reports of a component.
//
// Ids name the component and the operation that reported, as
// `<struct or interface>.<method>`: lowercase, dashes inside a name
// (`http-client.fetch`). Wrapping the API in a ScopedAPI prefixes the
// package, so the id only has to be unique within it. Details such as the
// page path or the offending cell go into params, never into the id.
type API interface {
	// ReportBroken is for failures that need someone to look at them: the
	// device is unreachable, the watermark cannot be written.
	ReportBroken(id string, params ...any)
	// ReportWarning is for degraded input that was worked around: a column
	// no synonym matches, a timestamp in an unknown layout, a dropped row.
	ReportWarning(id string, params ...any)
	// ReportDebug is trace detail, only visible with --verbose.
	ReportDebug(msg string, params ...any)
	// ReportCount reports a point-in-time count, successive counts are
	// samples and must not be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s:%s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
