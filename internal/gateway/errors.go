package gateway

import "fmt"

// Kind classifies the stable request outcomes surfaced to callers. All
// other internal errors are absorbed and logged without changing the
// externally observed result.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindServiceUnavailable Kind = "service_unavailable"
)

// Error is a typed mediation failure carrying the rejecting stage's reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return string(e.Kind)
}

func forbidden(reason string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason}
}
