package domain

// FailureKind is the closed taxonomy of remediable error categories.
type FailureKind string

const (
	KindTransientResource     FailureKind = "transient_resource"
	KindDependencyUnavailable FailureKind = "dependency_unavailable"
	KindCapacity              FailureKind = "capacity"
	KindUnknown               FailureKind = "unknown"
)

// AllKinds lists every kind in a fixed order.
var AllKinds = []FailureKind{
	KindTransientResource,
	KindDependencyUnavailable,
	KindCapacity,
	KindUnknown,
}

// Valid reports whether k belongs to the taxonomy.
func (k FailureKind) Valid() bool {
	switch k {
	case KindTransientResource, KindDependencyUnavailable, KindCapacity, KindUnknown:
		return true
	}
	return false
}
