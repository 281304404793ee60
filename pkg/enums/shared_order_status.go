package enums

import "fmt"

// SharedOrderStatus tracks the lifecycle of a shared order. Only active and
// completed are persisted; expired is derived from expires_at at read time.
type SharedOrderStatus string

const (
	SharedOrderStatusActive    SharedOrderStatus = "active"
	SharedOrderStatusCompleted SharedOrderStatus = "completed"
	SharedOrderStatusExpired   SharedOrderStatus = "expired"
)

var validSharedOrderStatuses = []SharedOrderStatus{
	SharedOrderStatusActive,
	SharedOrderStatusCompleted,
	SharedOrderStatusExpired,
}

// String implements fmt.Stringer.
func (s SharedOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SharedOrderStatus.
func (s SharedOrderStatus) IsValid() bool {
	for _, candidate := range validSharedOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsPersistable reports whether the status may be written to storage.
func (s SharedOrderStatus) IsPersistable() bool {
	return s == SharedOrderStatusActive || s == SharedOrderStatusCompleted
}

// ParseSharedOrderStatus converts raw input into a SharedOrderStatus.
func ParseSharedOrderStatus(value string) (SharedOrderStatus, error) {
	for _, candidate := range validSharedOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shared order status %q", value)
}
