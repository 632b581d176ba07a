package shared

const (
	// DefaultLimit applies when a listing request carries no limit.
	DefaultLimit = 50
	// MaxLimit caps listing page sizes.
	MaxLimit = 500
)

// ClampLimit normalises a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
