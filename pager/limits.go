package pager

const (
	MinLimit     = 1
	DefaultLimit = 50
	MaxLimit     = 100
)

// IsNormalizedLimitMax clamps limit to [MinLimit, maxLimit] and reports
// whether the requested limit was already within range. An out-of-range
// limit is silently clamped, never rejected.
func IsNormalizedLimitMax(limit int, maxLimit int) (int, bool) {
	if limit < MinLimit {
		return MinLimit, false
	} else if limit > maxLimit {
		return maxLimit, false
	}

	return limit, true
}

func NormalizeLimitMax(limit int, maxLimit int) int {
	ret, _ := IsNormalizedLimitMax(limit, maxLimit)
	return ret
}

func NormalizeLimit(limit int) int {
	return NormalizeLimitMax(limit, MaxLimit)
}
