package issues

// Score converts severity counts into a 0-100 health score. Errors weigh 5,
// warnings 2, notices half a point (floored).
func Score(errors, warnings, notices int) int {
	score := 100 - 5*errors - 2*warnings - notices/2
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
