package status

// Evaluate reduces per-target probe results to a single verdict.
// It returns Up iff every result is true. An empty result set is Down:
// nothing has been proven reachable.
func Evaluate(results map[Target]bool) Playability {
	if len(results) == 0 {
		return Down
	}
	for _, ok := range results {
		if !ok {
			return Down
		}
	}
	return Up
}

// FailedTargets returns the targets whose probe failed, in the order given by targets.
func FailedTargets(targets []Target, results map[Target]bool) []Target {
	var failed []Target
	for _, t := range targets {
		if !results[t] {
			failed = append(failed, t)
		}
	}
	return failed
}
