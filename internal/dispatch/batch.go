package dispatch

// PlanGroups splits files into contiguous, order-preserving groups of at
// most maxGroupSize. Group k holds files[(k-1)*maxGroupSize : k*maxGroupSize];
// the last group may be shorter, no group is ever empty, and concatenating
// the groups in index order reproduces the input exactly.
//
// Pure and deterministic: no I/O, no clock, no randomness.
func PlanGroups(files []string, maxGroupSize int) []Group {
	if len(files) == 0 {
		return nil
	}
	if maxGroupSize < 1 {
		maxGroupSize = 1
	}

	total := (len(files) + maxGroupSize - 1) / maxGroupSize
	groups := make([]Group, 0, total)
	for i := 0; i < len(files); i += maxGroupSize {
		end := i + maxGroupSize
		if end > len(files) {
			end = len(files)
		}
		groups = append(groups, Group{
			Files: files[i:end],
			Index: len(groups) + 1,
			Total: total,
		})
	}
	return groups
}
