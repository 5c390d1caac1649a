package coremap

// Clean removes, until nothing changes, the core of every singleton set from
// every other set that differs from it. Sets equal to a singleton are left
// alone, so two slices claiming the same single core stay in conflict.
// Clean returns the number of passes that changed something.
func Clean(cands []CoreSet) int {
	passes := 0

	for {
		modified := false

		for i := range cands {
			ci := cands[i]
			if !ci.IsSingleton() {
				continue
			}

			for j := range cands {
				if j == i {
					continue
				}

				if !cands[j].Equal(ci) && cands[j].Intersects(ci) {
					cands[j] = cands[j].RemoveAll(ci)
					modified = true
				}
			}
		}

		if !modified {
			return passes
		}

		passes++
	}
}

// Resolve assigns to every core 0..ncores-1 the slice whose candidate set is
// exactly that core. Cores claimed by several slices and cores claimed by
// none are reported; slices left without a core map to -1.
func Resolve(si int, cands []CoreSet, ncores int) ([]int, []error) {
	assign := make([]int, len(cands))
	for i := range assign {
		assign[i] = -1
	}

	var errs []error

	for core := 0; core < ncores; core++ {
		var matches []int

		for slice, c := range cands {
			if c.Equal(Singleton(core)) {
				matches = append(matches, slice)
			}
		}

		switch len(matches) {
		case 0:
			errs = append(errs, &MissingCoreError{SetIndex: si, Core: core})
		case 1:
			assign[matches[0]] = core
		default:
			errs = append(errs, &ConflictError{
				SetIndex: si,
				Core:     core,
				Slices:   matches,
			})
		}
	}

	return assign, errs
}
