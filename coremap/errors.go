package coremap

import (
	"fmt"
	"strings"
)

// A ConflictError reports that several slices claim the same core. None of
// them is resolved.
type ConflictError struct {
	SetIndex int
	Core     int
	Slices   []int
}

func (e *ConflictError) Error() string {
	s := make([]string, len(e.Slices))
	for i, slice := range e.Slices {
		s[i] = fmt.Sprint(slice)
	}

	return fmt.Sprintf("set 0x%03x: slices %s map to core %d",
		e.SetIndex, strings.Join(s, " and "), e.Core)
}

// A MissingCoreError reports that no slice maps to a core.
type MissingCoreError struct {
	SetIndex int
	Core     int
}

func (e *MissingCoreError) Error() string {
	return fmt.Sprintf("set 0x%03x: no slice maps to core %d",
		e.SetIndex, e.Core)
}

// A NullSliceError reports that a slice expected for one of the cores was
// never found.
type NullSliceError struct {
	SetIndex int
	Slice    int
}

func (e *NullSliceError) Error() string {
	return fmt.Sprintf("set 0x%03x: null slice %d", e.SetIndex, e.Slice)
}

// A SurplusSliceError reports a slice beyond the number of cores. Its pages
// are not resolved.
type SurplusSliceError struct {
	SetIndex int
	Slice    int
	Pages    int
}

func (e *SurplusSliceError) Error() string {
	return fmt.Sprintf("set 0x%03x: surplus slice %d with %d pages",
		e.SetIndex, e.Slice, e.Pages)
}
