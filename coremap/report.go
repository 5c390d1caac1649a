package coremap

import (
	"fmt"
	"log"
	"strings"

	"github.com/sarchlab/llcmap/evset"
	"github.com/sarchlab/llcmap/hooking"
)

// A ReportHook writes the per set-index latency report: the mean latency of
// every slice from every core, the candidate cores before and after
// cleaning, and the errors.
type ReportHook struct {
	hooking.LogHookBase
}

// NewReportHook creates a ReportHook that writes to logger.
func NewReportHook(logger *log.Logger) *ReportHook {
	h := new(ReportHook)
	h.Logger = logger

	return h
}

// NewErrorReportHook creates a ReportHook that only writes the errors of
// the builder and the mapper.
func NewErrorReportHook(logger *log.Logger) *ReportHook {
	h := NewReportHook(logger)
	h.Filter = hooking.OnlyPos(
		HookPosResolutionError,
		evset.HookPosDoubleConflict,
		evset.HookPosSliceFull,
	)

	return h
}

// Func writes the report lines for the position of ctx.
func (h *ReportHook) Func(ctx hooking.HookCtx) {
	if !h.Accepts(ctx.Pos) {
		return
	}

	switch ctx.Pos {
	case HookPosCleaned:
		res := ctx.Item.(*SetIndexMap)
		h.Print(timesLine(res))
		h.Print(candidatesLine("Before cleaning", res.SetIndex, res.Before))
		h.Print(candidatesLine("After cleaning", res.SetIndex, res.After))
	case HookPosResolutionError:
		h.Printf("Error %s", ctx.Item.(error))
	case evset.HookPosDoubleConflict:
		h.Printf("%v", ctx.Item.(evset.DoubleConflict))
	case evset.HookPosSliceFull:
		h.Printf("No free slice for page %d", ctx.Item.(int))
	}
}

func timesLine(res *SetIndexMap) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Set 0x%03x Times: ", res.SetIndex)

	for _, times := range res.Times {
		if times == nil {
			continue
		}

		for _, t := range times {
			b.WriteString(formatMean(t, res.MeanScale))
			b.WriteByte(' ')
		}

		b.WriteString("/ ")
	}

	return b.String()
}

func candidatesLine(title string, si int, cands []CoreSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s set 0x%03x:", title, si)

	for _, c := range cands {
		fmt.Fprintf(&b, " %s", c)
	}

	return b.String()
}

// formatMean prints a mean scaled by a power of ten as a decimal.
func formatMean(t, scale int) string {
	if scale <= 1 {
		return fmt.Sprintf("%2d", t)
	}

	digits := len(fmt.Sprint(scale - 1))

	return fmt.Sprintf("%2d.%0*d", t/scale, digits, t%scale)
}
