package coremap

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"github.com/sarchlab/llcmap/datarecording"
	"github.com/sarchlab/llcmap/hooking"
)

// Tables written by a RecordingHook.
const (
	SliceTimingTable     = "slice_timing"
	MapRowTable          = "map_row"
	ResolutionErrorTable = "resolution_error"
)

// SliceTimingEntry is a row of the slice timing table.
type SliceTimingEntry struct {
	RunID    string
	SetIndex int
	Slice    int
	Core     int
	Pages    int
	Mean     float64
	Median   int
	Outliers uint32
}

// MapRowEntry is a row of the map table. Row is the line of the set-index
// as written by CoreMap.WriteTo, without the newline.
type MapRowEntry struct {
	RunID    string
	SetIndex int
	Resolved int
	Row      string
}

// ResolutionErrorEntry is a row of the resolution error table.
type ResolutionErrorEntry struct {
	RunID    string
	SetIndex int
	Kind     string
	Message  string
}

// A RecordingHook stores slice timings, map rows and errors through a
// DataRecorder.
type RecordingHook struct {
	recorder datarecording.DataRecorder
	runID    string
}

// NewRecordingHook creates the tables and returns the hook. Every hook gets
// a fresh run id so that several runs can share a database.
func NewRecordingHook(recorder datarecording.DataRecorder) *RecordingHook {
	h := &RecordingHook{
		recorder: recorder,
		runID:    xid.New().String(),
	}

	recorder.CreateTable(SliceTimingTable, SliceTimingEntry{})
	recorder.CreateTable(MapRowTable, MapRowEntry{})
	recorder.CreateTable(ResolutionErrorTable, ResolutionErrorEntry{})

	return h
}

// RunID returns the id written in every row.
func (h *RecordingHook) RunID() string {
	return h.runID
}

// Func records the item of ctx.
func (h *RecordingHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosSliceTimed:
		t := ctx.Item.(SliceTiming)
		h.recorder.InsertData(SliceTimingTable, SliceTimingEntry{
			RunID:    h.runID,
			SetIndex: t.SetIndex,
			Slice:    t.Slice,
			Core:     t.Core,
			Pages:    t.Pages,
			Mean:     float64(t.Mean) / float64(max(t.MeanScale, 1)),
			Median:   t.Histogram.Median(),
			Outliers: t.Histogram.Outliers(),
		})
	case HookPosResolutionError:
		err := ctx.Item.(error)
		h.recorder.InsertData(ResolutionErrorTable, ResolutionErrorEntry{
			RunID:    h.runID,
			SetIndex: ctx.Detail.(int),
			Kind:     errorKind(err),
			Message:  err.Error(),
		})
	case HookPosSetIndexMapped:
		res := ctx.Item.(*SetIndexMap)
		h.recorder.InsertData(MapRowTable, MapRowEntry{
			RunID:    h.runID,
			SetIndex: res.SetIndex,
			Resolved: res.Resolved(),
			Row:      formatRow(res.Pages),
		})
	}
}

// LoadRecordedMap rebuilds the map of a recorded run. With an empty runID,
// the run of the first recorded row is loaded. It returns the run id.
func LoadRecordedMap(
	ctx context.Context,
	reader datarecording.DataReader,
	runID string,
) (*CoreMap, string, error) {
	reader.MapTable(MapRowTable, MapRowEntry{})

	if runID == "" {
		first, _, err := reader.Query(ctx, MapRowTable,
			datarecording.QueryParams{Limit: 1})
		if err != nil {
			return nil, "", err
		}

		if len(first) == 0 {
			return nil, "", fmt.Errorf("no map rows recorded")
		}

		runID = first[0].(*MapRowEntry).RunID
	}

	entries, _, err := reader.Query(ctx, MapRowTable, datarecording.QueryParams{
		Where:   "RunID = ?",
		Args:    []any{runID},
		OrderBy: "SetIndex",
	})
	if err != nil {
		return nil, runID, err
	}

	if len(entries) == 0 {
		return nil, runID, fmt.Errorf("run %s has no map rows", runID)
	}

	var m *CoreMap

	for _, e := range entries {
		entry := e.(*MapRowEntry)

		row, err := ParseRow([]byte(entry.Row))
		if err != nil {
			return nil, runID, fmt.Errorf("set 0x%03x: %w", entry.SetIndex, err)
		}

		if m == nil {
			m = NewCoreMap(len(row))
		}

		if len(row) != m.NumPages() {
			return nil, runID, fmt.Errorf("set 0x%03x has %d pages, expected %d",
				entry.SetIndex, len(row), m.NumPages())
		}

		m.Add(entry.SetIndex, row)
	}

	return m, runID, nil
}

func errorKind(err error) string {
	switch err.(type) {
	case *ConflictError:
		return "conflict"
	case *MissingCoreError:
		return "missing_core"
	case *NullSliceError:
		return "null_slice"
	case *SurplusSliceError:
		return "surplus_slice"
	default:
		return "other"
	}
}

func formatRow(pages []int) string {
	row := make([]byte, len(pages))

	for i, core := range pages {
		if core < 0 {
			row[i] = Unresolved
		} else {
			row[i] = byte('0' + core)
		}
	}

	return string(row)
}
