package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecTable is the table that describes the run that wrote a database.
const ExecTable = "exec_info"

// ExecInfo is a row of the exec table.
type ExecInfo struct {
	Property string
	Value    string
}

// execRecorder records the command line and the duration of the run.
type execRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

func newExecRecorder(recorder DataRecorder) *execRecorder {
	e := &execRecorder{recorder: recorder}
	recorder.CreateTable(ExecTable, ExecInfo{})

	return e
}

const timeFormat = "2006-01-02 15:04:05.000000000"

// Start remembers the start time, the command and the working directory.
func (e *execRecorder) Start() {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", time.Now().Format(timeFormat)},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	cwd, err := os.Getwd()
	if err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
	}
}

// End writes the entries along with the end time.
func (e *execRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTable, entry)
	}

	e.recorder.InsertData(ExecTable,
		ExecInfo{"End Time", time.Now().Format(timeFormat)})

	e.entries = nil
}
