// Package monitoring serves the progress of a mapping run over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/llcmap/coremap"
	"github.com/sarchlab/llcmap/evset"
	"github.com/sarchlab/llcmap/hooking"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// RunState is the summary of a run served at /api/state.
type RunState struct {
	StartTime        time.Time
	SetIndices       int
	Mapped           int
	LastSetIndex     int
	ResolvedPages    int
	UnresolvedPages  int
	DoubleConflicts  int
	ResolutionErrors int
	PagesPerCore     map[int]int
}

// Monitor turns a mapping run into a server that reports its progress. It
// is a hook to attach to the builder and the mapper.
type Monitor struct {
	portNumber int
	listener   net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	setIndexBar      *ProgressBar

	stateLock sync.Mutex
	state     RunState
	rows      map[int][]int
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		state: RunState{
			StartTime:    time.Now(),
			LastSetIndex: -1,
			PagesPerCore: make(map[int]int),
		},
		rows: make(map[int][]int),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// ExpectSetIndices creates the progress bar of the run.
func (m *Monitor) ExpectSetIndices(n int) {
	m.stateLock.Lock()
	m.state.SetIndices = n
	m.stateLock.Unlock()

	m.setIndexBar = m.CreateProgressBar("Set-indices", uint64(n))
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := newProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Func follows the mapping run.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case coremap.HookPosSetIndexStart:
		if m.setIndexBar != nil {
			m.setIndexBar.IncrementInProgress(1)
		}
	case coremap.HookPosSetIndexMapped:
		m.setIndexMapped(ctx.Item.(*coremap.SetIndexMap))
	case coremap.HookPosResolutionError:
		m.stateLock.Lock()
		m.state.ResolutionErrors++
		m.stateLock.Unlock()
	case evset.HookPosDoubleConflict:
		m.stateLock.Lock()
		m.state.DoubleConflicts++
		m.stateLock.Unlock()
	}
}

func (m *Monitor) setIndexMapped(res *coremap.SetIndexMap) {
	if m.setIndexBar != nil {
		m.setIndexBar.MoveInProgressToFinished(1)
	}

	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	m.state.Mapped++
	m.state.LastSetIndex = res.SetIndex
	m.rows[res.SetIndex] = append([]int(nil), res.Pages...)

	for _, core := range res.Pages {
		if core < 0 {
			m.state.UnresolvedPages++
			continue
		}

		m.state.ResolvedPages++
		m.state.PagesPerCore[core]++
	}
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/state", m.reportState)
	r.HandleFunc("/api/map/{setindex}", m.reportRow)

	return r
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener

	fmt.Fprintf(os.Stderr, "Monitoring mapping with %s\n", m.URL())

	go func() {
		err := http.Serve(listener, m.Handler())
		dieOnErr(err)
	}()
}

// URL returns the address of the server, or an empty string if it is not
// started.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenInBrowser opens the progress page in the default browser.
func (m *Monitor) OpenInBrowser() error {
	return browser.OpenURL(m.URL() + "/api/progress")
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}
	m.progressBarsLock.Unlock()

	bytes, err := json.Marshal(bars)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) reportState(w http.ResponseWriter, _ *http.Request) {
	m.stateLock.Lock()
	state := m.state
	state.PagesPerCore = make(map[int]int, len(m.state.PagesPerCore))
	for core, n := range m.state.PagesPerCore {
		state.PagesPerCore[core] = n
	}
	m.stateLock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&state)
	serializer.SetMaxDepth(2)

	err := serializer.Serialize(w)
	dieOnErr(err)
}

type rowRsp struct {
	SetIndex int    `json:"set_index"`
	Row      string `json:"row"`
}

func (m *Monitor) reportRow(w http.ResponseWriter, r *http.Request) {
	si, err := strconv.ParseInt(mux.Vars(r)["setindex"], 0, 32)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.stateLock.Lock()
	pages, ok := m.rows[int(si)]
	m.stateLock.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Set-index not mapped"))
		dieOnErr(err)

		return
	}

	cm := coremap.NewCoreMap(len(pages))
	cm.Add(int(si), pages)

	var row bytes.Buffer
	_, err = cm.WriteTo(&row)
	dieOnErr(err)

	rsp, err := json.Marshal(rowRsp{
		SetIndex: int(si),
		Row:      strings.TrimSuffix(row.String(), "\n"),
	})
	dieOnErr(err)

	_, err = w.Write(rsp)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
