// Package monitoring turns a running fabric into a web server so that
// the grid can be inspected and controlled from outside.
package monitoring

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/nocgolden/core"
	"github.com/sarchlab/nocgolden/monitoring/web"
	"github.com/sarchlab/nocgolden/noc"
)

// Monitor exposes a simulator as a web server and allows external
// monitoring and controlling of the run.
type Monitor struct {
	sim         *noc.Simulator
	portNumber  int
	openBrowser bool

	runLock sync.Mutex
	running bool
	runErr  error

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
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

// WithBrowserOnStart makes StartServer open the dashboard in the
// default browser.
func (m *Monitor) WithBrowserOnStart() *Monitor {
	m.openBrowser = true

	return m
}

// RegisterSimulator registers the simulator to be monitored.
func (m *Monitor) RegisterSimulator(s *noc.Simulator) {
	m.sim = s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the webpage.
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

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	fServer := http.FileServer(web.GetAssets())
	r.HandleFunc("/api/pause", m.pauseSimulator)
	r.HandleFunc("/api/continue", m.continueSimulator)
	r.HandleFunc("/api/run", m.runSimulator)
	r.HandleFunc("/api/round", m.round)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/list_nodes", m.listNodes)
	r.HandleFunc("/api/node/{y}/{x}", m.listNodeDetails)
	r.HandleFunc("/api/node/{y}/{x}/cell/{addr}", m.readCell)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/buffers", m.listTagBuffers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open browser: %s\n", err)
		}
	}
}

func (m *Monitor) pauseSimulator(w http.ResponseWriter, _ *http.Request) {
	m.sim.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueSimulator(w http.ResponseWriter, _ *http.Request) {
	m.sim.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) runSimulator(w http.ResponseWriter, _ *http.Request) {
	m.runLock.Lock()
	defer m.runLock.Unlock()

	if m.running {
		w.WriteHeader(http.StatusConflict)
		return
	}

	m.running = true

	go func() {
		err := m.sim.Run()

		m.runLock.Lock()
		m.running = false
		m.runErr = err
		m.runLock.Unlock()
	}()
}

func (m *Monitor) round(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"round\":%d}", m.sim.Round())
}

type statusRsp struct {
	Name     string `json:"name"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Round    int    `json:"round"`
	Executed int    `json:"executed"`
	Pending  int    `json:"pending"`
	Buffered int    `json:"buffered"`
	Running  bool   `json:"running"`
	Error    string `json:"error,omitempty"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	rsp := statusRsp{
		Name:     m.sim.Name(),
		Height:   m.sim.Height(),
		Width:    m.sim.Width(),
		Round:    m.sim.Round(),
		Executed: m.sim.Executed(),
		Pending:  m.sim.TotalPending(),
		Buffered: m.sim.TotalBuffered(),
	}

	m.runLock.Lock()
	rsp.Running = m.running
	if m.runErr != nil {
		rsp.Error = m.runErr.Error()
	}
	m.runLock.Unlock()

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, n := range m.sim.Nodes() {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "\"%s\"", n.Coord())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) listNodeDetails(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, r)
	if n == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(n)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	NodeName  string `json:"node_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		dieOnErr(err)
	}

	fields := strings.Split(req.FieldName, ".")

	n := m.findNodeByNameOr404(w, req.NodeName)
	if n == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(n)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(fields)
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) readCell(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, r)
	if n == nil {
		return
	}

	addr, err := strconv.Atoi(mux.Vars(r)["addr"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	cell, err := n.Image().ReadCell(addr)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	fmt.Fprintf(w, "{\"addr\":%d,\"data\":\"%s\"}",
		addr, hex.EncodeToString(cell[:]))
}

func (m *Monitor) listTagBuffers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := buffersParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	nodes := m.sortAndSelectNodes(limit, offset)

	fmt.Fprint(w, "[")
	for i, n := range nodes {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "{\"node\":\"%s\",\"buffered\":%d}",
			n.Coord(), n.Buffered())
	}
	fmt.Fprint(w, "]")
}

func buffersParseParams(r *http.Request) (limit, offset int, err error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "0"
	}
	limit, err = strconv.Atoi(limitStr)
	if err != nil {
		return 0, 0, err
	}

	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		offsetStr = "0"
	}
	offset, err = strconv.Atoi(offsetStr)
	if err != nil {
		return limit, 0, err
	}

	return limit, offset, nil
}

func (m *Monitor) sortAndSelectNodes(limit, offset int) []*core.Node {
	sorted := make([]*core.Node, len(m.sim.Nodes()))
	copy(sorted, m.sim.Nodes())

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Buffered() > sorted[j].Buffered()
	})

	if offset > len(sorted) {
		offset = len(sorted)
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) findNodeOr404(
	w http.ResponseWriter,
	r *http.Request,
) *core.Node {
	vars := mux.Vars(r)

	y, errY := strconv.Atoi(vars["y"])
	x, errX := strconv.Atoi(vars["x"])

	var n *core.Node
	if errY == nil && errX == nil {
		n = m.sim.NodeAt(core.Coord{Y: y, X: x})
	}

	if n == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Node not found"))
		dieOnErr(err)
	}

	return n
}

func (m *Monitor) findNodeByNameOr404(
	w http.ResponseWriter,
	name string,
) *core.Node {
	var node *core.Node
	for _, n := range m.sim.Nodes() {
		if n.Coord().String() == name {
			node = n
		}
	}

	if node == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Node not found"))
		dieOnErr(err)
	}

	return node
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bytes, err := json.Marshal(m.progressBars)
	m.progressBarsLock.Unlock()
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
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
