package monitoring

import (
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/gorilla/mux"

	"github.com/sarchlab/nocgolden/core"
	"github.com/sarchlab/nocgolden/mem"
	"github.com/sarchlab/nocgolden/noc"
	"github.com/sarchlab/nocgolden/prim"
)

var _ = Describe("Monitor", func() {
	var (
		s *noc.Simulator
		m *Monitor
	)

	BeforeEach(func() {
		s = noc.MakeBuilder().WithHeight(1).WithWidth(2).WithNumCells(16).
			Build("Monitored")

		m = NewMonitor()
		m.RegisterSimulator(s)
	})

	It("should serve the fabric status", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/status", nil)

		m.status(w, r)

		var rsp statusRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Name).To(Equal("Monitored"))
		Expect(rsp.Height).To(Equal(1))
		Expect(rsp.Width).To(Equal(2))
		Expect(rsp.Round).To(Equal(0))
		Expect(rsp.Pending).To(Equal(0))
	})

	It("should report the current round", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/round", nil)

		m.round(w, r)

		Expect(w.Body.String()).To(Equal(`{"round":0}`))
	})

	It("should list the nodes", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/list_nodes", nil)

		m.listNodes(w, r)

		Expect(w.Body.String()).To(Equal(`["(0,0)","(0,1)"]`))
	})

	It("should serve node details", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/node/0/1", nil)
		r = mux.SetURLVars(r, map[string]string{"y": "0", "x": "1"})

		m.listNodeDetails(w, r)

		Expect(w.Code).To(Equal(200))
		Expect(w.Body.Len()).ToNot(BeZero())
	})

	It("should 404 for a node outside the grid", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/node/5/0", nil)
		r = mux.SetURLVars(r, map[string]string{"y": "5", "x": "0"})

		m.listNodeDetails(w, r)

		Expect(w.Code).To(Equal(404))
	})

	It("should read a memory cell", func() {
		var cell [mem.CellBytes]byte
		for i := range cell {
			cell[i] = byte(i)
		}

		n := s.NodeAt(core.Coord{Y: 0, X: 0})
		Expect(n.Image().WriteCell(3, cell)).To(Succeed())

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/node/0/0/cell/3", nil)
		r = mux.SetURLVars(r, map[string]string{
			"y": "0", "x": "0", "addr": "3",
		})

		m.readCell(w, r)

		var rsp struct {
			Addr int    `json:"addr"`
			Data string `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Addr).To(Equal(3))
		Expect(rsp.Data).To(Equal(hex.EncodeToString(cell[:])))
	})

	It("should reject a cell outside the image", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/node/0/0/cell/99", nil)
		r = mux.SetURLVars(r, map[string]string{
			"y": "0", "x": "0", "addr": "99",
		})

		m.readCell(w, r)

		Expect(w.Code).To(Equal(400))
	})

	It("should list tag buffers with the fullest node first", func() {
		n := s.NodeAt(core.Coord{Y: 0, X: 1})
		parcel := core.Parcel{
			Mode: prim.ModeCell,
			A:    0,
			Data: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		}

		buffered, err := n.Accept(9, true, parcel)
		Expect(err).ToNot(HaveOccurred())
		Expect(buffered).To(BeTrue())

		buffered, err = n.Accept(9, true, parcel)
		Expect(err).ToNot(HaveOccurred())
		Expect(buffered).To(BeTrue())

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/buffers?limit=1", nil)

		m.listTagBuffers(w, r)

		Expect(w.Body.String()).To(
			Equal(`[{"node":"(0,1)","buffered":2}]`))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("seeding", 10)
		bar.IncrementFinished(4)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/progress", nil)

		m.listProgressBars(w, r)

		var bars []*ProgressBar
		Expect(json.Unmarshal(w.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("seeding"))
		Expect(bars[0].Finished).To(Equal(uint64(4)))

		m.CompleteProgressBar(bar)

		w = httptest.NewRecorder()
		m.listProgressBars(w, r)

		Expect(json.Unmarshal(w.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(BeEmpty())
	})

	It("should pause and continue the simulator", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/pause", nil)
		m.pauseSimulator(w, r)
		Expect(w.Code).To(Equal(200))

		w = httptest.NewRecorder()
		r = httptest.NewRequest("GET", "/api/continue", nil)
		m.continueSimulator(w, r)
		Expect(w.Code).To(Equal(200))

		Expect(s.Run()).To(Succeed())
	})
})
