package core

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/nocgolden/mem"
	"github.com/sarchlab/nocgolden/prim"
	"github.com/sarchlab/nocgolden/routing"
)

var _ = Describe("Node", func() {
	var (
		mockCtrl *gomock.Controller
		sink     *MockDeliverySink
		im       *mem.Image
		node     *Node
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sink = NewMockDeliverySink(mockCtrl)
		im = mem.NewImage(64)
		node = NewNode(Coord{Y: 1, X: 1}, Relative, im)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	stagePayload := func(addr, n int) []byte {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i + 1)
		}

		for i, b := range data {
			Expect(im.Write1(addr+i/mem.CellBytes, i%mem.CellBytes, b)).
				To(Succeed())
		}

		return data
	}

	stageMessages := func(addr int, msgs ...routing.Message) {
		Expect(routing.NewTable(im).WriteMessages(addr, msgs)).To(Succeed())
	}

	Context("send", func() {
		It("streams the units of an enabled message in walk order", func() {
			payload := stagePayload(8, 16)
			stageMessages(0, routing.Message{
				X: 1, A0: 4, Cnt: 2, AOffset: 1, TagID: 3, En: true,
			})

			gomock.InOrder(
				sink.EXPECT().
					Deliver(Coord{Y: 1, X: 2}, byte(3), false, Parcel{
						Mode: prim.ModeCell, A: 4, Data: payload[0:8],
					}).
					Return(nil),
				sink.EXPECT().
					Deliver(Coord{Y: 1, X: 2}, byte(3), false, Parcel{
						Mode: prim.ModeCell, A: 5, Data: payload[8:16],
					}).
					Return(nil),
			)

			Expect(node.Enqueue(prim.NewSendOp(prim.Send{
				SendAddr: 8, ParaAddr: 0, MessageNum: 1, Mode: prim.ModeCell,
			}))).To(Succeed())

			op, err := node.ExecuteNext(sink)

			Expect(err).ToNot(HaveOccurred())
			Expect(op.Kind).To(Equal(prim.KindSend))
		})

		It("skips a disabled message but charges its payload", func() {
			payload := stagePayload(8, 24)
			stageMessages(0,
				routing.Message{Cnt: 2},
				routing.Message{X: 1, Cnt: 1, TagID: 5, En: true},
			)

			sink.EXPECT().
				Deliver(Coord{Y: 1, X: 2}, byte(5), false, Parcel{
					Mode: prim.ModeCell, A: 0, Data: payload[16:24],
				}).
				Return(nil)

			Expect(node.Enqueue(prim.NewSendOp(prim.Send{
				SendAddr: 8, ParaAddr: 0, MessageNum: 2, Mode: prim.ModeCell,
			}))).To(Succeed())

			_, err := node.ExecuteNext(sink)

			Expect(err).ToNot(HaveOccurred())
		})

		It("streams single bytes in neuron mode", func() {
			payload := stagePayload(8, 3)
			stageMessages(0, routing.Message{
				Y: 1, A0: 32, Cnt: 3, AOffset: 1,
				TagID: 9, Handshake: true, En: true,
			})

			gomock.InOrder(
				sink.EXPECT().
					Deliver(Coord{Y: 2, X: 1}, byte(9), true, Parcel{
						Mode: prim.ModeNeuron, A: 32, Data: payload[0:1],
					}).
					Return(nil),
				sink.EXPECT().
					Deliver(Coord{Y: 2, X: 1}, byte(9), true, Parcel{
						Mode: prim.ModeNeuron, A: 33, Data: payload[1:2],
					}).
					Return(nil),
				sink.EXPECT().
					Deliver(Coord{Y: 2, X: 1}, byte(9), true, Parcel{
						Mode: prim.ModeNeuron, A: 34, Data: payload[2:3],
					}).
					Return(nil),
			)

			Expect(node.Enqueue(prim.NewSendOp(prim.Send{
				SendAddr: 8, ParaAddr: 0, MessageNum: 1, Mode: prim.ModeNeuron,
			}))).To(Succeed())

			_, err := node.ExecuteNext(sink)

			Expect(err).ToNot(HaveOccurred())
		})

		It("writes inline messages to the table before streaming", func() {
			payload := stagePayload(8, 8)
			inline := routing.Message{X: -1, Cnt: 1, TagID: 4, En: true}

			sink.EXPECT().
				Deliver(Coord{Y: 1, X: 0}, byte(4), false, Parcel{
					Mode: prim.ModeCell, A: 0, Data: payload,
				}).
				Return(nil)

			Expect(node.Enqueue(prim.NewSendOp(prim.Send{
				SendAddr: 8, ParaAddr: 0, MessageNum: 9, Mode: prim.ModeCell,
				Messages: []routing.Message{inline},
			}))).To(Succeed())

			_, err := node.ExecuteNext(sink)

			Expect(err).ToNot(HaveOccurred())

			stored, err := routing.NewTable(im).ReadMessage(0, 0)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored).To(Equal(inline))
		})

		It("uses absolute coordinates when configured", func() {
			node = NewNode(Coord{Y: 1, X: 1}, Absolute, im)
			payload := stagePayload(8, 8)
			stageMessages(0, routing.Message{
				Y: 0, X: 0, Cnt: 1, TagID: 1, En: true,
			})

			sink.EXPECT().
				Deliver(Coord{Y: 0, X: 0}, byte(1), false, Parcel{
					Mode: prim.ModeCell, A: 0, Data: payload,
				}).
				Return(nil)

			Expect(node.Enqueue(prim.NewSendOp(prim.Send{
				SendAddr: 8, ParaAddr: 0, MessageNum: 1, Mode: prim.ModeCell,
			}))).To(Succeed())

			_, err := node.ExecuteNext(sink)

			Expect(err).ToNot(HaveOccurred())
		})

		It("propagates a sink failure", func() {
			stagePayload(8, 8)
			stageMessages(0, routing.Message{Cnt: 1, En: true})

			sink.EXPECT().
				Deliver(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(errors.New("grid edge"))

			Expect(node.Enqueue(prim.NewSendOp(prim.Send{
				SendAddr: 8, ParaAddr: 0, MessageNum: 1, Mode: prim.ModeCell,
			}))).To(Succeed())

			_, err := node.ExecuteNext(sink)

			Expect(err).To(HaveOccurred())
		})

		It("fails when a message lies beyond the image", func() {
			Expect(node.Enqueue(prim.NewSendOp(prim.Send{
				SendAddr: 0, ParaAddr: 63, MessageNum: 3, Mode: prim.ModeCell,
			}))).To(Succeed())

			_, err := node.ExecuteNext(sink)

			Expect(err).To(MatchError(mem.ErrCellRange))
		})
	})

	Context("tag matching", func() {
		recv := func(tag uint8, addr int) {
			Expect(node.Enqueue(prim.NewRecvOp(prim.Recv{
				RecvAddr: addr, TagID: tag,
			}))).To(Succeed())

			_, err := node.ExecuteNext(sink)
			Expect(err).ToNot(HaveOccurred())
		}

		It("writes plain traffic for a registered tag", func() {
			recv(3, 16)

			data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
			buffered, err := node.Accept(3, false, Parcel{
				Mode: prim.ModeCell, A: 0, Data: data,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(buffered).To(BeFalse())

			cell, err := im.ReadCell(16)
			Expect(err).ToNot(HaveOccurred())
			Expect(cell[0:8]).To(Equal(data))
		})

		It("rejects plain traffic for an unregistered tag", func() {
			_, err := node.Accept(3, false, Parcel{
				Mode: prim.ModeCell, A: 0, Data: make([]byte, 8),
			})

			Expect(err).To(MatchError(ErrUnresolvedTag))
			Expect(im.Touched()).To(BeEmpty())
		})

		It("still rejects plain traffic while handshakes are buffered", func() {
			buffered, err := node.Accept(3, true, Parcel{
				Mode: prim.ModeCell, A: 0, Data: make([]byte, 8),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(buffered).To(BeTrue())

			_, err = node.Accept(3, false, Parcel{
				Mode: prim.ModeCell, A: 1, Data: make([]byte, 8),
			})

			Expect(err).To(MatchError(ErrUnresolvedTag))
		})

		It("buffers handshake traffic until a receive drains it in order", func() {
			first := []byte{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
			second := []byte{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb}

			buffered, err := node.Accept(7, true, Parcel{
				Mode: prim.ModeCell, A: 0, Data: first,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(buffered).To(BeTrue())

			buffered, err = node.Accept(7, true, Parcel{
				Mode: prim.ModeCell, A: 0, Data: second,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(buffered).To(BeTrue())

			Expect(node.Buffered()).To(Equal(2))
			Expect(im.Touched()).To(BeEmpty())

			recv(7, 4)

			Expect(node.Buffered()).To(Equal(0))

			cell, err := im.ReadCell(4)
			Expect(err).ToNot(HaveOccurred())
			Expect(cell[0:8]).To(Equal(second),
				"later arrivals overwrite earlier ones at the same address")
		})

		It("delivers handshake traffic immediately once the tag is seen", func() {
			recv(7, 4)

			data := []byte{9, 9, 9, 9, 9, 9, 9, 9}
			buffered, err := node.Accept(7, true, Parcel{
				Mode: prim.ModeCell, A: 0, Data: data,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(buffered).To(BeFalse())

			cell, err := im.ReadCell(4)
			Expect(err).ToNot(HaveOccurred())
			Expect(cell[0:8]).To(Equal(data))
		})

		It("re-anchors a later receive at its own address", func() {
			recv(1, 0)
			recv(1, 8)

			data := []byte{5, 5, 5, 5, 5, 5, 5, 5}
			_, err := node.Accept(1, false, Parcel{
				Mode: prim.ModeCell, A: 0, Data: data,
			})
			Expect(err).ToNot(HaveOccurred())

			cell, err := im.ReadCell(8)
			Expect(err).ToNot(HaveOccurred())
			Expect(cell[0:8]).To(Equal(data))

			cell, err = im.ReadCell(0)
			Expect(err).ToNot(HaveOccurred())
			Expect(cell).To(Equal([mem.CellBytes]byte{}))
		})

		It("writes below the anchor for a negative address", func() {
			recv(2, 4)

			data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
			_, err := node.Accept(2, false, Parcel{
				Mode: prim.ModeCell, A: -1, Data: data,
			})
			Expect(err).ToNot(HaveOccurred())

			cell, err := im.ReadCell(3)
			Expect(err).ToNot(HaveOccurred())
			Expect(cell[24:32]).To(Equal(data))
		})

		It("commits neuron parcels at byte granularity", func() {
			recv(4, 0)

			_, err := node.Accept(4, false, Parcel{
				Mode: prim.ModeNeuron, A: 33, Data: []byte{0x7f},
			})
			Expect(err).ToNot(HaveOccurred())

			cell, err := im.ReadCell(1)
			Expect(err).ToNot(HaveOccurred())
			Expect(cell[1]).To(Equal(byte(0x7f)))
		})

		It("fails the drain when a buffered parcel lands out of range", func() {
			buffered, err := node.Accept(6, true, Parcel{
				Mode: prim.ModeCell, A: 4, Data: make([]byte, 8),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(buffered).To(BeTrue())

			Expect(node.Enqueue(prim.NewRecvOp(prim.Recv{
				RecvAddr: 63, TagID: 6,
			}))).To(Succeed())

			_, err = node.ExecuteNext(sink)

			Expect(err).To(MatchError(mem.ErrCellRange))
		})
	})

	Context("queue", func() {
		It("returns ErrQueueEmpty once drained", func() {
			_, err := node.ExecuteNext(sink)

			Expect(err).To(MatchError(ErrQueueEmpty))
		})

		It("halts at a stop primitive", func() {
			Expect(node.Enqueue(
				prim.NewStopOp(),
				prim.NewRecvOp(prim.Recv{RecvAddr: 0, TagID: 1}),
			)).To(Succeed())

			op, err := node.ExecuteNext(sink)

			Expect(err).ToNot(HaveOccurred())
			Expect(op.Kind).To(Equal(prim.KindStop))
			Expect(node.Stopped()).To(BeTrue())
			Expect(node.Pending()).To(Equal(0))
			Expect(node.Done()).To(BeTrue())

			_, err = node.ExecuteNext(sink)
			Expect(err).To(MatchError(ErrQueueEmpty))
		})

		It("rejects out-of-range primitives at enqueue", func() {
			err := node.Enqueue(prim.NewSendOp(prim.Send{SendAddr: -1}))

			Expect(err).To(MatchError(routing.ErrInvalidField))
		})
	})
})
