package noc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nocgolden/core"
	"github.com/sarchlab/nocgolden/mem"
)

var _ = Describe("Builder", func() {
	It("builds the grid row-major", func() {
		s := MakeBuilder().WithHeight(2).WithWidth(3).Build("Fabric")

		Expect(s.Name()).To(Equal("Fabric"))
		Expect(s.Height()).To(Equal(2))
		Expect(s.Width()).To(Equal(3))
		Expect(s.Nodes()).To(HaveLen(6))

		Expect(s.Nodes()[4].Coord()).To(Equal(core.Coord{Y: 1, X: 1}))
		Expect(s.NodeAt(core.Coord{Y: 1, X: 2})).To(
			BeIdenticalTo(s.Nodes()[5]))
	})

	It("returns nil for coordinates outside the grid", func() {
		s := MakeBuilder().WithHeight(2).WithWidth(2).Build("Fabric")

		Expect(s.NodeAt(core.Coord{Y: -1, X: 0})).To(BeNil())
		Expect(s.NodeAt(core.Coord{Y: 0, X: 2})).To(BeNil())
		Expect(s.NodeAt(core.Coord{Y: 2, X: 0})).To(BeNil())
	})

	It("defaults to relative addressing and the standard memory size", func() {
		s := MakeBuilder().WithHeight(1).WithWidth(1).Build("Fabric")

		Expect(s.Addressing()).To(Equal(core.Relative))
		Expect(s.Nodes()[0].Image().NumCells()).To(Equal(mem.DefaultNumCells))
	})

	It("builds unbounded node memories when asked", func() {
		s := MakeBuilder().WithHeight(1).WithWidth(1).WithNumCells(0).
			Build("Fabric")

		Expect(s.Nodes()[0].Image().NumCells()).To(Equal(0))
	})

	It("panics when the grid shape is missing", func() {
		Expect(func() { MakeBuilder().WithWidth(1).Build("Fabric") }).To(Panic())
		Expect(func() { MakeBuilder().WithHeight(1).Build("Fabric") }).To(Panic())
	})
})
