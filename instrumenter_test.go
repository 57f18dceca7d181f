package boundscheck_test

import (
	"log"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/secureir/boundscheck"
	"github.com/secureir/boundscheck/ir"
	"github.com/secureir/boundscheck/ir/interp"
	"github.com/secureir/boundscheck/testutils"
)

func instrument(src string, conf boundscheck.Config) (*ir.Module, boundscheck.Metrics, error) {
	m, err := ir.ParseString(src)
	Expect(err).ShouldNot(HaveOccurred())
	logger := log.New(GinkgoWriter, "", 0)
	instr := boundscheck.NewInstrumenter(conf, logger)
	err = instr.Process(m)
	return m, instr.Report(), err
}

func instrumentSample(sample testutils.IRSample) (*ir.Module, boundscheck.Metrics) {
	m, stats, err := instrument(sample.Source, boundscheck.NewConfig())
	Expect(err).ShouldNot(HaveOccurred())
	Expect(stats.ChecksAdded).To(Equal(sample.Added))
	Expect(stats.ChecksSkipped).To(Equal(sample.Skipped))
	Expect(stats.ChecksUnable).To(Equal(sample.Unable))
	return m, stats
}

func execMain(m *ir.Module, args ...uint64) interp.Result {
	mach := interp.NewMachine(m, interp.Options{
		ErrorFn:  "verifier.error",
		MarkerFn: "verifier.memsafe",
		AllocFns: []string{"malloc"},
	})
	res, err := mach.Run("main", args...)
	Expect(err).ShouldNot(HaveOccurred())
	return res
}

var _ = Describe("Instrumenter", func() {
	Context("with in-bounds accesses", func() {
		It("guards a direct array store without trapping", func() {
			m, _ := instrumentSample(testutils.SampleLinearArray)
			Expect(execMain(m).Trapped).To(BeFalse())
		})

		It("folds a constant struct walk into constant guards", func() {
			m, _ := instrumentSample(testutils.SampleStructField)
			// base offset 0, field offset 8, element 3 of i32 -> 20 of 40.
			text := m.String()
			Expect(text).To(ContainSubstring("icmp sge i64 20, 0"))
			Expect(text).To(ContainSubstring("icmp slt i64 20, 40"))
			Expect(execMain(m).Trapped).To(BeFalse())
		})

		It("tracks a pointer advanced through a loop phi", func() {
			m, _ := instrumentSample(testutils.SamplePhiLoop)
			// Every placeholder slot of the synthesized shadow phis must
			// have been back-patched.
			Expect(m.String()).NotTo(ContainSubstring("undef"))
			Expect(execMain(m).Trapped).To(BeFalse())
		})

		It("merges pairs from both predecessors of a join", func() {
			m, _ := instrumentSample(testutils.SamplePhiSelect)
			Expect(execMain(m, 1).Trapped).To(BeFalse())

			m2, _ := instrumentSample(testutils.SamplePhiSelect)
			Expect(execMain(m2, 0).Trapped).To(BeFalse())
		})
	})

	Context("with out-of-bounds accesses", func() {
		It("traps on a store past the end of a heap block", func() {
			m, _ := instrumentSample(testutils.SampleHeapOverflow)
			Expect(execMain(m).Trapped).To(BeTrue())
		})

		It("traps on a store before the start of a buffer", func() {
			m, _ := instrumentSample(testutils.SampleUnderflow)
			Expect(execMain(m).Trapped).To(BeTrue())
		})

		It("traps on a bulk copy longer than its destination", func() {
			m, _ := instrumentSample(testutils.SampleMemcpyOverflow)
			Expect(execMain(m).Trapped).To(BeTrue())
		})
	})

	Context("with dynamically sized allocations", func() {
		It("rescales the element count to bytes at the first index", func() {
			m, _ := instrumentSample(testutils.SampleDynamicAlloca)
			Expect(execMain(m, 5).Trapped).To(BeFalse())

			m2, _ := instrumentSample(testutils.SampleDynamicAlloca)
			Expect(execMain(m2, 2).Trapped).To(BeTrue())
		})
	})

	Context("across call boundaries", func() {
		It("relays argument pairs into the callee", func() {
			m, stats := instrumentSample(testutils.SampleInterproc)
			Expect(stats.FuncsInstrumented).To(Equal(2))
			// The call site carries the statically resolved pair.
			Expect(m.String()).To(ContainSubstring("i64 0, i64 40"))
			Expect(execMain(m).Trapped).To(BeFalse())
		})

		It("reads result pairs back through the return slots", func() {
			m, _ := instrumentSample(testutils.SampleCallResult)
			text := m.String()
			Expect(text).To(ContainSubstring("verifier.memsafe"))
			Expect(text).To(ContainSubstring("fresh.shadow.off"))
			Expect(execMain(m).Trapped).To(BeFalse())
		})
	})

	Context("with accesses that need no guard", func() {
		It("skips direct scalar global accesses", func() {
			m, _ := instrumentSample(testutils.SampleScalarGlobal)
			Expect(m.String()).NotTo(ContainSubstring("boc.error"))
			Expect(execMain(m).Trapped).To(BeFalse())
		})
	})

	Context("with unresolvable pointers", func() {
		It("counts the access instead of guarding it", func() {
			m, _ := instrumentSample(testutils.SampleOpaquePointer)
			Expect(m.String()).NotTo(ContainSubstring("boc.cont"))
		})
	})

	Context("resolving the same pointer twice", func() {
		It("memoizes the pair and emits the shadow arithmetic once", func() {
			src := `module "memo"

define void @main(i64 %n) {
entry:
  %buf = alloca i32, i64 %n
  %p = getelementptr i32, i32* %buf, i64 1
  store i32 1, i32* %p
  store i32 2, i32* %p
  ret void
}
`
			m, stats, err := instrument(src, boundscheck.NewConfig())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(stats.ChecksAdded).To(Equal(2))
			// One byte-rescale multiply for %buf, not one per guard.
			Expect(strings.Count(m.String(), "mul i64 %n, 4")).To(Equal(1))
			Expect(execMain(m, 3).Trapped).To(BeFalse())
		})
	})

	Context("in inline-all mode", func() {
		It("instruments only main and disables the relay", func() {
			conf := boundscheck.NewConfig()
			conf.SetGlobal(boundscheck.InlineAll, "true")
			m, stats, err := instrument(testutils.SampleInterproc.Source, conf)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(stats.FuncsInstrumented).To(Equal(1))
			Expect(stats.ChecksAdded).To(Equal(0))
			// The callee store stays unguarded and unresolved counts in
			// the callee are never taken.
			Expect(m.String()).NotTo(ContainSubstring("shadow.off"))
		})
	})

	Context("with malformed input", func() {
		It("reports an allocation call without a size argument", func() {
			src := `module "bad"

declare i8* @malloc()

define void @main() {
entry:
  %p = call i8* @malloc()
  store i8 1, i8* %p
  ret void
}
`
			_, _, err := instrument(src, boundscheck.NewConfig())
			Expect(err).Should(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("allocation call"))
		})
	})

	Context("over repeated runs", func() {
		It("produces identical output for identical input", func() {
			m1, _ := instrumentSample(testutils.SampleStructField)
			m2, _ := instrumentSample(testutils.SampleStructField)
			Expect(m1.String()).To(Equal(m2.String()))
		})
	})
})
