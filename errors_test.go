package boundscheck_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/secureir/boundscheck"
	"github.com/secureir/boundscheck/ir"
)

var _ = Describe("ContractViolationError", func() {
	Context("when rendering the message", func() {
		It("should name the function and the offending instruction", func() {
			m := ir.NewModule("t")
			fn := m.NewFunc("f", &ir.FuncType{Ret: ir.Void})
			entry := fn.NewBlock("entry")
			b := ir.NewBuilder(fn)
			b.SetInsertPointAtEnd(entry)
			ret := b.CreateRet(nil)

			err := &boundscheck.ContractViolationError{
				Func:   fn.Name,
				Instr:  ret,
				Reason: "unexpected construct",
			}
			Expect(err.Error()).To(ContainSubstring("@f"))
			Expect(err.Error()).To(ContainSubstring("ret void"))
			Expect(err.Error()).To(ContainSubstring("unexpected construct"))
		})

		It("should render without an instruction", func() {
			err := &boundscheck.ContractViolationError{Func: "g", Reason: "bad input"}
			Expect(err.Error()).To(ContainSubstring("@g"))
			Expect(err.Error()).To(ContainSubstring("bad input"))
		})
	})
})
