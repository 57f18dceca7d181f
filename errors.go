// (c) Copyright boundscheck's authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package boundscheck

import (
	"fmt"

	"github.com/secureir/boundscheck/ir"
)

// ContractViolationError reports input IR that breaks a guarantee the host
// representation is expected to uphold, such as a non-constant struct field
// index. Unlike resolution failures it is fatal for the whole run.
type ContractViolationError struct {
	Func   string
	Instr  ir.Instruction
	Reason string
}

func (e *ContractViolationError) Error() string {
	if e.Instr != nil {
		return fmt.Sprintf("boundscheck: IR contract violation in @%s at %q: %s", e.Func, e.Instr.String(), e.Reason)
	}
	return fmt.Sprintf("boundscheck: IR contract violation in @%s: %s", e.Func, e.Reason)
}

// contractViolation panics with a ContractViolationError. The driver converts
// the panic into an error returned from Process, so one malformed construct
// aborts the run with context instead of corrupting the output module.
func contractViolation(fn *ir.Function, inst ir.Instruction, format string, args ...interface{}) {
	panic(&ContractViolationError{
		Func:   fn.Name,
		Instr:  inst,
		Reason: fmt.Sprintf(format, args...),
	})
}
