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

// Package boundscheck instruments IR modules with runtime buffer
// overflow/underflow guards.
//
// For every pointer dereference *p the pass derives two shadow values,
// p.offset and p.size: the byte offset of p from the base of the object it
// points into, and the byte extent of that object's allocation. Each guarded
// access is preceded by two branches asserting offset >= 0 and
// offset < size (offset + length <= size for bulk operations); a failed
// guard jumps to a per-function error block that signals the verifier
// runtime and never returns. If the instrumented program violates no guard,
// the original program is free of buffer overflows and underflows at the
// resolved sites.
package boundscheck

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/secureir/boundscheck/ir"
)

// funcContext is the per-function working state; it is created fresh for
// each function body and discarded afterwards.
type funcContext struct {
	fn      *ir.Function
	b       *ir.Builder
	state   *ShadowState
	errSink *ir.Block

	// memsafe is the one-shot flag raised by a marker-signal call: the next
	// load or store in the worklist is instrumentation-internal and must
	// not be re-instrumented.
	memsafe bool
}

// Instrumenter runs the bounds-check instrumentation over a module. It
// aggregates counters across functions; per-function analysis state never
// crosses a function boundary.
type Instrumenter struct {
	config Config
	logger *log.Logger
	stats  Metrics

	sizes  SizeOracle
	layout LayoutOracle
	abi    ShadowABI

	inlineAll       bool
	allocFns        []string
	memcpyPrefixes  []string
	memsetPrefixes  []string
	errorFnName     string
	markerFnName    string

	errorFn  *ir.Function
	markerFn *ir.Function
}

// NewInstrumenter builds a new instrumenter for the given configuration.
func NewInstrumenter(conf Config, logger *log.Logger) *Instrumenter {
	if logger == nil {
		logger = log.New(os.Stderr, "[boundscheck] ", log.LstdFlags)
	}
	errorFn, err := conf.GetGlobal(ErrorFn)
	if err != nil {
		errorFn = "verifier.error"
	}
	markerFn, err := conf.GetGlobal(MarkerFn)
	if err != nil {
		markerFn = "verifier.memsafe"
	}
	return &Instrumenter{
		config:         conf,
		logger:         logger,
		sizes:          NewStaticSizeOracle(),
		layout:         NewDataLayoutOracle(),
		inlineAll:      conf.IsGlobalEnabled(InlineAll),
		allocFns:       conf.globalList(AllocFns),
		memcpyPrefixes: conf.globalList(MemcpyFns),
		memsetPrefixes: conf.globalList(MemsetFns),
		errorFnName:    errorFn,
		markerFnName:   markerFn,
	}
}

// SetSizeOracle replaces the default static size oracle.
func (in *Instrumenter) SetSizeOracle(o SizeOracle) { in.sizes = o }

// SetLayoutOracle replaces the default data layout oracle.
func (in *Instrumenter) SetLayoutOracle(o LayoutOracle) { in.layout = o }

// SetShadowABI replaces the default interprocedural ABI provider. It must be
// called before Process; the provider is expected to have already rewritten
// the module's shadowable signatures.
func (in *Instrumenter) SetShadowABI(abi ShadowABI) { in.abi = abi }

// Report returns the aggregated counters of the run.
func (in *Instrumenter) Report() Metrics { return in.stats }

// Process instruments every defined function in m. The returned error is
// non-nil only for IR contract violations; resolution incompleteness is
// reported through the counters instead.
func (in *Instrumenter) Process(m *ir.Module) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if cv, ok := r.(*ContractViolationError); ok {
				err = cv
				return
			}
			panic(r)
		}
	}()

	in.errorFn = m.EnsureFunc(in.errorFnName, &ir.FuncType{Ret: ir.Void})
	in.errorFn.NoReturn = true
	in.markerFn = m.EnsureFunc(in.markerFnName,
		&ir.FuncType{Params: []ir.Type{ir.PointerTo(ir.I64)}, Ret: ir.Void})

	if !in.inlineAll && in.abi == nil {
		// The ABI rewrite pre-declares every shadow parameter before any
		// function is instrumented, so the relay contract holds regardless
		// of function processing order.
		in.abi = NewParamABI(m)
	}

	for _, fn := range m.Funcs {
		in.instrumentFunction(fn)
	}

	in.logger.Printf("checks added: %d, skipped: %d, unable to add: %d",
		in.stats.ChecksAdded, in.stats.ChecksSkipped, in.stats.ChecksUnable)
	if in.stats.ChecksUnable > 0 {
		in.logger.Printf("%d unresolved sites: instrumentation is a partial guarantee", in.stats.ChecksUnable)
	}
	return nil
}

func (in *Instrumenter) instrumentFunction(fn *ir.Function) {
	if fn.IsDeclaration() {
		return
	}
	if in.inlineAll && fn.Name != "main" {
		in.logger.Printf("warning: @%s is not instrumented, only main is instrumented in inline-all mode", fn.Name)
		return
	}

	fc := &funcContext{fn: fn, b: ir.NewBuilder(fn), state: NewShadowState()}

	// The worklist is captured before any CFG mutation so that block
	// splitting during instrumentation cannot perturb the scan.
	var worklist []ir.Instruction
	fn.Instructions(func(inst ir.Instruction) {
		switch inst.(type) {
		case *ir.Load, *ir.Store, *ir.Call, *ir.Ret:
			worklist = append(worklist, inst)
		}
	})

	for _, inst := range worklist {
		switch inst := inst.(type) {
		case *ir.Call:
			in.scanCall(fc, inst)
		case *ir.Ret:
			if !in.inlineAll && in.abi != nil {
				in.relayReturn(fc, inst)
			}
		case *ir.Load:
			in.scanAccess(fc, inst, inst.Addr)
		case *ir.Store:
			in.scanAccess(fc, inst, inst.Addr)
		}
	}

	fc.state.resolveResiduals()
	in.stats.FuncsInstrumented++
}

// scanAccess classifies one load or store from the worklist.
func (in *Instrumenter) scanAccess(fc *funcContext, inst ir.Instruction, ptr ir.Value) {
	if fc.memsafe {
		// A relay read inserted by instrumentation; known safe.
		fc.memsafe = false
		return
	}
	if ir.IsScalarGlobal(ptr) {
		in.stats.ChecksSkipped++
		return
	}
	in.resolveShadow(fc, inst, ptr)
	in.insertAccessCheck(fc, inst, ptr)
}

// scanCall dispatches a call site by callee identity: marker signals arm the
// one-shot skip, bulk memory operations get range checks, and calls to
// shadowable callees get argument relay.
func (in *Instrumenter) scanCall(fc *funcContext, call *ir.Call) {
	name := call.Callee.Name
	switch {
	case strings.HasPrefix(name, in.markerFnName):
		fc.memsafe = true

	case name == in.errorFnName:
		// The error sink's own call.

	case hasAnyPrefix(name, in.memcpyPrefixes):
		if len(call.Args) < 3 {
			contractViolation(fc.fn, call, "bulk copy call with %d arguments", len(call.Args))
		}
		dst, src, length := call.Args[0], call.Args[1], call.Args[2]
		in.resolveShadow(fc, call, src)
		in.resolveShadow(fc, call, dst)
		in.insertRangeCheck(fc, call, src, length)
		in.insertRangeCheck(fc, call, dst, length)

	case hasAnyPrefix(name, in.memsetPrefixes):
		if len(call.Args) < 3 {
			contractViolation(fc.fn, call, "bulk fill call with %d arguments", len(call.Args))
		}
		dst, length := call.Args[0], call.Args[2]
		in.resolveShadow(fc, call, dst)
		in.insertRangeCheck(fc, call, dst, length)

	default:
		if !in.inlineAll && in.abi != nil && in.abi.IsShadowable(call.Callee) {
			in.relayCallArgs(fc, call)
		}
	}
}

func (in *Instrumenter) isAllocFn(name string) bool {
	for _, fn := range in.allocFns {
		if fn == name {
			return true
		}
	}
	return false
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Summary renders a one-line human readable account of the run.
func (in *Instrumenter) Summary() string {
	return fmt.Sprintf("%d checks added, %d skipped, %d unable (%d functions)",
		in.stats.ChecksAdded, in.stats.ChecksSkipped, in.stats.ChecksUnable, in.stats.FuncsInstrumented)
}
