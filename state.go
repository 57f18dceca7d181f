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
	"golang.org/x/tools/container/intsets"

	"github.com/secureir/boundscheck/ir"
)

// phiSlot is a pending-fill obligation: incoming slot index of a synthesized
// shadow phi pair, blocked on some value's resolution.
type phiSlot struct {
	off   *ir.Phi
	size  *ir.Phi
	index int
}

// ShadowState holds the per-function memo tables of the resolver. Offsets
// and sizes are keyed by the stable value identifier of the pointer they
// describe; the visited set breaks recursion on cyclic def-use chains. A
// value present in the tables is never overwritten, except for the phi
// back-patch protocol which rewrites placeholder incoming slots of
// synthesized shadow phis.
type ShadowState struct {
	offsets map[ir.ValueID]ir.Value
	sizes   map[ir.ValueID]ir.Value

	// elemCounts marks entries whose size is an element count rather than
	// a byte count, produced by dynamically sized stack allocations. The
	// first indexing step through such a pointer rescales to bytes.
	elemCounts map[ir.ValueID]bool

	visited intsets.Sparse

	// pending maps a blocked value to the shadow phi slots waiting for it.
	pending map[ir.ValueID][]phiSlot
}

// NewShadowState returns an empty state for one function.
func NewShadowState() *ShadowState {
	return &ShadowState{
		offsets:    make(map[ir.ValueID]ir.Value),
		sizes:      make(map[ir.ValueID]ir.Value),
		elemCounts: make(map[ir.ValueID]bool),
		pending:    make(map[ir.ValueID][]phiSlot),
	}
}

// Pair returns the memoized shadow pair for v.
func (s *ShadowState) Pair(v ir.Value) (offset, size ir.Value, ok bool) {
	id := v.ID()
	if id == ir.NoID {
		return nil, nil, false
	}
	offset, okOff := s.offsets[id]
	size, okSize := s.sizes[id]
	if !okOff || !okSize {
		return nil, nil, false
	}
	return offset, size, true
}

// record memoizes the pair for v and fulfills any phi slots blocked on it.
// Values without identity (constants) are not memoized; their pairs are
// recomputed structurally, which is deterministic.
func (s *ShadowState) record(v ir.Value, offset, size ir.Value) {
	id := v.ID()
	if id == ir.NoID {
		return
	}
	if _, exists := s.offsets[id]; !exists {
		s.offsets[id] = offset
	}
	if _, exists := s.sizes[id]; !exists {
		s.sizes[id] = size
	}
	s.fulfill(id)
}

// fulfill back-patches every shadow phi slot waiting on id.
func (s *ShadowState) fulfill(id ir.ValueID) {
	slots, ok := s.pending[id]
	if !ok {
		return
	}
	offset, okOff := s.offsets[id]
	size, okSize := s.sizes[id]
	if !okOff || !okSize {
		return
	}
	for _, slot := range slots {
		if ir.IsUndef(slot.off.Incomings[slot.index].Val) {
			slot.off.SetIncoming(slot.index, offset)
		}
		if ir.IsUndef(slot.size.Incomings[slot.index].Val) {
			slot.size.SetIncoming(slot.index, size)
		}
	}
	delete(s.pending, id)
}

// block registers a pending-fill obligation for a value that could not be
// resolved while populating a shadow phi.
func (s *ShadowState) block(v ir.Value, slot phiSlot) {
	id := v.ID()
	if id == ir.NoID {
		return
	}
	s.pending[id] = append(s.pending[id], slot)
}

// resolveResiduals is the end-of-function best-effort pass: any obligation
// whose blocked value has since been resolved is fulfilled now. Obligations
// that remain blocked keep their undef placeholders; multi-level cyclic phi
// chains are not guaranteed to converge.
func (s *ShadowState) resolveResiduals() {
	for id := range s.pending {
		s.fulfill(id)
	}
}
