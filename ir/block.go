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

package ir

import "fmt"

// Block is a basic block: a straight-line instruction sequence ended by a
// terminator.
type Block struct {
	Name   string
	fn     *Function
	Instrs []Instruction
}

// Parent returns the function owning the block.
func (b *Block) Parent() *Function { return b.fn }

// Terminator returns the block's terminator, or nil while the block is still
// under construction.
func (b *Block) Terminator() Terminator {
	if len(b.Instrs) == 0 {
		return nil
	}
	t, _ := b.Instrs[len(b.Instrs)-1].(Terminator)
	return t
}

// append adds inst at the end of the block.
func (b *Block) append(inst Instruction) {
	inst.setParent(b)
	b.Instrs = append(b.Instrs, inst)
}

// indexOf returns the position of inst within the block.
func (b *Block) indexOf(inst Instruction) int {
	for i, in := range b.Instrs {
		if in == inst {
			return i
		}
	}
	panic(fmt.Sprintf("ir: instruction %q not in block %%%s", inst.String(), b.Name))
}

// insertBefore places inst immediately before pos.
func (b *Block) insertBefore(inst, pos Instruction) {
	i := b.indexOf(pos)
	inst.setParent(b)
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[i+1:], b.Instrs[i:])
	b.Instrs[i] = inst
}

// SplitBefore moves pos and every following instruction into a fresh block
// appended to the parent function. The original block is left without a
// terminator; the caller is expected to install a branch. The new block
// inherits b's outgoing edges, so phis in the former successors are repointed
// at it.
func (b *Block) SplitBefore(pos Instruction, name string) *Block {
	i := b.indexOf(pos)
	nb := b.fn.NewBlock(name)
	nb.Instrs = append(nb.Instrs, b.Instrs[i:]...)
	for _, inst := range nb.Instrs {
		inst.setParent(nb)
	}
	b.Instrs = b.Instrs[:i]
	for _, succ := range nb.Succs() {
		for _, inst := range succ.Instrs {
			phi, ok := inst.(*Phi)
			if !ok {
				break
			}
			for n := range phi.Incomings {
				if phi.Incomings[n].Pred == b {
					phi.Incomings[n].Pred = nb
				}
			}
		}
	}
	return nb
}

// ReplaceTerminator removes the current terminator, if any, and installs t.
func (b *Block) ReplaceTerminator(t Terminator) {
	if cur := b.Terminator(); cur != nil {
		b.Instrs = b.Instrs[:len(b.Instrs)-1]
	}
	b.append(t)
}

// FirstNonPhi returns the first instruction in the block that is not a phi,
// or nil for an empty block.
func (b *Block) FirstNonPhi() Instruction {
	for _, inst := range b.Instrs {
		if _, ok := inst.(*Phi); !ok {
			return inst
		}
	}
	return nil
}

// Succs returns the block's successor blocks, in terminator order.
func (b *Block) Succs() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	return t.Succs()
}
