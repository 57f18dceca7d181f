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

// Metrics counts the outcome of every check site encountered during one
// instrumentation run. A non-zero ChecksUnable means the instrumented module
// carries only a partial guarantee.
type Metrics struct {
	// ChecksAdded counts guards spliced into the CFG.
	ChecksAdded int `json:"checks_added" yaml:"checks_added"`
	// ChecksSkipped counts accesses statically proven to need no guard,
	// such as direct scalar-global references.
	ChecksSkipped int `json:"checks_skipped" yaml:"checks_skipped"`
	// ChecksUnable counts accesses whose shadow pair could not be resolved.
	ChecksUnable int `json:"checks_unable" yaml:"checks_unable"`
	// FuncsInstrumented counts function bodies processed.
	FuncsInstrumented int `json:"funcs_instrumented" yaml:"funcs_instrumented"`
}

// Merge accumulates other into m.
func (m *Metrics) Merge(other Metrics) {
	m.ChecksAdded += other.ChecksAdded
	m.ChecksSkipped += other.ChecksSkipped
	m.ChecksUnable += other.ChecksUnable
	m.FuncsInstrumented += other.FuncsInstrumented
}
