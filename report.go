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
	"time"

	"github.com/google/uuid"
)

// ReportInfo is the serializable account of one instrumentation run.
type ReportInfo struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Module      string    `json:"module" yaml:"module"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Stats       *Metrics  `json:"stats" yaml:"stats"`
	// Partial is set when some check sites could not be resolved, so the
	// instrumented module carries only a partial guarantee.
	Partial bool `json:"partial" yaml:"partial"`
}

// NewReportInfo instantiates a ReportInfo for the given module and metrics.
func NewReportInfo(module string, stats *Metrics) *ReportInfo {
	return &ReportInfo{
		RunID:       uuid.NewString(),
		Module:      module,
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
		Partial:     stats.ChecksUnable > 0,
	}
}
