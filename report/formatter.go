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

// Package report renders instrumentation run reports in the supported
// output formats.
package report

import (
	"fmt"
	"io"

	"github.com/secureir/boundscheck"
	"github.com/secureir/boundscheck/report/json"
	"github.com/secureir/boundscheck/report/text"
	"github.com/secureir/boundscheck/report/yaml"
)

// CreateReport writes the run report in the requested format. The formats
// currently accepted are: json, yaml and text.
func CreateReport(w io.Writer, format string, enableColor bool, data *boundscheck.ReportInfo) error {
	switch format {
	case "json":
		return json.WriteReport(w, data)
	case "yaml":
		return yaml.WriteReport(w, data)
	case "text", "":
		return text.WriteReport(w, data, enableColor)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
