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

package text

import (
	_ "embed" // use go embed to import template
	"fmt"
	"io"
	"text/template"

	"github.com/gookit/color"

	"github.com/secureir/boundscheck"
)

var (
	warningTheme = color.New(color.FgBlack, color.BgYellow)
	successTheme = color.New(color.FgBlack, color.BgGreen)

	//go:embed template.txt
	templateContent string
)

// WriteReport write a (colorized) report in text format
func WriteReport(w io.Writer, data *boundscheck.ReportInfo, enableColor bool) error {
	t, e := template.
		New("boundscheck").
		Funcs(plainTextFuncMap(enableColor)).
		Parse(templateContent)
	if e != nil {
		return e
	}

	return t.Execute(w, data)
}

func plainTextFuncMap(enableColor bool) template.FuncMap {
	if enableColor {
		return template.FuncMap{
			"coverage": coverage,
			"danger":   color.Danger.Render,
			"notice":   color.Notice.Render,
			"success":  color.Success.Render,
		}
	}

	// by default those functions return the given content untouched
	return template.FuncMap{
		"coverage": func(t string, partial bool) string {
			return t
		},
		"danger":  fmt.Sprint,
		"notice":  fmt.Sprint,
		"success": fmt.Sprint,
	}
}

// coverage returns content t colored based on whether the run left
// unresolved check sites behind
func coverage(t string, partial bool) string {
	if partial {
		return warningTheme.Sprint(t)
	}
	return successTheme.Sprint(t)
}
