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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// GlobalOption names a top-level configuration setting.
type GlobalOption string

const (
	// InlineAll assumes the whole program has been inlined into main:
	// interprocedural shadow propagation is disabled and only main is
	// instrumented.
	InlineAll GlobalOption = "inline-all"
	// ErrorFn is the name of the external non-returning error signal.
	ErrorFn GlobalOption = "error-fn"
	// MarkerFn is the name of the external marker signal emitted around
	// instrumentation-internal relay reads.
	MarkerFn GlobalOption = "marker-fn"
	// AllocFns is a comma separated list of heap-allocation functions whose
	// single integer argument is the allocation byte size.
	AllocFns GlobalOption = "alloc-fns"
	// MemcpyFns is a comma separated list of name prefixes for bulk
	// copy/move calls checked on both source and destination.
	MemcpyFns GlobalOption = "memcpy-fns"
	// MemsetFns is a comma separated list of name prefixes for bulk fill
	// calls checked on the destination.
	MemsetFns GlobalOption = "memset-fns"
)

const globalsKey = "globals"

// Config provides configuration and customization to the instrumentation
// pass.
type Config map[string]interface{}

// NewConfig initializes a new configuration instance with defaults matching
// the verifier runtime conventions.
func NewConfig() Config {
	cfg := make(Config)
	cfg[globalsKey] = map[GlobalOption]string{
		ErrorFn:   "verifier.error",
		MarkerFn:  "verifier.memsafe",
		AllocFns:  "malloc",
		MemcpyFns: "llvm.memcpy,llvm.memmove,memcpy,memmove",
		MemsetFns: "llvm.memset,memset",
	}
	return cfg
}

// ReadFrom implements io.ReaderFrom, loading configuration from JSON.
func (c Config) ReadFrom(r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return int64(len(data)), err
	}
	if err = json.Unmarshal(data, &c); err != nil {
		return int64(len(data)), err
	}
	c.convertGlobals()
	return int64(len(data)), nil
}

// convertGlobals turns a freshly unmarshalled globals section back into its
// typed form so GetGlobal keeps working on loaded configurations.
func (c Config) convertGlobals() {
	jsonGlobals, ok := c[globalsKey].(map[string]interface{})
	if !ok {
		return
	}
	globals := make(map[GlobalOption]string, len(jsonGlobals))
	for k, v := range jsonGlobals {
		globals[GlobalOption(k)] = fmt.Sprintf("%v", v)
	}
	c[globalsKey] = globals
}

// WriteTo implements io.WriterTo, saving the configuration as JSON.
func (c Config) WriteTo(w io.Writer) (int64, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return int64(len(data)), err
	}
	return io.Copy(w, bytes.NewReader(data))
}

// GetGlobal returns value associated with a global configuration option.
func (c Config) GetGlobal(option GlobalOption) (string, error) {
	if globals, ok := c[globalsKey]; ok {
		if settings, ok := globals.(map[GlobalOption]string); ok {
			if value, ok := settings[option]; ok {
				return value, nil
			}
			return "", fmt.Errorf("global setting for %s not found", option)
		}
	}
	return "", fmt.Errorf("no global config options found")
}

// SetGlobal associates a value with a global configuration option.
func (c Config) SetGlobal(option GlobalOption, value string) {
	if globals, ok := c[globalsKey]; ok {
		if settings, ok := globals.(map[GlobalOption]string); ok {
			settings[option] = value
		}
	}
}

// IsGlobalEnabled checks if a global option is enabled.
func (c Config) IsGlobalEnabled(option GlobalOption) bool {
	value, err := c.GetGlobal(option)
	if err != nil {
		return false
	}
	return value == "true" || value == "enabled"
}

// globalList splits a comma separated global option into its entries.
func (c Config) globalList(option GlobalOption) []string {
	value, err := c.GetGlobal(option)
	if err != nil || value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
