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

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/secureir/boundscheck"
	"github.com/secureir/boundscheck/ir"
	"github.com/secureir/boundscheck/report"
)

const usageText = `
boundscheck - buffer bounds instrumentation for IR modules

boundscheck parses textual IR modules, splices runtime overflow and
underflow guards in front of every resolvable memory access, and reports
how much of the module the guards cover.

USAGE:

	# Instrument a module and print the run report
	$ boundscheck kernel.ir

	# Instrument and write the rewritten module next to the input
	$ boundscheck -emit kernel.ir

	# Save the report in json format
	$ boundscheck -fmt=json -out=report.json kernel.ir

`

var (
	// format output
	flagFormat = flag.String("fmt", "text", "Set report format. Valid options are: json, yaml, or text")

	// output file
	flagOutput = flag.String("out", "", "Set output file for the report")

	// config file
	flagConfig = flag.String("conf", "", "Path to optional config file")

	// quiet
	flagQuiet = flag.Bool("quiet", false, "Only report runs that left unguarded accesses behind")

	// log to file or stderr
	flagLogfile = flag.String("log", "", "Log messages to file rather than stderr")

	// write the instrumented module back out
	flagEmit = flag.Bool("emit", false, "Write each instrumented module to <input>.boc.ir")

	// instrument main only, without the interprocedural shadow ABI
	flagInlineAll = flag.Bool("inline-all", false, "Assume all calls are inlined and instrument only main")

	// colorize the text report
	flagColor = flag.Bool("color", true, "Colorize the text report")

	logger *log.Logger
)

func usage() {
	fmt.Fprint(os.Stderr, usageText)
	fmt.Fprint(os.Stderr, "OPTIONS:\n\n")
	flag.PrintDefaults()
	fmt.Fprint(os.Stderr, "\n")
}

func loadConfig(configFile string) (boundscheck.Config, error) {
	config := boundscheck.NewConfig()
	if configFile != "" {
		file, err := os.Open(configFile) // #nosec
		if err != nil {
			return nil, err
		}
		defer file.Close()
		if _, err := config.ReadFrom(file); err != nil {
			return nil, err
		}
	}
	if *flagInlineAll {
		config.SetGlobal(boundscheck.InlineAll, "true")
	}
	return config, nil
}

func saveReport(filename, format string, data *boundscheck.ReportInfo) error {
	if filename == "" {
		return report.CreateReport(os.Stdout, format, *flagColor, data)
	}
	outfile, err := os.Create(filename) // #nosec
	if err != nil {
		return err
	}
	defer outfile.Close()
	return report.CreateReport(outfile, format, false, data)
}

func emitModule(path string, m *ir.Module) error {
	outfile, err := os.Create(path + ".boc.ir") // #nosec
	if err != nil {
		return err
	}
	defer outfile.Close()
	_, err = m.WriteTo(outfile)
	return err
}

func instrumentFile(conf boundscheck.Config, path string) (*boundscheck.Metrics, error) {
	f, err := os.Open(path) // #nosec
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ir.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	instr := boundscheck.NewInstrumenter(conf, logger)
	if err := instr.Process(m); err != nil {
		return nil, fmt.Errorf("instrumenting %s: %w", path, err)
	}
	logger.Printf("%s: %s", path, instr.Summary())

	if *flagEmit {
		if err := emitModule(path, m); err != nil {
			return nil, err
		}
	}
	stats := instr.Report()
	return &stats, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "\nError: FILE [FILE...] expected")
		flag.Usage()
		os.Exit(1)
	}

	logWriter := os.Stderr
	if *flagLogfile != "" {
		var err error
		logWriter, err = os.Create(*flagLogfile) // #nosec
		if err != nil {
			log.Fatalf("Could not open log file: %s", err)
		}
		defer logWriter.Close()
	}
	logger = log.New(logWriter, "[boundscheck] ", log.LstdFlags)

	config, err := loadConfig(*flagConfig)
	if err != nil {
		logger.Fatal(err)
	}

	stats := &boundscheck.Metrics{}
	for _, path := range flag.Args() {
		fileStats, err := instrumentFile(config, path)
		if err != nil {
			logger.Fatal(err)
		}
		stats.Merge(*fileStats)
	}

	data := boundscheck.NewReportInfo(flag.Arg(0), stats)
	if !*flagQuiet || data.Partial {
		if err := saveReport(*flagOutput, *flagFormat, data); err != nil {
			logger.Fatal(err)
		}
	}

	if data.Partial {
		os.Exit(1)
	}
}
