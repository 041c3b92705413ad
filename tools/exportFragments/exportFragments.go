/* Copyright (C) 2021 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package main

/* -------------------------------------------------------------------------- */

import   "bufio"
import   "fmt"
import   "log"
import   "os"
import   "strings"

import   "github.com/pborman/getopt"
import . "github.com/pbenner/scatrack"

/* -------------------------------------------------------------------------- */

type Config struct {
  Verbose int
}

/* i/o
 * -------------------------------------------------------------------------- */

func PrintStderr(config Config, level int, format string, args ...interface{}) {
  if config.Verbose >= level {
    fmt.Fprintf(os.Stderr, format, args...)
  }
}

/* -------------------------------------------------------------------------- */

func importGroups(config Config, filename string) map[string]string {
  PrintStderr(config, 1, "Reading cell groups from `%s'... ", filename)
  f, err := os.Open(filename)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    log.Fatal(err)
  }
  defer f.Close()

  groups  := make(map[string]string)
  scanner := bufio.NewScanner(f)
  for i := 1; scanner.Scan(); i++ {
    line := strings.TrimSpace(scanner.Text())
    if len(line) == 0 || strings.HasPrefix(line, "#") {
      continue
    }
    fields := strings.Fields(line)
    if len(fields) != 2 {
      PrintStderr(config, 1, "failed\n")
      log.Fatalf("parsing `%s' failed at line `%d': expected two columns [barcode, group]", filename, i)
    }
    groups[fields[0]] = fields[1]
  }
  if err := scanner.Err(); err != nil {
    PrintStderr(config, 1, "failed\n")
    log.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")
  return groups
}

/* -------------------------------------------------------------------------- */

func main() {

  config  := Config{}
  options := getopt.New()

  optSelection  := options. StringLong("groups",               0 ,        "", "comma separated list of groups to export (default: all)")
  optMinFraglen := options.    IntLong("min-fragment-length",  0 ,          0, "drop fragments shorter than the given length")
  optMaxFraglen := options.    IntLong("max-fragment-length",  0 ,          0, "drop fragments longer than the given length")
  optPrefix     := options. StringLong("prefix",               0 ,        "", "output file name prefix")
  optSuffix     := options. StringLong("suffix",               0 , ".bed.gz", "output file name suffix (default: .bed.gz; use .zst for zstd or .bed for no compression)")
  optLevel      := options.    IntLong("compression-level",    0 ,          6, "compression level (default: 6)")
  optVerbose    := options.CounterLong("verbose",             'v',             "verbose level [-v or -vv]")
  optHelp       := options.   BoolLong("help",                'h',             "print help")

  options.SetParameters("<FRAGMENTS.bed[.gz|.zst]> <GROUPS.tsv> <OUTPUT_DIR>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 3 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose = *optVerbose

  selection := []string(nil)
  if *optSelection != "" {
    selection = strings.Split(*optSelection, ",")
  }
  fragments := NewFragmentFile(options.Args()[0])
  groups    := importGroups(config, options.Args()[1])
  outputDir := options.Args()[2]

  exportOptions := []interface{}{
    OptionSelection        {Value: selection},
    OptionMinFragmentLength{Value: *optMinFraglen},
    OptionMaxFragmentLength{Value: *optMaxFraglen},
    OptionCompressionLevel {Value: *optLevel} }

  if config.Verbose >= 2 {
    exportOptions = append(exportOptions, OptionLogger{Value: log.New(os.Stderr, "", 0)})
  }
  PrintStderr(config, 1, "Exporting fragments to `%s'...\n", outputDir)

  result, err := ExportFragments(fragments, groups, outputDir, *optPrefix, *optSuffix, exportOptions...)
  if err != nil {
    log.Fatal(err)
  }
  PrintStderr(config, 1, "Wrote fragments of %d groups\n", len(result))
}
