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
import   "runtime"
import   "strconv"
import   "strings"

import   "github.com/pborman/getopt"
import . "github.com/pbenner/scatrack"

import   "github.com/pbenner/scatrack/lib/progress"

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

func importGenome(config Config, name string, ucsc bool) Genome {
  genome := Genome{}
  if ucsc {
    PrintStderr(config, 1, "Fetching genome `%s' from UCSC... ", name)
    if g, err := ImportGenomeFromUCSC(name); err != nil {
      PrintStderr(config, 1, "failed\n")
      log.Fatal(err)
    } else {
      genome = g
    }
  } else {
    PrintStderr(config, 1, "Reading genome from `%s'... ", name)
    if err := genome.Import(name); err != nil {
      PrintStderr(config, 1, "failed\n")
      log.Fatal(err)
    }
  }
  PrintStderr(config, 1, "done\n")
  return genome
}

func importOptionalRegions(config Config, filename string) *RegionIndex {
  if filename == "" {
    return nil
  }
  PrintStderr(config, 1, "Reading regions from `%s'... ", filename)
  index, err := ImportRegionIndex(filename)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    log.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")
  return index
}

func countGroups(groups map[string]string, selection []string) int {
  m := make(map[string]struct{})
  for _, label := range groups {
    m[strings.Replace(label, "/", "+", -1)] = struct{}{}
  }
  if len(selection) == 0 {
    return len(m)
  }
  n := 0
  for _, label := range selection {
    if _, ok := m[strings.Replace(label, "/", "+", -1)]; ok {
      n++
    }
  }
  return n
}

/* -------------------------------------------------------------------------- */

func main() {

  config  := Config{}
  options := getopt.New()

  optBinSize             := options.    IntLong("bin-size",              0 ,          10, "track bin size (default: 10)")
  optStrategy            := options. StringLong("counting-strategy",     0 , "fragment", "how each fragment contributes to the track (fragment or insertion)")
  optNormalize           := options. StringLong("normalize",             0 ,         "", "normalization method (RPKM, CPM, BPM, or RPGC)")
  optEffectiveGenomeSize := options. StringLong("effective-genome-size", 0 ,         "", "mappable genome size used by RPGC normalization (default: sum of all chromosome lengths)")
  optSmoothLeft          := options.    IntLong("smooth-left",           0 ,           0, "smoothing window extension to the left [bp]")
  optSmoothRight         := options.    IntLong("smooth-right",          0 ,           0, "smoothing window extension to the right [bp]")
  optBlacklist           := options. StringLong("blacklist",             0 ,         "", "BED file with regions to exclude from the track")
  optIncludeForNorm      := options. StringLong("include-for-norm",      0 ,         "", "BED file, only fragments overlapping these regions count towards normalization")
  optExcludeForNorm      := options. StringLong("exclude-for-norm",      0 ,         "", "BED file, fragments overlapping these regions do not count towards normalization")
  optSelection           := options. StringLong("groups",                0 ,         "", "comma separated list of groups to export (default: all)")
  optMinFraglen          := options.    IntLong("min-fragment-length",   0 ,           0, "drop fragments shorter than the given length")
  optMaxFraglen          := options.    IntLong("max-fragment-length",   0 ,           0, "drop fragments longer than the given length")
  optPrefix              := options. StringLong("prefix",                0 ,         "", "output file name prefix")
  optSuffix              := options. StringLong("suffix",                0 ,      ".bw", "output file name suffix, determines the format (default: .bw; also .bigwig, .bedgraph[.gz|.zst], .bg[.gz|.zst])")
  optTempDir             := options. StringLong("temp-dir",              0 ,         "", "directory for temporary files (default: system temp)")
  optThreads             := options.    IntLong("threads",              't', runtime.NumCPU(), "number of threads (default: number of CPUs)")
  optUCSC                := options.   BoolLong("ucsc",                  0 ,              "interpret <GENOME> as a UCSC assembly name and download chromosome sizes")
  optProgress            := options.   BoolLong("progress",              0 ,              "show progress")
  optVerbose             := options.CounterLong("verbose",              'v',              "verbose level [-v or -vv]")
  optHelp                := options.   BoolLong("help",                 'h',              "print help")

  options.SetParameters("<GENOME> <FRAGMENTS.bed[.gz|.zst]> <GROUPS.tsv> <OUTPUT_DIR>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 4 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose = *optVerbose

  strategy, err := ParseCountingStrategy(*optStrategy)
  if err != nil {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  normalization, err := ParseNormalization(*optNormalize)
  if err != nil {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  effectiveGenomeSize := 0.0
  if *optEffectiveGenomeSize != "" {
    v, err := strconv.ParseFloat(*optEffectiveGenomeSize, 64)
    if err != nil || v <= 0.0 {
      options.PrintUsage(os.Stderr)
      os.Exit(1)
    }
    effectiveGenomeSize = v
  }
  selection := []string(nil)
  if *optSelection != "" {
    selection = strings.Split(*optSelection, ",")
  }

  genome    := importGenome(config, options.Args()[0], *optUCSC)
  fragments := NewFragmentFile(options.Args()[1])
  groups    := importGroups(config, options.Args()[2])
  outputDir := options.Args()[3]

  exportOptions := []interface{}{
    OptionBinSize            {Value: *optBinSize},
    OptionCountingStrategy   {Value: strategy},
    OptionNormalization      {Value: normalization},
    OptionEffectiveGenomeSize{Value: effectiveGenomeSize},
    OptionSmoothLeft         {Value: *optSmoothLeft},
    OptionSmoothRight        {Value: *optSmoothRight},
    OptionBlacklist          {Value: importOptionalRegions(config, *optBlacklist)},
    OptionIncludeForNorm     {Value: importOptionalRegions(config, *optIncludeForNorm)},
    OptionExcludeForNorm     {Value: importOptionalRegions(config, *optExcludeForNorm)},
    OptionSelection          {Value: selection},
    OptionMinFragmentLength  {Value: *optMinFraglen},
    OptionMaxFragmentLength  {Value: *optMaxFraglen},
    OptionTempDir            {Value: *optTempDir},
    OptionThreads            {Value: *optThreads} }

  if config.Verbose >= 2 {
    exportOptions = append(exportOptions, OptionLogger{Value: log.New(os.Stderr, "", 0)})
  }
  if *optProgress {
    meter := progress.New(countGroups(groups, selection))
    meter.PrintStderr()
    exportOptions = append(exportOptions, OptionProgressCallback{Value: meter.Increment})
  }
  PrintStderr(config, 1, "Exporting coverage tracks to `%s'...\n", outputDir)

  result, err := ExportCoverage(fragments, genome, groups, outputDir, *optPrefix, *optSuffix, exportOptions...)
  if err != nil {
    log.Fatal(err)
  }
  PrintStderr(config, 1, "Wrote %d coverage tracks\n", len(result))
}
