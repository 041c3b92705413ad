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

import   "fmt"
import   "log"
import   "os"

import   "github.com/pborman/getopt"
import . "github.com/pbenner/scatrack"

import   "gonum.org/v1/plot"
import   "gonum.org/v1/plot/plotter"
import   "gonum.org/v1/plot/plotutil"
import   "gonum.org/v1/plot/vg"

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

func fragmentSizes(config Config, filename string, maxLength int) []int {
  PrintStderr(config, 1, "Reading fragments from `%s'... ", filename)
  counts := make([]int, maxLength+1)
  file   := NewFragmentFile(filename)
  for t := range file.Read() {
    if t.Error != nil {
      PrintStderr(config, 1, "failed\n")
      log.Fatal(t.Error)
    }
    if length := t.Length(); length <= maxLength {
      counts[length]++
    }
  }
  PrintStderr(config, 1, "done\n")
  return counts
}

func saveTable(config Config, filename string, counts []int) {
  f, err := os.Create(filename)
  if err != nil {
    log.Fatalf("opening `%s' failed: %v", filename, err)
  }
  defer f.Close()

  for i := 0; i < len(counts); i++ {
    fmt.Fprintf(f, "%d\t%d\n", i, counts[i])
  }
  PrintStderr(config, 1, "Wrote fragment size distribution to `%s'\n", filename)
}

func savePlot(config Config, filename string, counts []int) {
  xy := make(plotter.XYs, len(counts))
  for i := 0; i < len(counts); i++ {
    xy[i].X = float64(i)
    xy[i].Y = float64(counts[i])
  }
  p := plot.New()
  p.Title.Text   = ""
  p.X.Label.Text = "fragment size [bp]"
  p.Y.Label.Text = "count"

  if err := plotutil.AddLines(p, xy); err != nil {
    log.Fatal(err)
  }
  if err := p.Save(8*vg.Inch, 4*vg.Inch, filename); err != nil {
    log.Fatal(err)
  }
  PrintStderr(config, 1, "Wrote fragment size distribution plot to `%s'\n", filename)
}

/* -------------------------------------------------------------------------- */

func main() {

  config  := Config{}
  options := getopt.New()

  optMaxLength := options.    IntLong("max-length",  0 , 1000, "maximum fragment length (default: 1000)")
  optPlot      := options. StringLong("plot",        0 ,   "", "save a line plot to the given file [format: pdf, png, or svg]")
  optVerbose   := options.CounterLong("verbose",    'v',       "verbose level [-v or -vv]")
  optHelp      := options.   BoolLong("help",       'h',       "print help")

  options.SetParameters("<FRAGMENTS.bed[.gz|.zst]> <RESULT.table>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 2 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose = *optVerbose

  if *optMaxLength < 1 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  counts := fragmentSizes(config, options.Args()[0], *optMaxLength)

  saveTable(config, options.Args()[1], counts)

  if *optPlot != "" {
    savePlot(config, *optPlot, counts)
  }
}
