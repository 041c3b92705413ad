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

package scatrack

/* -------------------------------------------------------------------------- */

import "bufio"
import "fmt"
import "io"
import "io/ioutil"
import "log"
import "os"
import "path/filepath"
import "runtime"
import "sort"
import "strings"
import "sync"

import "github.com/pbenner/threadpool"

/* -------------------------------------------------------------------------- */

type OptionLogger struct {
  Value *log.Logger
}

type OptionBinSize struct {
  Value int
}

type OptionCountingStrategy struct {
  Value CountingStrategy
}

type OptionNormalization struct {
  Value Normalization
}

type OptionEffectiveGenomeSize struct {
  Value float64
}

type OptionSmoothLeft struct {
  Value int
}

type OptionSmoothRight struct {
  Value int
}

type OptionBlacklist struct {
  Value *RegionIndex
}

type OptionIncludeForNorm struct {
  Value *RegionIndex
}

type OptionExcludeForNorm struct {
  Value *RegionIndex
}

type OptionThreads struct {
  Value int
}

type OptionTempDir struct {
  Value string
}

type OptionSortBatchSize struct {
  Value int
}

type OptionSelection struct {
  Value []string
}

type OptionMinFragmentLength struct {
  Value int
}

type OptionMaxFragmentLength struct {
  Value int
}

type OptionCompressionLevel struct {
  Value int
}

type OptionProgressCallback struct {
  Value func()
}

type OptionBarcodeSubstitution struct {
  Value map[string]string
}

/* -------------------------------------------------------------------------- */

type ExportFragmentsConfig struct {
  Logger              *log.Logger
  Selection           []string
  MinFragmentLength     int
  MaxFragmentLength     int
  CompressionLevel      int
  BarcodeSubstitution map[string]string
}

func ExportFragmentsDefaultConfig() ExportFragmentsConfig {
  config := ExportFragmentsConfig{}
  // set default values
  config.Logger           = log.New(ioutil.Discard, "", 0)
  config.CompressionLevel = 6
  return config
}

type ExportCoverageConfig struct {
  Logger              *log.Logger
  BinSize               int
  CountingStrategy      CountingStrategy
  Normalization         Normalization
  EffectiveGenomeSize   float64
  SmoothLeft            int
  SmoothRight           int
  Blacklist            *RegionIndex
  IncludeForNorm       *RegionIndex
  ExcludeForNorm       *RegionIndex
  Threads               int
  TempDir               string
  SortBatchSize         int
  Selection           []string
  MinFragmentLength     int
  MaxFragmentLength     int
  CompressionLevel      int
  ProgressCallback      func()
}

func ExportCoverageDefaultConfig() ExportCoverageConfig {
  config := ExportCoverageConfig{}
  // set default values
  config.Logger           = log.New(ioutil.Discard, "", 0)
  config.BinSize          = 10
  config.CountingStrategy = CountFragment
  config.Threads          = runtime.NumCPU()
  config.SortBatchSize    = DefaultSortBatchSize
  config.CompressionLevel = 6
  return config
}

/* output format
 * -------------------------------------------------------------------------- */

type trackFormat int

const (
  formatBedGraph trackFormat = iota
  formatBigWig
)

// determine the output format and compression from the file suffix
func trackFormatFromSuffix(suffix string) (trackFormat, Compression, error) {
  s := strings.ToLower(suffix)
  compression := CompressionNone
  if strings.HasSuffix(s, ".gz") {
    compression = CompressionGzip
    s = strings.TrimSuffix(s, ".gz")
  } else
  if strings.HasSuffix(s, ".zst") {
    compression = CompressionZstd
    s = strings.TrimSuffix(s, ".zst")
  }
  switch {
  case strings.HasSuffix(s, ".bw"), strings.HasSuffix(s, ".bigwig"):
    if compression != CompressionNone {
      return formatBigWig, compression, fmt.Errorf("bigWig files cannot be compressed externally")
    }
    return formatBigWig, compression, nil
  case strings.HasSuffix(s, ".bedgraph"), strings.HasSuffix(s, ".bg"):
    return formatBedGraph, compression, nil
  }
  return formatBedGraph, compression, fmt.Errorf("cannot determine output format from suffix `%s'", suffix)
}

func compressionFromSuffix(suffix string) Compression {
  s := strings.ToLower(suffix)
  switch {
  case strings.HasSuffix(s, ".gz"):
    return CompressionGzip
  case strings.HasSuffix(s, ".zst"):
    return CompressionZstd
  }
  return CompressionNone
}

/* -------------------------------------------------------------------------- */

// distinct group labels, restricted to the given selection
func groupLabels(groups map[string]string, selection []string) []string {
  labels := []string{}
  m := make(map[string]struct{})
  for _, label := range groups {
    m[label] = struct{}{}
  }
  if len(selection) > 0 {
    n := make(map[string]struct{})
    for _, label := range selection {
      if _, ok := m[label]; ok {
        n[label] = struct{}{}
      }
    }
    m = n
  }
  for label := range m {
    labels = append(labels, label)
  }
  sort.Strings(labels)
  return labels
}

/* -------------------------------------------------------------------------- */

type fragmentWriter struct {
  writer  io.WriteCloser
  channel chan Fragment
  err     error
}

func (gw *fragmentWriter) run(wg *sync.WaitGroup) {
  defer wg.Done()
  w := bufio.NewWriter(gw.writer)
  for fragment := range gw.channel {
    if gw.err != nil {
      continue
    }
    if _, err := fmt.Fprintf(w, "%s\n", fragment.String()); err != nil {
      gw.err = err
    }
  }
  if err := w.Flush(); err != nil && gw.err == nil {
    gw.err = err
  }
  if err := gw.writer.Close(); err != nil && gw.err == nil {
    gw.err = err
  }
}

// ExportFragments writes the fragments of every group to a separate
// BED file named <prefix><group><suffix> in the given directory. The
// groups argument assigns a group label to every cell barcode,
// fragments with unlisted barcodes are dropped. Each output file is
// written by a single goroutine that owns the file handle. The result
// maps group labels to the paths of the written files.
func ExportFragments(fragments FragmentFile, groups map[string]string, dir, prefix, suffix string, options ...interface{}) (map[string]string, error) {

  config := ExportFragmentsDefaultConfig()

  for _, option := range options {
    switch opt := option.(type) {
    case OptionLogger:
      config.Logger = opt.Value
    case OptionSelection:
      config.Selection = opt.Value
    case OptionMinFragmentLength:
      config.MinFragmentLength = opt.Value
    case OptionMaxFragmentLength:
      config.MaxFragmentLength = opt.Value
    case OptionCompressionLevel:
      config.CompressionLevel = opt.Value
    case OptionBarcodeSubstitution:
      config.BarcodeSubstitution = opt.Value
    default:
      return nil, fmt.Errorf("ExportFragments(): invalid option: %v", opt)
    }
  }
  fragments.MinLength = config.MinFragmentLength
  fragments.MaxLength = config.MaxFragmentLength

  labels := groupLabels(groups, config.Selection)
  for _, label := range labels {
    if !isSanitizedFilename(prefix + label + suffix) {
      return nil, fmt.Errorf("group `%s' does not yield a valid file name", label)
    }
  }
  if err := os.MkdirAll(dir, 0755); err != nil {
    return nil, err
  }
  compression := compressionFromSuffix(suffix)

  config.Logger.Printf("writing fragments of %d groups to `%s'", len(labels), dir)

  result  := make(map[string]string)
  writers := make(map[string]*fragmentWriter)
  wg      := sync.WaitGroup{}
  for _, label := range labels {
    filename := filepath.Join(dir, prefix+label+suffix)
    writer, err := openFileForWrite(filename, compression, config.CompressionLevel)
    if err != nil {
      for _, gw := range writers {
        close(gw.channel)
      }
      wg.Wait()
      return nil, err
    }
    gw := &fragmentWriter{writer: writer, channel: make(chan Fragment, 1024)}
    wg.Add(1)
    go gw.run(&wg)
    writers[label] = gw
    result [label] = filename
  }
  var readErr error
  for t := range fragments.Read() {
    if readErr != nil {
      continue
    }
    if t.Error != nil {
      readErr = t.Error
      continue
    }
    label, ok := groups[t.Barcode]
    if !ok {
      continue
    }
    if gw, ok := writers[label]; ok {
      if s, ok := config.BarcodeSubstitution[t.Barcode]; ok {
        t.Fragment.Barcode = s
      }
      gw.channel <- t.Fragment
    }
  }
  for _, gw := range writers {
    close(gw.channel)
  }
  wg.Wait()

  if readErr != nil {
    return nil, readErr
  }
  for _, label := range labels {
    if err := writers[label].err; err != nil {
      return nil, fmt.Errorf("writing fragments of group `%s' failed: %v", label, err)
    }
  }
  return result, nil
}

/* -------------------------------------------------------------------------- */

func exportGroupCoverage(config ExportCoverageConfig, genome Genome, format trackFormat, compression Compression, tmpDir, fragmentFilename, outputFilename string) error {

  sorter := NewRegionSorter(tmpDir, config.SortBatchSize)
  defer sorter.Drop()

  file := NewFragmentFile(fragmentFilename)
  for t := range file.Read() {
    if t.Error != nil {
      return t.Error
    }
    regions, err := config.CountingStrategy.Regions(t.Fragment)
    if err != nil {
      return err
    }
    for _, r := range regions {
      if err := sorter.Add(r); err != nil {
        return err
      }
    }
  }
  records, count, err := AggregateRegions(sorter.Read(), genome, config.BinSize, config.Blacklist, config.IncludeForNorm, config.ExcludeForNorm)
  if err != nil {
    return err
  }
  if err := config.Normalization.Apply(records, count, config.BinSize, config.EffectiveGenomeSize, genome); err != nil {
    return err
  }
  records, err = SmoothBedGraph(records, config.SmoothLeft, config.SmoothRight, genome)
  if err != nil {
    return err
  }
  switch format {
  case formatBigWig:
    return ExportBigWig(outputFilename, records, genome)
  default:
    return ExportBedGraph(outputFilename, records, compression)
  }
}

// ExportCoverage computes a coverage track for every group of cells
// and writes it to <prefix><group><suffix> in the given directory. The
// suffix determines the output format, either bigWig (.bw, .bigwig) or
// bedGraph (.bedgraph, .bg), the latter optionally with a .gz or .zst
// compression suffix. Slashes in group labels are replaced by `+'.
// Groups are processed in parallel; if some groups fail the remaining
// groups still run to completion and their tracks remain on disk, while
// the call returns the first error.
func ExportCoverage(fragments FragmentFile, genome Genome, groups map[string]string, dir, prefix, suffix string, options ...interface{}) (map[string]string, error) {

  config := ExportCoverageDefaultConfig()

  for _, option := range options {
    switch opt := option.(type) {
    case OptionLogger:
      config.Logger = opt.Value
    case OptionBinSize:
      config.BinSize = opt.Value
    case OptionCountingStrategy:
      config.CountingStrategy = opt.Value
    case OptionNormalization:
      config.Normalization = opt.Value
    case OptionEffectiveGenomeSize:
      config.EffectiveGenomeSize = opt.Value
    case OptionSmoothLeft:
      config.SmoothLeft = opt.Value
    case OptionSmoothRight:
      config.SmoothRight = opt.Value
    case OptionBlacklist:
      config.Blacklist = opt.Value
    case OptionIncludeForNorm:
      config.IncludeForNorm = opt.Value
    case OptionExcludeForNorm:
      config.ExcludeForNorm = opt.Value
    case OptionThreads:
      config.Threads = opt.Value
    case OptionTempDir:
      config.TempDir = opt.Value
    case OptionSortBatchSize:
      config.SortBatchSize = opt.Value
    case OptionSelection:
      config.Selection = opt.Value
    case OptionMinFragmentLength:
      config.MinFragmentLength = opt.Value
    case OptionMaxFragmentLength:
      config.MaxFragmentLength = opt.Value
    case OptionCompressionLevel:
      config.CompressionLevel = opt.Value
    case OptionProgressCallback:
      config.ProgressCallback = opt.Value
    default:
      return nil, fmt.Errorf("ExportCoverage(): invalid option: %v", opt)
    }
  }
  if config.BinSize < 1 {
    return nil, fmt.Errorf("ExportCoverage(): invalid bin size `%d'", config.BinSize)
  }
  if config.Threads < 1 {
    return nil, fmt.Errorf("ExportCoverage(): invalid number of threads `%d'", config.Threads)
  }
  if config.CountingStrategy == CountBaseValue {
    return nil, fmt.Errorf("ExportCoverage(): counting strategy `%s' is not supported", config.CountingStrategy)
  }
  format, compression, err := trackFormatFromSuffix(suffix)
  if err != nil {
    return nil, err
  }
  if err := os.MkdirAll(dir, 0755); err != nil {
    return nil, err
  }
  tmpDir, err := ioutil.TempDir(config.TempDir, "coverage")
  if err != nil {
    return nil, err
  }
  defer os.RemoveAll(tmpDir)

  // group labels appear in file names, replace offending slashes
  sanitizedGroups := make(map[string]string)
  for barcode, label := range groups {
    sanitizedGroups[barcode] = strings.Replace(label, "/", "+", -1)
  }
  selection := []string(nil)
  for _, label := range config.Selection {
    selection = append(selection, strings.Replace(label, "/", "+", -1))
  }
  fragmentFiles, err := ExportFragments(fragments, sanitizedGroups, tmpDir, "", ".bed.zst",
    OptionLogger           {config.Logger},
    OptionSelection        {selection},
    OptionMinFragmentLength{config.MinFragmentLength},
    OptionMaxFragmentLength{config.MaxFragmentLength},
    OptionCompressionLevel {3})
  if err != nil {
    return nil, err
  }

  pool := threadpool.New(config.Threads, 100*config.Threads)
  g    := pool.NewJobGroup()

  result := make(map[string]string)
  mutex  := sync.Mutex{}

  // a 1-thread pool executes jobs inline and AddJob returns the job's
  // error directly, so it must not be discarded; every group runs to
  // completion regardless of sibling failures
  var jobErr error
  for label_, fragmentFilename_ := range fragmentFiles {
    label            := label_
    fragmentFilename := fragmentFilename_
    outputFilename   := filepath.Join(dir, prefix+label+suffix)
    err := pool.AddJob(g, func(pool threadpool.ThreadPool, erf func() error) error {
      config.Logger.Printf("computing coverage for group `%s'", label)
      if err := exportGroupCoverage(config, genome, format, compression, tmpDir, fragmentFilename, outputFilename); err != nil {
        return fmt.Errorf("exporting coverage of group `%s' failed: %v", label, err)
      }
      mutex.Lock()
      result[label] = outputFilename
      mutex.Unlock()
      if config.ProgressCallback != nil {
        config.ProgressCallback()
      }
      return nil
    })
    if err != nil && jobErr == nil {
      jobErr = err
    }
  }
  if err := pool.Wait(g); err != nil {
    return nil, err
  }
  if jobErr != nil {
    return nil, jobErr
  }
  return result, nil
}
