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
import "io/ioutil"
import "os"
import "sort"
import "strconv"
import "strings"

import "github.com/biogo/store/llrb"
import "github.com/klauspost/compress/gzip"

/* -------------------------------------------------------------------------- */

// Default number of regions kept in memory before a sorted run is
// spilled to disk.
const DefaultSortBatchSize = 1 << 21

/* -------------------------------------------------------------------------- */

// A RegionSorter sorts a stream of regions by (seqname, from, to) using
// bounded memory. Regions are collected in batches; full batches are
// sorted and spilled to compressed run files in a temporary directory.
// Reading back merges all runs. A sorter must not be shared between
// threads, but separate sorters may use the same temporary directory
// since run files are created with unique names.
type RegionSorter struct {
  tmpDir    string
  batchSize int
  batch     []Region
  runs      []string
}

type RegionSorterType struct {
  Region
  Error error
}

/* constructor
 * -------------------------------------------------------------------------- */

func NewRegionSorter(tmpDir string, batchSize int) *RegionSorter {
  if batchSize <= 0 {
    batchSize = DefaultSortBatchSize
  }
  return &RegionSorter{tmpDir: tmpDir, batchSize: batchSize}
}

/* -------------------------------------------------------------------------- */

// Add a region to the sorter. If the in-memory batch is full it is
// written to disk as a sorted run.
func (sorter *RegionSorter) Add(r Region) error {
  sorter.batch = append(sorter.batch, r)
  if len(sorter.batch) >= sorter.batchSize {
    return sorter.spill()
  }
  return nil
}

func sortRegions(regions []Region) {
  sort.Slice(regions, func(i, j int) bool {
    return regions[i].Compare(regions[j]) < 0
  })
}

// Write a sorted run to f. On error the file is closed and removed so
// that no partial run is left in the temporary directory.
func writeRun(f *os.File, regions []Region) (err error) {
  defer func() {
    if err != nil {
      f.Close()
      os.Remove(f.Name())
    }
  }()
  // compress runs, disk bandwidth is the bottleneck here
  w, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
  if err != nil {
    return err
  }
  b := bufio.NewWriter(w)
  for _, r := range regions {
    if _, err = fmt.Fprintf(b, "%s\t%d\t%d\n", r.Seqname, r.From, r.To); err != nil {
      return fmt.Errorf("writing sort run `%s' failed: %v", f.Name(), err)
    }
  }
  if err = b.Flush(); err != nil {
    return err
  }
  if err = w.Close(); err != nil {
    return err
  }
  return f.Close()
}

func (sorter *RegionSorter) spill() error {
  sortRegions(sorter.batch)

  f, err := ioutil.TempFile(sorter.tmpDir, "regionsort")
  if err != nil {
    return fmt.Errorf("creating sort run in `%s' failed: %v", sorter.tmpDir, err)
  }
  if err := writeRun(f, sorter.batch); err != nil {
    return err
  }
  sorter.runs  = append(sorter.runs, f.Name())
  sorter.batch = nil
  return nil
}

// Remove all run files. Reading the sorted stream to completion cleans
// up automatically; Drop is for abandoning a sorter early.
func (sorter *RegionSorter) Drop() {
  for _, filename := range sorter.runs {
    os.Remove(filename)
  }
  sorter.runs  = nil
  sorter.batch = nil
}

/* merging sorted runs
 * -------------------------------------------------------------------------- */

// A mergeLeaf represents one sorted run during the n-way merge. Leaves
// are kept in a left-leaning red-black tree so that the smallest current
// region can be retrieved efficiently; the sequence number breaks ties
// between runs holding equal regions, which also keeps tree elements
// unique.
type mergeLeaf struct {
  seq     int
  current Region
  scan    func() (Region, bool, error)
  close   func()
}

func (leaf *mergeLeaf) Compare(c llrb.Comparable) int {
  other := c.(*mergeLeaf)
  if r := leaf.current.Compare(other.current); r != 0 {
    return r
  }
  return leaf.seq - other.seq
}

func newMemoryLeaf(seq int, regions []Region) *mergeLeaf {
  i := 0
  leaf := mergeLeaf{seq: seq}
  leaf.scan = func() (Region, bool, error) {
    if i >= len(regions) {
      return Region{}, false, nil
    }
    r := regions[i]; i++
    return r, true, nil
  }
  leaf.close = func() {}
  return &leaf
}

func newRunLeaf(seq int, filename string) (*mergeLeaf, error) {
  f, err := os.Open(filename)
  if err != nil {
    return nil, err
  }
  g, err := gzip.NewReader(f)
  if err != nil {
    f.Close()
    return nil, err
  }
  scanner := bufio.NewScanner(g)

  leaf := mergeLeaf{seq: seq}
  leaf.scan = func() (Region, bool, error) {
    if !scanner.Scan() {
      if err := scanner.Err(); err != nil {
        return Region{}, false, fmt.Errorf("reading sort run `%s' failed: %v", filename, err)
      }
      return Region{}, false, nil
    }
    fields := strings.Split(scanner.Text(), "\t")
    if len(fields) != 3 {
      return Region{}, false, fmt.Errorf("corrupted sort run `%s'", filename)
    }
    t1, err := strconv.ParseInt(fields[1], 10, 64)
    if err != nil {
      return Region{}, false, err
    }
    t2, err := strconv.ParseInt(fields[2], 10, 64)
    if err != nil {
      return Region{}, false, err
    }
    return Region{fields[0], int(t1), int(t2)}, true, nil
  }
  leaf.close = func() {
    g.Close()
    f.Close()
    os.Remove(filename)
  }
  return &leaf, nil
}

/* -------------------------------------------------------------------------- */

// Read returns the sorted stream of all regions added to the sorter.
// Errors while reading run files terminate the stream with an item
// carrying the error. The sorter must not be reused afterwards.
func (sorter *RegionSorter) Read() <- chan RegionSorterType {
  channel := make(chan RegionSorterType, 1024)
  go func() {
    defer close(channel)
    sorter.merge(channel)
  }()
  return channel
}

func (sorter *RegionSorter) merge(channel chan RegionSorterType) {
  sortRegions(sorter.batch)

  leaves := []*mergeLeaf{}
  closeAll := func() {
    for _, leaf := range leaves {
      leaf.close()
    }
  }
  leaves = append(leaves, newMemoryLeaf(len(sorter.runs), sorter.batch))
  for i, filename := range sorter.runs {
    leaf, err := newRunLeaf(i, filename)
    if err != nil {
      closeAll()
      channel <- RegionSorterType{Error: err}
      return
    }
    leaves = append(leaves, leaf)
  }

  tree := llrb.Tree{}
  for _, leaf := range leaves {
    r, ok, err := leaf.scan()
    if err != nil {
      closeAll()
      channel <- RegionSorterType{Error: err}
      return
    }
    if ok {
      leaf.current = r
      tree.Insert(leaf)
    }
  }
  for tree.Len() > 0 {
    var top *mergeLeaf
    tree.Do(func(c llrb.Comparable) bool {
      top = c.(*mergeLeaf)
      return true
    })
    channel <- RegionSorterType{Region: top.current}

    tree.DeleteMin()
    r, ok, err := top.scan()
    if err != nil {
      closeAll()
      channel <- RegionSorterType{Error: err}
      return
    }
    if ok {
      top.current = r
      tree.Insert(top)
    }
  }
  closeAll()
  sorter.runs  = nil
  sorter.batch = nil
}
