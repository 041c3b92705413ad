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
import "strconv"
import "strings"

import "github.com/biogo/store/interval"

/* -------------------------------------------------------------------------- */

type regionInterval struct {
  from int
  to   int
  id   uintptr
}

func (r regionInterval) Overlap(b interval.IntRange) bool {
  return r.to > b.Start && r.from < b.End
}

func (r regionInterval) ID() uintptr {
  return r.id
}

func (r regionInterval) Range() interval.IntRange {
  return interval.IntRange{Start: r.from, End: r.to}
}

/* -------------------------------------------------------------------------- */

// A RegionIndex stores a read-only set of genomic intervals, one interval
// tree per chromosome, and answers overlap queries. It is used for
// blacklist filtering and for restricting the set of regions considered
// during normalization. The index is safe for concurrent queries.
type RegionIndex struct {
  trees map[string]*interval.IntTree
  n     int
}

/* constructor
 * -------------------------------------------------------------------------- */

func NewRegionIndex(regions []Region) (*RegionIndex, error) {
  index := RegionIndex{}
  index.trees = make(map[string]*interval.IntTree)

  for _, r := range regions {
    tree, ok := index.trees[r.Seqname]
    if !ok {
      tree = &interval.IntTree{}
      index.trees[r.Seqname] = tree
    }
    if err := tree.Insert(regionInterval{r.From, r.To, uintptr(index.n)}, true); err != nil {
      return nil, err
    }
    index.n++
  }
  for _, tree := range index.trees {
    tree.AdjustRanges()
  }
  return &index, nil
}

/* -------------------------------------------------------------------------- */

// Number of indexed intervals.
func (index *RegionIndex) Length() int {
  if index == nil {
    return 0
  }
  return index.n
}

// Check if the given region overlaps any indexed interval. A nil index
// never overlaps.
func (index *RegionIndex) Overlaps(r Region) bool {
  if index == nil {
    return false
  }
  tree, ok := index.trees[r.Seqname]
  if !ok {
    return false
  }
  result := false
  tree.DoMatching(func(i interval.IntInterface) (done bool) {
    result = true
    return true
  }, regionInterval{r.From, r.To, 0})
  return result
}

/* i/o
 * -------------------------------------------------------------------------- */

// Read regions in BED format. Only the first three columns are used.
func ReadRegionIndex(reader io.Reader) (*RegionIndex, error) {
  regions := []Region{}

  scanner := bufio.NewScanner(reader)
  for scanner.Scan() {
    fields := strings.Fields(scanner.Text())
    if len(fields) == 0 {
      continue
    }
    if len(fields) < 3 {
      return nil, fmt.Errorf("bed file must have at least three columns")
    }
    t1, err := strconv.ParseInt(fields[1], 10, 64)
    if err != nil {
      return nil, err
    }
    t2, err := strconv.ParseInt(fields[2], 10, 64)
    if err != nil {
      return nil, err
    }
    regions = append(regions, Region{fields[0], int(t1), int(t2)})
  }
  if err := scanner.Err(); err != nil {
    return nil, err
  }
  return NewRegionIndex(regions)
}

func ImportRegionIndex(filename string) (*RegionIndex, error) {
  f, err := openFileForRead(filename)
  if err != nil {
    return nil, err
  }
  defer f.Close()

  index, err := ReadRegionIndex(f)
  if err != nil {
    return nil, fmt.Errorf("importing regions from `%s' failed: %v", filename, err)
  }
  return index, nil
}
