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

import "container/heap"
import "fmt"

/* -------------------------------------------------------------------------- */

// A BedGraphRecord assigns a coverage value to a genomic interval. After
// aggregation the records of a chromosome are sorted by start position,
// pairwise non-overlapping, and no two adjacent records carry the same
// value.
type BedGraphRecord struct {
  Seqname string
  From    int
  To      int
  Value   float64
}

func (r BedGraphRecord) Region() Region {
  return Region{r.Seqname, r.From, r.To}
}

func (r BedGraphRecord) String() string {
  return fmt.Sprintf("%s\t%d\t%d\t%g", r.Seqname, r.From, r.To, r.Value)
}

/* -------------------------------------------------------------------------- */

type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() interface{} {
  old := *h
  n   := len(old)
  x   := old[n-1]
  *h   = old[0:n-1]
  return x
}

/* coverage aggregation
 * -------------------------------------------------------------------------- */

// bedGraphBuilder collects depth runs emitted by the sweep over the
// sorted region stream, merging touching runs of equal value.
type bedGraphBuilder struct {
  records []BedGraphRecord
}

func (builder *bedGraphBuilder) appendRun(seqname string, from, to int, value float64) {
  if to <= from || value == 0.0 {
    return
  }
  if n := len(builder.records); n > 0 {
    last := &builder.records[n-1]
    if last.Seqname == seqname && last.To == from && last.Value == value {
      last.To = to
      return
    }
  }
  builder.records = append(builder.records, BedGraphRecord{seqname, from, to, value})
}

// AggregateRegions converts a stream of countable units, sorted by
// (seqname, from, to), into the minimal sequence of non-overlapping
// coverage records. Units overlapping the blacklist are dropped. Units
// passing the include/exclude filters increment the returned
// normalization counter by one. Each unit is snapped to bin boundaries
// and clipped against the genome; units on unknown chromosomes are
// dropped silently.
func AggregateRegions(regions <- chan RegionSorterType, genome Genome, binSize int, blacklist, includeForNorm, excludeForNorm *RegionIndex) ([]BedGraphRecord, float64, error) {
  builder := bedGraphBuilder{}
  normCount := 0.0

  ends    := &intHeap{}
  seqname := ""
  pos     := 0

  // drain all open intervals of the current chromosome
  flush := func() {
    for ends.Len() > 0 {
      depth := float64(ends.Len())
      end   := heap.Pop(ends).(int)
      builder.appendRun(seqname, pos, end, depth)
      pos = end
    }
  }
  for t := range regions {
    if t.Error != nil {
      return nil, 0.0, t.Error
    }
    r := t.Region
    if blacklist.Overlaps(r) {
      continue
    }
    if (includeForNorm.Length() == 0 || includeForNorm.Overlaps(r)) && !excludeForNorm.Overlaps(r) {
      normCount += 1.0
    }
    r = r.FitToBin(binSize)
    r, ok := r.Clip(genome)
    if !ok {
      continue
    }
    if r.Seqname != seqname {
      flush()
      seqname = r.Seqname
      pos     = r.From
    } else {
      if r.From < pos {
        return nil, 0.0, fmt.Errorf("input regions are not sorted")
      }
      for ends.Len() > 0 && (*ends)[0] <= r.From {
        depth := float64(ends.Len())
        end   := heap.Pop(ends).(int)
        builder.appendRun(seqname, pos, end, depth)
        pos = end
      }
      builder.appendRun(seqname, pos, r.From, float64(ends.Len()))
      pos = r.From
    }
    heap.Push(ends, r.To)
  }
  flush()

  return builder.records, normCount, nil
}
