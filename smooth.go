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

import "fmt"
import "math"
import "sort"

/* -------------------------------------------------------------------------- */

type baseCount struct {
  pos int
  n   int
}

// extend computes for every base i how many smoothing windows both
// contain i and overlap the interval [from, to). A window at base j
// spans [j-left, j+right]. The result is a trapezoid over
// [from-left, to+right) with plateau height min(to-from, left+right+1).
func extend(from, to, left, right int) []baseCount {
  s := from - left
  e := to + right
  m := iMin(to-from, left+right+1)
  result := make([]baseCount, 0, e-s)
  for i := s; i < e; i++ {
    n := iMin(i-s+1, e-i)
    if n > m {
      n = m
    }
    result = append(result, baseCount{i, n})
  }
  return result
}

/* -------------------------------------------------------------------------- */

// slope changes of the per-base windowed sum
type slopeEvent struct {
  pos int
  dg  float64
}

type slopeEvents []slopeEvent

func (events slopeEvents) Len() int           { return len(events) }
func (events slopeEvents) Less(i, j int) bool { return events[i].pos < events[j].pos }
func (events slopeEvents) Swap(i, j int)      { events[i], events[j] = events[j], events[i] }

/* -------------------------------------------------------------------------- */

// window size at base i, clipped at the chromosome bounds
func windowLength(i, left, right, seqLength int) int {
  lo := iMax(0, i-left)
  hi := iMin(seqLength-1, i+right)
  return hi - lo + 1
}

func smoothSeq(builder *bedGraphBuilder, records []BedGraphRecord, left, right, seqLength int) {
  seqname := records[0].Seqname
  w       := left + right + 1

  events := slopeEvents{}
  for _, r := range records {
    s := r.From - left
    e := r.To + right
    m := iMin(r.To-r.From, w)
    events = append(events, slopeEvent{s, r.Value})
    events = append(events, slopeEvent{s + m, -r.Value})
    events = append(events, slopeEvent{e - m + 1, -r.Value})
    events = append(events, slopeEvent{e + 1, r.Value})
  }
  sort.Sort(events)

  g := 0.0
  n := 0.0
  for k := 0; k < len(events); {
    p := events[k].pos
    for ; k < len(events) && events[k].pos == p; k++ {
      g += events[k].dg
    }
    q := seqLength
    if k < len(events) {
      q = events[k].pos
    }
    from := iMax(p, 0)
    to   := iMin(q, seqLength)
    if from >= to {
      n += g * float64(q-p)
      continue
    }
    if g == 0.0 {
      if math.Abs(n) > 1e-12 {
        // window length varies only near the chromosome ends
        i1 := iMin(to, iMax(from, left))
        i2 := iMax(i1, iMin(to, seqLength-right))
        for i := from; i < i1; i++ {
          builder.appendRun(seqname, i, i+1, n/float64(windowLength(i, left, right, seqLength)))
        }
        if i1 < i2 {
          builder.appendRun(seqname, i1, i2, n/float64(w))
        }
        for i := i2; i < to; i++ {
          builder.appendRun(seqname, i, i+1, n/float64(windowLength(i, left, right, seqLength)))
        }
      }
    } else {
      for i := from; i < to; i++ {
        v := n + g*float64(i-p+1)
        builder.appendRun(seqname, i, i+1, v/float64(windowLength(i, left, right, seqLength)))
      }
    }
    n += g * float64(q-p)
  }
}

// SmoothBedGraph replaces every coverage value by the average per-base
// coverage of a window extending left bases to the left and right bases
// to the right. Windows are clipped at the chromosome bounds and the
// average is taken over the clipped window length. The input records of
// a chromosome must be sorted and non-overlapping.
func SmoothBedGraph(records []BedGraphRecord, left, right int, genome Genome) ([]BedGraphRecord, error) {
  if left == 0 && right == 0 {
    return records, nil
  }
  if left < 0 || right < 0 {
    return nil, fmt.Errorf("invalid smoothing radius")
  }
  builder := bedGraphBuilder{}
  for i := 0; i < len(records); {
    j := i
    for j < len(records) && records[j].Seqname == records[i].Seqname {
      j++
    }
    seqLength, err := genome.SeqLength(records[i].Seqname)
    if err != nil {
      return nil, err
    }
    smoothSeq(&builder, records[i:j], left, right, seqLength)
    i = j
  }
  return builder.records, nil
}
