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
import "strings"

/* -------------------------------------------------------------------------- */

// Region identifies a genomic subsequence. By convention the first position
// in a sequence is numbered 0. The interval is interpreted as [From, To).
type Region struct {
  Seqname string
  From    int
  To      int
}

/* constructor
 * -------------------------------------------------------------------------- */

func NewRegion(seqname string, from, to int) (Region, error) {
  if from > to {
    return Region{}, fmt.Errorf("NewRegion(): from > to")
  }
  return Region{seqname, from, to}, nil
}

/* -------------------------------------------------------------------------- */

func (r Region) Length() int {
  return r.To - r.From
}

// Compare two regions by (seqname, from, to). This is the order required
// by the coverage aggregation stage.
func (r Region) Compare(s Region) int {
  if c := strings.Compare(r.Seqname, s.Seqname); c != 0 {
    return c
  }
  if r.From != s.From {
    if r.From < s.From {
      return -1
    } else {
      return  1
    }
  }
  if r.To != s.To {
    if r.To < s.To {
      return -1
    } else {
      return  1
    }
  }
  return 0
}

func (r Region) Overlaps(s Region) bool {
  return r.Seqname == s.Seqname && r.From < s.To && s.From < r.To
}

/* -------------------------------------------------------------------------- */

// Expand the region so that From is a multiple of the bin size and To is
// rounded up to the next bin boundary. This operation is idempotent and a
// no-op for bin sizes smaller than two.
func (r Region) FitToBin(binSize int) Region {
  if binSize > 1 {
    if m := r.From % binSize; m != 0 {
      r.From -= m
    }
    if m := r.To % binSize; m != 0 {
      r.To += binSize - m
    }
  }
  return r
}

// Clip the region to the chromosome bounds given by the genome. The second
// return value is false if the chromosome is not part of the genome or the
// region lies entirely beyond the end of the chromosome.
func (r Region) Clip(genome Genome) (Region, bool) {
  length, err := genome.SeqLength(r.Seqname)
  if err != nil {
    return r, false
  }
  if r.From >= length {
    return r, false
  }
  if r.To > length {
    r.To = length
  }
  return r, true
}

/* -------------------------------------------------------------------------- */

func (r Region) String() string {
  return fmt.Sprintf("%s:[%d-%d)", r.Seqname, r.From, r.To)
}
