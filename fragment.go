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
import "strconv"
import "strings"

/* -------------------------------------------------------------------------- */

// A fragment is a sequenced paired-end DNA interval attributable to a
// single cell. Fragments are stored in BED format with the cell barcode
// in the fourth and a duplication count in the fifth column.
type Fragment struct {
  Seqname string
  From    int
  To      int
  Barcode string
  Count   int
}

/* constructor
 * -------------------------------------------------------------------------- */

func NewFragment(seqname string, from, to int) Fragment {
  return Fragment{seqname, from, to, "", 1}
}

/* -------------------------------------------------------------------------- */

func (f Fragment) Length() int {
  return f.To - f.From
}

func (f Fragment) Region() Region {
  return Region{f.Seqname, f.From, f.To}
}

// The two Tn5 insertion sites of the fragment, i.e. single-base regions
// at both 5' ends. Each site contributes weight one to the coverage.
func (f Fragment) Insertions() [2]Region {
  return [2]Region{
    {f.Seqname, f.From,   f.From+1},
    {f.Seqname, f.To  -1, f.To    }}
}

/* i/o
 * -------------------------------------------------------------------------- */

// Parse a single line of a fragments file. The barcode and count columns
// are optional; a missing count defaults to one.
func (f *Fragment) Parse(line string) error {
  fields := strings.Fields(line)
  if len(fields) < 3 || len(fields) > 5 {
    return fmt.Errorf("fragment must have between three and five columns")
  }
  t1, err := strconv.ParseInt(fields[1], 10, 64)
  if err != nil {
    return err
  }
  t2, err := strconv.ParseInt(fields[2], 10, 64)
  if err != nil {
    return err
  }
  if t1 >= t2 {
    return fmt.Errorf("fragment has non-positive length")
  }
  f.Seqname = fields[0]
  f.From    = int(t1)
  f.To      = int(t2)
  f.Barcode = ""
  f.Count   = 1
  if len(fields) >= 4 {
    f.Barcode = fields[3]
  }
  if len(fields) == 5 {
    t3, err := strconv.ParseInt(fields[4], 10, 64)
    if err != nil {
      return err
    }
    f.Count = int(t3)
  }
  return nil
}

func (f Fragment) String() string {
  return fmt.Sprintf("%s\t%d\t%d\t%s\t%d", f.Seqname, f.From, f.To, f.Barcode, f.Count)
}

/* counting strategies
 * -------------------------------------------------------------------------- */

// CountingStrategy determines how a fragment is converted into countable
// units: either the whole fragment interval, or its two Tn5 insertion
// sites. CountBaseValue refers to continuous per-base data and is not
// supported by this library.
type CountingStrategy int

const (
  CountFragment  CountingStrategy = iota
  CountInsertion
  CountBaseValue
)

func ParseCountingStrategy(s string) (CountingStrategy, error) {
  switch strings.ToLower(s) {
  case "fragment" :
    return CountFragment,  nil
  case "insertion":
    return CountInsertion, nil
  case "basevalue":
    return CountBaseValue, nil
  }
  return CountFragment, fmt.Errorf("invalid counting strategy `%s'", s)
}

func (strategy CountingStrategy) String() string {
  switch strategy {
  case CountFragment :
    return "fragment"
  case CountInsertion:
    return "insertion"
  case CountBaseValue:
    return "basevalue"
  }
  return "invalid"
}

// Convert a fragment into its countable units. Each unit carries an
// implicit weight of one.
func (strategy CountingStrategy) Regions(f Fragment) ([]Region, error) {
  switch strategy {
  case CountFragment:
    return []Region{f.Region()}, nil
  case CountInsertion:
    insertions := f.Insertions()
    return insertions[:], nil
  }
  return nil, fmt.Errorf("counting strategy `%s' is not supported", strategy)
}
