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

import "testing"

/* -------------------------------------------------------------------------- */

func TestFragmentParse(t *testing.T) {

  f := Fragment{}

  if err := f.Parse("chr1\t100\t200\tAACGT\t3"); err != nil {
    t.Error("TestFragmentParse failed!")
  }
  if f.Seqname != "chr1" || f.From != 100 || f.To != 200 || f.Barcode != "AACGT" || f.Count != 3 {
    t.Error("TestFragmentParse failed!")
  }
  // count column is optional
  if err := f.Parse("chr1\t100\t200\tAACGT"); err != nil || f.Count != 1 {
    t.Error("TestFragmentParse failed!")
  }
  if err := f.Parse("chr1\t100\t200"); err != nil || f.Barcode != "" {
    t.Error("TestFragmentParse failed!")
  }
  // a zero-length fragment has no insertion sites
  if err := f.Parse("chr1\t100\t100\tAACGT"); err == nil {
    t.Error("TestFragmentParse failed!")
  }
  if err := f.Parse("chr1\t0\t0"); err == nil {
    t.Error("TestFragmentParse failed!")
  }
  if err := f.Parse("chr1\t200\t100"); err == nil {
    t.Error("TestFragmentParse failed!")
  }
  if err := f.Parse("chr1\t100"); err == nil {
    t.Error("TestFragmentParse failed!")
  }
}

func TestFragmentInsertions(t *testing.T) {

  f := NewFragment("chr1", 100, 200)
  r := f.Insertions()

  if r[0] != (Region{"chr1", 100, 101}) {
    t.Error("TestFragmentInsertions failed!")
  }
  if r[1] != (Region{"chr1", 199, 200}) {
    t.Error("TestFragmentInsertions failed!")
  }
}

func TestCountingStrategy(t *testing.T) {

  f := NewFragment("chr1", 100, 200)

  if regions, err := CountFragment.Regions(f); err != nil || len(regions) != 1 {
    t.Error("TestCountingStrategy failed!")
  } else {
    if regions[0] != (Region{"chr1", 100, 200}) {
      t.Error("TestCountingStrategy failed!")
    }
  }
  if regions, err := CountInsertion.Regions(f); err != nil || len(regions) != 2 {
    t.Error("TestCountingStrategy failed!")
  }  else {
    if regions[0] != (Region{"chr1", 100, 101}) || regions[1] != (Region{"chr1", 199, 200}) {
      t.Error("TestCountingStrategy failed!")
    }
  }
  if _, err := CountBaseValue.Regions(f); err == nil {
    t.Error("TestCountingStrategy failed!")
  }
}

func TestParseCountingStrategy(t *testing.T) {

  if strategy, err := ParseCountingStrategy("fragment"); err != nil || strategy != CountFragment {
    t.Error("TestParseCountingStrategy failed!")
  }
  if strategy, err := ParseCountingStrategy("insertion"); err != nil || strategy != CountInsertion {
    t.Error("TestParseCountingStrategy failed!")
  }
  if _, err := ParseCountingStrategy("paired-insertion"); err == nil {
    t.Error("TestParseCountingStrategy failed!")
  }
}
