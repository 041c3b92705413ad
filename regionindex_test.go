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

import "strings"
import "testing"

/* -------------------------------------------------------------------------- */

func TestRegionIndex1(t *testing.T) {

  index, err := NewRegionIndex([]Region{
    {"chr1",  10,  20},
    {"chr1", 100, 200},
    {"chr2",  50,  60} })
  if err != nil {
    t.Fatal(err)
  }
  if index.Length() != 3 {
    t.Error("TestRegionIndex1 failed!")
  }
  if !index.Overlaps(Region{"chr1", 15, 16}) {
    t.Error("TestRegionIndex1 failed!")
  }
  if !index.Overlaps(Region{"chr1", 0, 11}) {
    t.Error("TestRegionIndex1 failed!")
  }
  if index.Overlaps(Region{"chr1", 20, 100}) {
    t.Error("TestRegionIndex1 failed!")
  }
  if index.Overlaps(Region{"chr2", 10, 20}) {
    t.Error("TestRegionIndex1 failed!")
  }
  if index.Overlaps(Region{"chr3", 50, 60}) {
    t.Error("TestRegionIndex1 failed!")
  }
}

func TestRegionIndexNil(t *testing.T) {

  var index *RegionIndex

  if index.Overlaps(Region{"chr1", 0, 10}) {
    t.Error("TestRegionIndexNil failed!")
  }
  if index.Length() != 0 {
    t.Error("TestRegionIndexNil failed!")
  }
}

func TestReadRegionIndex(t *testing.T) {

  bed := "chr1\t10\t20\tname1\t0\n" +
         "chr2\t50\t60\n"

  index, err := ReadRegionIndex(strings.NewReader(bed))
  if err != nil {
    t.Fatal(err)
  }
  if index.Length() != 2 {
    t.Error("TestReadRegionIndex failed!")
  }
  if !index.Overlaps(Region{"chr2", 55, 56}) {
    t.Error("TestReadRegionIndex failed!")
  }
}
