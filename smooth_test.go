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

import "math"
import "testing"

/* -------------------------------------------------------------------------- */

func TestExtend1(t *testing.T) {

  expected := []baseCount{
    {13, 1}, {14, 2}, {15, 2}, {16, 2}, {17, 2}, {18, 1} }

  result := extend(15, 17, 2, 2)

  if len(result) != len(expected) {
    t.Fatal("TestExtend1 failed!")
  }
  for i := range result {
    if result[i] != expected[i] {
      t.Error("TestExtend1 failed!")
    }
  }
}

func TestExtend2(t *testing.T) {

  expected := []baseCount{
    { 8, 1}, { 9, 2}, {10, 3}, {11, 4}, {12, 5}, {13, 6}, {14, 7}, {15, 7},
    {16, 7}, {17, 7}, {18, 6}, {19, 5}, {20, 4}, {21, 3}, {22, 2}, {23, 1} }

  result := extend(10, 20, 2, 4)

  if len(result) != len(expected) {
    t.Fatal("TestExtend2 failed!")
  }
  for i := range result {
    if result[i] != expected[i] {
      t.Error("TestExtend2 failed!")
    }
  }
}

/* -------------------------------------------------------------------------- */

// per-base reference implementation based on extend()
func smoothReference(records []BedGraphRecord, left, right, seqLength int) map[int]float64 {
  numerator := make(map[int]float64)
  for _, record := range records {
    for _, bc := range extend(record.From, record.To, left, right) {
      if bc.pos >= 0 && bc.pos < seqLength {
        numerator[bc.pos] += record.Value * float64(bc.n)
      }
    }
  }
  result := make(map[int]float64)
  for pos, value := range numerator {
    result[pos] = value / float64(windowLength(pos, left, right, seqLength))
  }
  return result
}

func expandRecords(records []BedGraphRecord) map[int]float64 {
  result := make(map[int]float64)
  for _, record := range records {
    for i := record.From; i < record.To; i++ {
      result[i] = record.Value
    }
  }
  return result
}

func compareSmoothed(t *testing.T, name string, records []BedGraphRecord, left, right, seqLength int) {
  genome, err := NewGenome([]string{"chr1"}, []int{seqLength})
  if err != nil {
    t.Fatal(err)
  }
  smoothed, err := SmoothBedGraph(records, left, right, genome)
  if err != nil {
    t.Fatal(err)
  }
  result    := expandRecords(smoothed)
  reference := smoothReference(records, left, right, seqLength)

  for pos, value := range reference {
    if math.Abs(result[pos]-value) > 1e-9 {
      t.Errorf("%s failed at position `%d': expected %f but got %f", name, pos, value, result[pos])
    }
    delete(result, pos)
  }
  for pos, value := range result {
    if value != 0.0 {
      t.Errorf("%s failed: unexpected value %f at position `%d'", name, value, pos)
    }
  }
}

func TestSmoothBedGraph1(t *testing.T) {

  records := []BedGraphRecord{
    {"chr1", 15, 17, 1.0} }

  compareSmoothed(t, "TestSmoothBedGraph1", records, 2, 2, 100)
}

func TestSmoothBedGraph2(t *testing.T) {

  records := []BedGraphRecord{
    {"chr1", 10, 20, 3.0},
    {"chr1", 20, 30, 1.0},
    {"chr1", 45, 50, 2.0} }

  compareSmoothed(t, "TestSmoothBedGraph2", records, 2, 4, 60)
}

func TestSmoothBedGraphEdges(t *testing.T) {

  // windows are clipped at the chromosome bounds
  records := []BedGraphRecord{
    {"chr1",  0, 10, 2.0},
    {"chr1", 40, 50, 1.0} }

  compareSmoothed(t, "TestSmoothBedGraphEdges", records, 5, 5, 50)
}

func TestSmoothBedGraphIdentity(t *testing.T) {

  genome, _ := NewGenome([]string{"chr1"}, []int{50})

  records := []BedGraphRecord{
    {"chr1", 10, 20, 3.0} }

  smoothed, err := SmoothBedGraph(records, 0, 0, genome)
  if err != nil {
    t.Fatal(err)
  }
  if len(smoothed) != 1 || smoothed[0] != records[0] {
    t.Error("TestSmoothBedGraphIdentity failed!")
  }
}

func TestSmoothBedGraphPlateau(t *testing.T) {

  genome, _ := NewGenome([]string{"chr1"}, []int{1000})

  // far from the record boundaries the value is unchanged
  records := []BedGraphRecord{
    {"chr1", 100, 900, 5.0} }

  smoothed, err := SmoothBedGraph(records, 10, 10, genome)
  if err != nil {
    t.Fatal(err)
  }
  result := expandRecords(smoothed)
  if math.Abs(result[500]-5.0) > 1e-9 {
    t.Error("TestSmoothBedGraphPlateau failed!")
  }
}
