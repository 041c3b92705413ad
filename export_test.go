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

import "io/ioutil"
import "math"
import "os"
import "path/filepath"
import "testing"

/* -------------------------------------------------------------------------- */

func writeTestFragments(t *testing.T, dir string) string {
  fragments :=
    "chr1\t15\t25\tB\t1\n" +
    "chr1\t0\t10\tA\t1\n"  +
    "chr1\t3\t13\tA\t1\n"  +
    "chr1\t5\t41\tB\t1\n"  +
    "chr1\t8\t18\tA\t2\n"  +
    "chr1\t22\t24\tC\t1\n" +
    "chr1\t23\t33\tC\t1\n" +
    "chr1\t29\t40\tB\t1\n" +
    "chr1\t0\t10\tD\t1\n"  +
    "chr1\t40\t45\tZZ\t1\n"

  filename := filepath.Join(dir, "fragments.bed")
  if err := ioutil.WriteFile(filename, []byte(fragments), 0644); err != nil {
    t.Fatal(err)
  }
  return filename
}

func testGroups() map[string]string {
  // barcode ZZ is deliberately unlisted
  return map[string]string{
    "A": "g1",
    "B": "g1",
    "C": "g1",
    "D": "g2" }
}

func countFragments(t *testing.T, filename string) int {
  n := 0
  for item := range NewFragmentFile(filename).Read() {
    if item.Error != nil {
      t.Fatal(item.Error)
    }
    n++
  }
  return n
}

/* -------------------------------------------------------------------------- */

func TestExportFragments1(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))

  result, err := ExportFragments(fragments, testGroups(), filepath.Join(dir, "out"), "", ".bed")
  if err != nil {
    t.Fatal(err)
  }
  if len(result) != 2 {
    t.Fatal("TestExportFragments1 failed!")
  }
  if countFragments(t, result["g1"]) != 8 {
    t.Error("TestExportFragments1 failed!")
  }
  if countFragments(t, result["g2"]) != 1 {
    t.Error("TestExportFragments1 failed!")
  }
}

func TestExportFragmentsBarcodeSubstitution(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))

  result, err := ExportFragments(fragments, testGroups(), filepath.Join(dir, "out"), "", ".bed",
    OptionSelection          {[]string{"g2"}},
    OptionBarcodeSubstitution{map[string]string{"D": "cell-1"}})
  if err != nil {
    t.Fatal(err)
  }
  for item := range NewFragmentFile(result["g2"]).Read() {
    if item.Error != nil {
      t.Fatal(item.Error)
    }
    if item.Barcode != "cell-1" {
      t.Error("TestExportFragmentsBarcodeSubstitution failed!")
    }
  }
}

func TestExportFragmentsSelection(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))

  result, err := ExportFragments(fragments, testGroups(), filepath.Join(dir, "out"), "", ".bed.gz",
    OptionSelection{[]string{"g2"}})
  if err != nil {
    t.Fatal(err)
  }
  if len(result) != 1 {
    t.Fatal("TestExportFragmentsSelection failed!")
  }
  if _, ok := result["g1"]; ok {
    t.Error("TestExportFragmentsSelection failed!")
  }
  if countFragments(t, result["g2"]) != 1 {
    t.Error("TestExportFragmentsSelection failed!")
  }
}

func TestExportFragmentsLengthFilter(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))

  result, err := ExportFragments(fragments, testGroups(), filepath.Join(dir, "out"), "", ".bed",
    OptionMinFragmentLength{10},
    OptionMaxFragmentLength{20})
  if err != nil {
    t.Fatal(err)
  }
  // g1 fragments with lengths in [10, 20]: 0-10, 3-13, 8-18, 15-25, 23-33, 29-40
  if countFragments(t, result["g1"]) != 6 {
    t.Error("TestExportFragmentsLengthFilter failed!")
  }
}

func TestExportFragmentsInvalidGroup(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))

  groups := map[string]string{"A": "a/b"}

  if _, err := ExportFragments(fragments, groups, filepath.Join(dir, "out"), "", ".bed"); err == nil {
    t.Error("TestExportFragmentsInvalidGroup failed!")
  }
}

/* -------------------------------------------------------------------------- */

func TestExportCoverage1(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))
  genome, _ := NewGenome([]string{"chr1"}, []int{50})

  result, err := ExportCoverage(fragments, genome, testGroups(), filepath.Join(dir, "out"), "", ".bedgraph",
    OptionBinSize{3},
    OptionThreads{2})
  if err != nil {
    t.Fatal(err)
  }
  if len(result) != 2 {
    t.Fatal("TestExportCoverage1 failed!")
  }
  records, err := ImportBedGraph(result["g1"])
  if err != nil {
    t.Fatal(err)
  }
  expected := []BedGraphRecord{
    {"chr1",  0,  3, 1.0},
    {"chr1",  3,  6, 3.0},
    {"chr1",  6, 12, 4.0},
    {"chr1", 12, 18, 3.0},
    {"chr1", 18, 21, 2.0},
    {"chr1", 21, 24, 4.0},
    {"chr1", 24, 33, 3.0},
    {"chr1", 33, 42, 2.0} }

  if len(records) != len(expected) {
    t.Fatalf("TestExportCoverage1 failed: got %d records", len(records))
  }
  for i := range records {
    if records[i] != expected[i] {
      t.Errorf("TestExportCoverage1 failed at record `%d': %v", i, records[i])
    }
  }
  if records, err := ImportBedGraph(result["g2"]); err != nil {
    t.Fatal(err)
  } else {
    if len(records) != 1 || records[0] != (BedGraphRecord{"chr1", 0, 12, 1.0}) {
      t.Error("TestExportCoverage1 failed!")
    }
  }
}

func TestExportCoverageFailedGroupSingleThread(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))
  genome, _ := NewGenome([]string{"chr1"}, []int{50})
  outDir    := filepath.Join(dir, "out")

  // occupy the output path of group g2 with a directory so that
  // writing its track fails; a 1-thread pool executes jobs inline
  // and the error must not be lost
  if err := os.MkdirAll(filepath.Join(outDir, "g2.bedgraph"), 0755); err != nil {
    t.Fatal(err)
  }
  _, err := ExportCoverage(fragments, genome, testGroups(), outDir, "", ".bedgraph",
    OptionBinSize{3},
    OptionThreads{1})
  if err == nil {
    t.Fatal("TestExportCoverageFailedGroupSingleThread failed!")
  }
  // the failure of g2 must not prevent g1 from being written
  if records, err := ImportBedGraph(filepath.Join(outDir, "g1.bedgraph")); err != nil {
    t.Error("TestExportCoverageFailedGroupSingleThread failed!")
  } else {
    if len(records) != 8 {
      t.Error("TestExportCoverageFailedGroupSingleThread failed!")
    }
  }
}

func TestExportCoverageFailedGroupIsolation(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))
  genome, _ := NewGenome([]string{"chr1"}, []int{50})
  outDir    := filepath.Join(dir, "out")

  groups := map[string]string{
    "A": "ga",
    "B": "gb",
    "C": "gc",
    "D": "gd" }

  // force a failure for group gb by occupying its output path with
  // a directory
  if err := os.MkdirAll(filepath.Join(outDir, "gb.bedgraph"), 0755); err != nil {
    t.Fatal(err)
  }
  _, err := ExportCoverage(fragments, genome, groups, outDir, "", ".bedgraph",
    OptionBinSize{1},
    OptionThreads{2})
  if err == nil {
    t.Fatal("TestExportCoverageFailedGroupIsolation failed!")
  }
  // all other groups must still be written correctly
  for _, label := range []string{"ga", "gc", "gd"} {
    records, err := ImportBedGraph(filepath.Join(outDir, label+".bedgraph"))
    if err != nil {
      t.Errorf("TestExportCoverageFailedGroupIsolation failed for group `%s'", label)
      continue
    }
    if len(records) == 0 {
      t.Errorf("TestExportCoverageFailedGroupIsolation failed for group `%s'", label)
    }
  }
}

func TestExportCoverageBigWig(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))
  genome, _ := NewGenome([]string{"chr1"}, []int{50})

  result, err := ExportCoverage(fragments, genome, testGroups(), filepath.Join(dir, "out"), "cov_", ".bw",
    OptionBinSize{5},
    OptionSelection{[]string{"g1"}})
  if err != nil {
    t.Fatal(err)
  }
  if filepath.Base(result["g1"]) != "cov_g1.bw" {
    t.Error("TestExportCoverageBigWig failed!")
  }
  g, records, err := ImportBigWig(result["g1"])
  if err != nil {
    t.Fatal(err)
  }
  if !g.Equals(genome) {
    t.Error("TestExportCoverageBigWig failed!")
  }
  expected := []BedGraphRecord{
    {"chr1",  0,  5, 2.0},
    {"chr1",  5, 10, 4.0},
    {"chr1", 10, 20, 3.0},
    {"chr1", 20, 25, 4.0},
    {"chr1", 25, 35, 3.0},
    {"chr1", 35, 40, 2.0},
    {"chr1", 40, 45, 1.0} }

  if len(records) != len(expected) {
    t.Fatalf("TestExportCoverageBigWig failed: got %d records", len(records))
  }
  for i := range records {
    if records[i] != expected[i] {
      t.Error("TestExportCoverageBigWig failed!")
    }
  }
}

func TestExportCoverageCPM(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))
  genome, _ := NewGenome([]string{"chr1"}, []int{50})

  result, err := ExportCoverage(fragments, genome, testGroups(), filepath.Join(dir, "out"), "", ".bedgraph.gz",
    OptionBinSize      {3},
    OptionNormalization{NormCPM},
    OptionSelection    {[]string{"g1"}})
  if err != nil {
    t.Fatal(err)
  }
  records, err := ImportBedGraph(result["g1"])
  if err != nil {
    t.Fatal(err)
  }
  // eight counted fragments yield a divisor of 8e-6
  if len(records) != 8 || math.Abs(records[0].Value-125000.0) > 1e-6 {
    t.Error("TestExportCoverageCPM failed!")
  }
}

func TestExportCoverageGroupNames(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))
  genome, _ := NewGenome([]string{"chr1"}, []int{50})

  groups := map[string]string{"A": "cluster/1", "D": "cluster/2"}

  result, err := ExportCoverage(fragments, genome, groups, filepath.Join(dir, "out"), "", ".bedgraph")
  if err != nil {
    t.Fatal(err)
  }
  // slashes in group names are replaced
  if filepath.Base(result["cluster+1"]) != "cluster+1.bedgraph" {
    t.Error("TestExportCoverageGroupNames failed!")
  }
  if _, err := os.Stat(result["cluster+2"]); err != nil {
    t.Error("TestExportCoverageGroupNames failed!")
  }
}

func TestExportCoverageInvalid(t *testing.T) {

  dir       := t.TempDir()
  fragments := NewFragmentFile(writeTestFragments(t, dir))
  genome, _ := NewGenome([]string{"chr1"}, []int{50})

  if _, err := ExportCoverage(fragments, genome, testGroups(), filepath.Join(dir, "out"), "", ".txt"); err == nil {
    t.Error("TestExportCoverageInvalid failed!")
  }
  if _, err := ExportCoverage(fragments, genome, testGroups(), filepath.Join(dir, "out"), "", ".bw",
    OptionCountingStrategy{CountBaseValue}); err == nil {
    t.Error("TestExportCoverageInvalid failed!")
  }
  if _, err := ExportCoverage(fragments, genome, testGroups(), filepath.Join(dir, "out"), "", ".bw",
    OptionBinSize{0}); err == nil {
    t.Error("TestExportCoverageInvalid failed!")
  }
}
