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

type Normalization int

const (
  NormNone Normalization = iota
  NormRPKM
  NormCPM
  NormBPM
  NormRPGC
)

func ParseNormalization(str string) (Normalization, error) {
  switch strings.ToUpper(str) {
  case "":
    return NormNone, nil
  case "RPKM":
    return NormRPKM, nil
  case "CPM":
    return NormCPM, nil
  case "BPM":
    return NormBPM, nil
  case "RPGC":
    return NormRPGC, nil
  }
  return NormNone, fmt.Errorf("invalid normalization method `%s'", str)
}

func (norm Normalization) String() string {
  switch norm {
  case NormNone:
    return ""
  case NormRPKM:
    return "RPKM"
  case NormCPM:
    return "CPM"
  case NormBPM:
    return "BPM"
  case NormRPGC:
    return "RPGC"
  }
  return "invalid"
}

/* -------------------------------------------------------------------------- */

// Factor computes the divisor applied to all coverage values. The count
// argument is the number of units that passed the include/exclude
// filters during aggregation. For RPGC an effectiveGenomeSize of zero
// defaults to the sum of all chromosome lengths.
func (norm Normalization) Factor(records []BedGraphRecord, count float64, binSize int, effectiveGenomeSize float64, genome Genome) float64 {
  switch norm {
  case NormRPKM:
    return count * float64(binSize) / 1e9
  case NormCPM:
    return count / 1e6
  case NormBPM:
    return totalSignal(records) / 1e6
  case NormRPGC:
    if effectiveGenomeSize == 0.0 {
      effectiveGenomeSize = float64(genome.SumLengths())
    }
    return totalSignal(records) / effectiveGenomeSize
  }
  return 1.0
}

// Apply divides every coverage value by the normalization factor. The
// records are modified in place.
func (norm Normalization) Apply(records []BedGraphRecord, count float64, binSize int, effectiveGenomeSize float64, genome Genome) error {
  if norm == NormNone {
    return nil
  }
  factor := norm.Factor(records, count, binSize, effectiveGenomeSize, genome)
  if factor <= 0.0 {
    return fmt.Errorf("normalization `%s' is undefined for a track without signal", norm)
  }
  for i := 0; i < len(records); i++ {
    records[i].Value /= factor
  }
  return nil
}

/* -------------------------------------------------------------------------- */

// total number of covered bases weighted by their coverage value
func totalSignal(records []BedGraphRecord) float64 {
  result := 0.0
  for _, r := range records {
    result += r.Value * float64(r.To-r.From)
  }
  return result
}
