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
import "bytes"
import "database/sql"
import "fmt"
import "io"
import "os"
import "strconv"
import "strings"

import _ "github.com/go-sql-driver/mysql"

/* -------------------------------------------------------------------------- */

// Structure containing chromosome sizes. The order of sequences defines
// the chromosome indices used when writing BigWig files.
type Genome struct {
  Seqnames []string
  Lengths  []int
}

/* constructor
 * -------------------------------------------------------------------------- */

func NewGenome(seqnames []string, lengths []int) (Genome, error) {
  if len(seqnames) != len(lengths) {
    return Genome{}, fmt.Errorf("NewGenome(): invalid parameters")
  }
  return Genome{seqnames, lengths}, nil
}

/* -------------------------------------------------------------------------- */

// Number of chromosomes in the structure.
func (genome Genome) Length() int {
  return len(genome.Seqnames)
}

// Length of the given chromosome. Returns an error if the chromosome
// is not found.
func (genome Genome) SeqLength(seqname string) (int, error) {
  for i, s := range genome.Seqnames {
    if seqname == s {
      return genome.Lengths[i], nil
    }
  }
  return 0, fmt.Errorf("sequence `%s' not found in genome", seqname)
}

// Index of the given chromosome. Returns an error if the chromosome
// is not found.
func (genome Genome) GetIdx(seqname string) (int, error) {
  for i, s := range genome.Seqnames {
    if seqname == s {
      return i, nil
    }
  }
  return -1, fmt.Errorf("sequence `%s' not found in genome", seqname)
}

// Sum of all chromosome lengths, used as the default effective genome
// size for RPGC normalization.
func (genome Genome) SumLengths() int {
  sum := 0
  for _, length := range genome.Lengths {
    sum += length
  }
  return sum
}

func (genome Genome) Clone() Genome {
  seqnames := make([]string, len(genome.Seqnames))
  lengths  := make([]int,    len(genome.Lengths))
  copy(seqnames, genome.Seqnames)
  copy(lengths,  genome.Lengths)
  return Genome{seqnames, lengths}
}

func (genome Genome) Equals(g Genome) bool {
  if genome.Length() != g.Length() {
    return false
  }
  for i := 0; i < genome.Length(); i++ {
    if genome.Seqnames[i] != g.Seqnames[i] {
      return false
    }
    if genome.Lengths[i] != g.Lengths[i] {
      return false
    }
  }
  return true
}

// Return a genome restricted to the sequences for which f returns true.
func (genome Genome) Filter(f func(seqname string, length int) bool) Genome {
  seqnames := []string{}
  lengths  := []int{}
  for i := 0; i < genome.Length(); i++ {
    if f(genome.Seqnames[i], genome.Lengths[i]) {
      seqnames = append(seqnames, genome.Seqnames[i])
      lengths  = append(lengths,  genome.Lengths[i])
    }
  }
  return Genome{seqnames, lengths}
}

/* convert to string
 * -------------------------------------------------------------------------- */

func (genome Genome) String() string {
  var buffer bytes.Buffer

  buffer.WriteString(
    fmt.Sprintf("%10s %10s", "seqnames", "lengths"))

  for i := 0; i < genome.Length(); i++ {
    buffer.WriteString(
      fmt.Sprintf("\n%10s %10d",
        genome.Seqnames[i],
        genome.Lengths [i]))
  }
  return buffer.String()
}

/* i/o
 * -------------------------------------------------------------------------- */

// Read chromosome sizes from a UCSC text file. The format is a whitespace
// separated table where the first column is the name of the chromosome and
// the second column the chromosome length.
func (genome *Genome) Read(reader io.Reader) error {
  seqnames := []string{}
  lengths  := []int{}

  scanner := bufio.NewScanner(reader)
  for scanner.Scan() {
    fields := strings.Fields(scanner.Text())
    if len(fields) == 0 {
      continue
    }
    if len(fields) < 2 {
      return fmt.Errorf("invalid genome file")
    }
    t, err := strconv.ParseInt(fields[1], 10, 64)
    if err != nil {
      return err
    }
    seqnames = append(seqnames, fields[0])
    lengths  = append(lengths,  int(t))
  }
  if err := scanner.Err(); err != nil {
    return err
  }
  genome.Seqnames = seqnames
  genome.Lengths  = lengths
  return nil
}

func (genome *Genome) Import(filename string) error {
  f, err := os.Open(filename)
  if err != nil {
    return err
  }
  defer f.Close()

  if err := genome.Read(f); err != nil {
    return fmt.Errorf("importing genome from `%s' failed: %v", filename, err)
  }
  return nil
}

/* import from the UCSC database
 * -------------------------------------------------------------------------- */

// Import chromosome sizes from the chromInfo table of the UCSC public
// MySQL server, e.g. ImportGenomeFromUCSC("hg38").
func ImportGenomeFromUCSC(assembly string) (Genome, error) {
  genome := Genome{}
  /* variables for storing a single database row */
  var i_seqname string
  var i_length  int

  seqnames := []string{}
  lengths  := []int{}

  /* open connection */
  db, err := sql.Open("mysql",
    fmt.Sprintf("genome@tcp(genome-mysql.cse.ucsc.edu:3306)/%s", assembly))
  if err != nil {
    return genome, err
  }
  defer db.Close()

  if err := db.Ping(); err != nil {
    return genome, err
  }

  /* receive data */
  rows, err := db.Query("SELECT chrom, size FROM chromInfo")
  if err != nil {
    return genome, err
  }
  defer rows.Close()
  for rows.Next() {
    if err := rows.Scan(&i_seqname, &i_length); err != nil {
      return genome, err
    }
    seqnames = append(seqnames, i_seqname)
    lengths  = append(lengths,  i_length)
  }
  if err := rows.Err(); err != nil {
    return genome, err
  }
  return NewGenome(seqnames, lengths)
}
