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
import "fmt"
import "io"
import "os"
import "strconv"
import "strings"

/* -------------------------------------------------------------------------- */

func WriteBedGraph(writer io.Writer, records []BedGraphRecord) error {
  w := bufio.NewWriter(writer)
  for _, record := range records {
    if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%g\n", record.Seqname, record.From, record.To, record.Value); err != nil {
      return err
    }
  }
  return w.Flush()
}

func ReadBedGraph(reader io.Reader) ([]BedGraphRecord, error) {
  records := []BedGraphRecord{}
  scanner := bufio.NewScanner(reader)
  for i := 1; scanner.Scan(); i++ {
    line := strings.TrimSpace(scanner.Text())
    if len(line) == 0 {
      continue
    }
    fields := strings.Fields(line)
    if len(fields) != 4 {
      return nil, fmt.Errorf("bedGraph line `%d' has invalid number of columns", i)
    }
    from, err := strconv.Atoi(fields[1])
    if err != nil {
      return nil, fmt.Errorf("parsing bedGraph line `%d' failed: %v", i, err)
    }
    to, err := strconv.Atoi(fields[2])
    if err != nil {
      return nil, fmt.Errorf("parsing bedGraph line `%d' failed: %v", i, err)
    }
    value, err := strconv.ParseFloat(fields[3], 64)
    if err != nil {
      return nil, fmt.Errorf("parsing bedGraph line `%d' failed: %v", i, err)
    }
    records = append(records, BedGraphRecord{fields[0], from, to, value})
  }
  if err := scanner.Err(); err != nil {
    return nil, err
  }
  return records, nil
}

/* -------------------------------------------------------------------------- */

// ExportBedGraph writes the records to a bedGraph text file, optionally
// compressed
func ExportBedGraph(filename string, records []BedGraphRecord, compression Compression) error {
  writer, err := openFileForWrite(filename, compression, 6)
  if err != nil {
    return err
  }
  if err := WriteBedGraph(writer, records); err != nil {
    writer.Close()
    return err
  }
  return writer.Close()
}

// ExportBigWig writes the records to a bigWig file
func ExportBigWig(filename string, records []BedGraphRecord, genome Genome) error {
  file, err := os.Create(filename)
  if err != nil {
    return err
  }
  if err := WriteBigWig(file, records, genome); err != nil {
    file.Close()
    os.Remove(filename)
    return err
  }
  return file.Close()
}

// ImportBedGraph reads a bedGraph text file, optionally gzip or zstd
// compressed
func ImportBedGraph(filename string) ([]BedGraphRecord, error) {
  reader, err := openFileForRead(filename)
  if err != nil {
    return nil, err
  }
  defer reader.Close()

  records, err := ReadBedGraph(reader)
  if err != nil {
    return nil, fmt.Errorf("importing bedGraph file `%s' failed: %v", filename, err)
  }
  return records, nil
}

// ImportBigWig reads a bigWig file
func ImportBigWig(filename string) (Genome, []BedGraphRecord, error) {
  file, err := os.Open(filename)
  if err != nil {
    return Genome{}, nil, err
  }
  defer file.Close()

  genome, records, err := ReadBigWig(file)
  if err != nil {
    return Genome{}, nil, fmt.Errorf("importing bigWig file `%s' failed: %v", filename, err)
  }
  return genome, records, nil
}
