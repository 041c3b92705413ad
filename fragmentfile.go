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
import "strings"

/* -------------------------------------------------------------------------- */

// A FragmentFile reads single-cell fragments from a BED-like text file,
// optionally gzip or zstd compressed. Lines starting with `#' are
// skipped. Fragments shorter than MinLength or longer than MaxLength
// are dropped, a bound of zero is ignored.
type FragmentFile struct {
  Filename  string
  MinLength int
  MaxLength int
}

type FragmentFileType struct {
  Fragment
  Error error
}

func NewFragmentFile(filename string) FragmentFile {
  return FragmentFile{Filename: filename}
}

// Read opens the file and parses its fragments. The file is re-opened
// on every call so that the stream can be consumed multiple times.
func (file FragmentFile) Read() <- chan FragmentFileType {
  channel := make(chan FragmentFileType, 1024)
  go func() {
    defer close(channel)
    file.fillChannel(channel)
  }()
  return channel
}

func (file FragmentFile) fillChannel(channel chan <- FragmentFileType) {
  reader, err := openFileForRead(file.Filename)
  if err != nil {
    channel <- FragmentFileType{Error: err}
    return
  }
  defer reader.Close()

  scanner := bufio.NewScanner(reader)
  scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
  for i := 1; scanner.Scan(); i++ {
    line := strings.TrimSpace(scanner.Text())
    if len(line) == 0 || strings.HasPrefix(line, "#") {
      continue
    }
    fragment := Fragment{}
    if err := fragment.Parse(line); err != nil {
      channel <- FragmentFileType{Error: fmt.Errorf("parsing `%s' failed at line `%d': %v", file.Filename, i, err)}
      return
    }
    if file.MinLength > 0 && fragment.Length() < file.MinLength {
      continue
    }
    if file.MaxLength > 0 && fragment.Length() > file.MaxLength {
      continue
    }
    channel <- FragmentFileType{Fragment: fragment}
  }
  if err := scanner.Err(); err != nil {
    channel <- FragmentFileType{Error: err}
  }
}
