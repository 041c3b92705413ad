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
import "io"
import "os"
import "path/filepath"
import "strings"

import "github.com/klauspost/compress/gzip"
import "github.com/klauspost/compress/zstd"

/* -------------------------------------------------------------------------- */

func iMin(a, b int) int {
  if a < b {
    return a
  } else {
    return b
  }
}

func iMax(a, b int) int {
  if a > b {
    return a
  } else {
    return b
  }
}

// Divide a by b, the result is rounded down.
func divIntDown(a, b int) int {
  return a/b
}

// Divide a by b, the result is rounded up.
func divIntUp(a, b int) int {
  return (a+b-1)/b
}

/* compression
 * -------------------------------------------------------------------------- */

type Compression int

const (
  CompressionNone Compression = iota
  CompressionGzip
  CompressionZstd
)

func ParseCompression(s string) (Compression, error) {
  switch strings.ToLower(s) {
  case ""    :
    return CompressionNone, nil
  case "gzip":
    return CompressionGzip, nil
  case "zstd":
    return CompressionZstd, nil
  }
  return CompressionNone, fmt.Errorf("invalid compression method `%s'", s)
}

func (compression Compression) String() string {
  switch compression {
  case CompressionGzip:
    return "gzip"
  case CompressionZstd:
    return "zstd"
  }
  return "none"
}

/* -------------------------------------------------------------------------- */

func isGzip(filename string) bool {
  f, err := os.Open(filename)
  if err != nil {
    return false
  }
  defer f.Close()

  b := make([]byte, 2)
  n, err := f.Read(b)
  if err != nil {
    return false
  }
  return n == 2 && b[0] == 0x1f && b[1] == 0x8b
}

func isZstd(filename string) bool {
  f, err := os.Open(filename)
  if err != nil {
    return false
  }
  defer f.Close()

  b := make([]byte, 4)
  n, err := f.Read(b)
  if err != nil {
    return false
  }
  return n == 4 && b[0] == 0x28 && b[1] == 0xb5 && b[2] == 0x2f && b[3] == 0xfd
}

/* -------------------------------------------------------------------------- */

type fileReader struct {
  io.Reader
  closers []io.Closer
}

func (reader fileReader) Close() error {
  var err error
  for _, c := range reader.closers {
    if e := c.Close(); e != nil && err == nil {
      err = e
    }
  }
  return err
}

// Open a file for reading. Gzip and zstd compressed files are detected
// from their magic numbers and decompressed transparently.
func openFileForRead(filename string) (io.ReadCloser, error) {
  f, err := os.Open(filename)
  if err != nil {
    return nil, err
  }
  switch {
  case isGzip(filename):
    g, err := gzip.NewReader(f)
    if err != nil {
      f.Close()
      return nil, err
    }
    return fileReader{g, []io.Closer{g, f}}, nil
  case isZstd(filename):
    z, err := zstd.NewReader(f)
    if err != nil {
      f.Close()
      return nil, err
    }
    r := z.IOReadCloser()
    return fileReader{r, []io.Closer{r, f}}, nil
  }
  return f, nil
}

/* -------------------------------------------------------------------------- */

type fileWriter struct {
  io.Writer
  closers []io.Closer
}

func (writer fileWriter) Close() error {
  var err error
  for _, c := range writer.closers {
    if e := c.Close(); e != nil && err == nil {
      err = e
    }
  }
  return err
}

// Create a file for writing with an optional compression filter. A
// compression level of zero selects the default level of the codec.
func openFileForWrite(filename string, compression Compression, level int) (io.WriteCloser, error) {
  f, err := os.Create(filename)
  if err != nil {
    return nil, err
  }
  switch compression {
  case CompressionGzip:
    if level == 0 {
      level = gzip.DefaultCompression
    }
    g, err := gzip.NewWriterLevel(f, level)
    if err != nil {
      f.Close()
      return nil, err
    }
    return fileWriter{g, []io.Closer{g, f}}, nil
  case CompressionZstd:
    opts := []zstd.EOption{}
    if level != 0 {
      opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
    }
    z, err := zstd.NewWriter(f, opts...)
    if err != nil {
      f.Close()
      return nil, err
    }
    return fileWriter{z, []io.Closer{z, f}}, nil
  }
  return f, nil
}

/* -------------------------------------------------------------------------- */

// Check that a file name constructed from a group label does not escape
// the output directory.
func isSanitizedFilename(filename string) bool {
  if filename == "" || filename == "." || filename == ".." {
    return false
  }
  if strings.ContainsRune(filename, os.PathSeparator) {
    return false
  }
  return filepath.Base(filename) == filename
}
