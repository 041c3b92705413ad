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

package progress

/* -------------------------------------------------------------------------- */

import "bytes"
import "bufio"
import "fmt"
import "os"
import "sync/atomic"

/* -------------------------------------------------------------------------- */

// A Meter tracks how many of N work items finished. Increment may be
// called from multiple goroutines.
type Meter struct {
  N         int
  LineWidth int
  done      int64
}

/* -------------------------------------------------------------------------- */

func New(n int) *Meter {
  return &Meter{N: n, LineWidth: 40}
}

/* -------------------------------------------------------------------------- */

const __line_del__ = "\033[2K\r"

func (meter *Meter) Exec(i int) string {
  var buffer bytes.Buffer
  writer := bufio.NewWriter(&buffer)

  p := float64(i)/float64(meter.N)
  // carriage return
  fmt.Fprintf(writer, "%s|", __line_del__)

  for i := 1; i < meter.LineWidth-1; i++ {
    if float64(i)/float64(meter.LineWidth) < p {
      fmt.Fprintf(writer, ">")
    } else {
      fmt.Fprintf(writer, " ")
    }
  }
  fmt.Fprintf(writer, "| %6.2f%% (%d/%d)", p*100, i, meter.N)
  // add newline if finished
  if p == 1.0 {
    fmt.Fprintf(writer, "\n")
  }
  writer.Flush()

  return buffer.String()
}

// Increment marks one more work item as finished and redraws the bar
func (meter *Meter) Increment() {
  i := int(atomic.AddInt64(&meter.done, 1))
  if i <= meter.N {
    fmt.Fprint(os.Stderr, meter.Exec(i))
  }
}

func (meter *Meter) PrintStderr() {
  fmt.Fprint(os.Stderr, meter.Exec(int(atomic.LoadInt64(&meter.done))))
}
