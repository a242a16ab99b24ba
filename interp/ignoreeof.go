// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bufio"
	"fmt"
	"io"

	"mvdan.cc/posh/system"
)

// maxIgnoreEOFRetries bounds how many consecutive empty lines one ReadLine
// call skips before it returns the next empty line as is, so a
// script piped into an interactive shell by mistake cannot hang forever
// (grounded on yash-env/src/input/ignore_eof.rs's remaining_tries, which
// starts at the same count).
const maxIgnoreEOFRetries = 50

// IgnoreEOFReader decorates a line source with the `ignoreeof` shell
// option (spec's SUPPLEMENTED FEATURES "ignore-eof input decorator"),
// grounded on yash-env/src/input/ignore_eof.rs's IgnoreEof: when the shell
// is interactive, `ignoreeof` is on, and fd is a terminal, an empty line
// read from the wrapped source is treated as a spurious EOF and retried,
// printing message each time, rather than ending the read-eval loop the
// way ^D normally would.
type IgnoreEOFReader struct {
	lines   *bufio.Scanner
	r       *Runner
	fd      system.Fd
	message string
}

// NewIgnoreEOFReader wraps r, decorating it with the Runner's `ignoreeof`
// option. fd must be the descriptor src itself reads from, so the
// decorator's terminal check matches reality.
func NewIgnoreEOFReader(src io.Reader, r *Runner, fd system.Fd, message string) *IgnoreEOFReader {
	return &IgnoreEOFReader{
		lines:   bufio.NewScanner(src),
		r:       r,
		fd:      fd,
		message: message,
	}
}

// ReadLine returns the next line of input, sans trailing newline. It
// returns io.EOF as soon as the wrapped source is exhausted. While the
// `ignoreeof` decoration applies, an empty line is skipped after printing
// the message, up to maxIgnoreEOFRetries times per call; after that, or
// when the decoration does not apply, the empty line is returned.
func (e *IgnoreEOFReader) ReadLine() (string, error) {
	tries := 0
	for {
		if !e.lines.Scan() {
			if err := e.lines.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		line := e.lines.Text()
		if line != "" || !e.shouldIgnore() || tries >= maxIgnoreEOFRetries {
			return line, nil
		}
		fmt.Fprintln(e.r.Stderr(), e.message)
		tries++
	}
}

func (e *IgnoreEOFReader) shouldIgnore() bool {
	interactive, _ := e.r.OptionByName("interactive")
	ignoreEOF, _ := e.r.OptionByName("ignoreeof")
	return interactive && ignoreEOF && e.r.Sys.IsATTY(e.fd)
}
