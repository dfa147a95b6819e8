// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package runner executes one remote command against a fleet of hosts by
// fanning out child processes in parallel, multiplexing their output pipes
// through an epoll watcher, and presenting the streams under one of three
// output disciplines.
package runner

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/sshp/sshp/poll"
)

// maxEvents bounds how many readiness tokens one wait may return.
const maxEvents = 64

// progName tags the join-mode progress line.
const progName = "sshp"

var (
	headerColor = color.New(color.FgCyan)
	stderrColor = color.New(color.FgRed)
	okColor     = color.New(color.FgGreen)
	failColor   = color.New(color.FgRed)
)

// BuildArgv yields the argument vector to execute for a host. The runner
// does not interpret its contents.
type BuildArgv func(host string) []string

// Options configure a run. Validate rejects unusable combinations.
type Options struct {
	Mode            Mode
	MaxJobs         int  // parallelism bound
	MaxLineLength   int  // line mode reassembly bound
	MaxOutputLength int  // join mode capture bound
	Anonymous       bool // suppress host headers
	ExitCodes       bool // emit per-host exit lines
	Silent          bool // discard child output entirely
	Trim            bool // truncate host names at the first '.'
	Debug           bool
	Terminal        bool // stdout is a terminal; gates the join progress line
}

// Validate checks option ranges and mutual exclusions.
func (o *Options) Validate() error {
	if o.MaxJobs < 1 {
		return errors.New("max jobs must be positive")
	}
	if o.MaxLineLength < 1 {
		return errors.New("max line length must be positive")
	}
	if o.MaxOutputLength < 1 {
		return errors.New("max output length must be positive")
	}
	if o.Mode == ModeJoin && o.Silent {
		return errors.New("join mode is incompatible with silent")
	}
	if o.Mode == ModeJoin && o.Anonymous {
		return errors.New("join mode is incompatible with anonymous")
	}
	return nil
}

// console is the shared presentation state for the user's standard output.
// newlinePrinted is true exactly when the most recent byte written was a
// newline, or nothing has been written yet.
type console struct {
	w              io.Writer
	newlinePrinted bool
	lastHost       *Host
}

// Orchestrator owns the host list and drives the fill/wait/dispatch loop.
type Orchestrator struct {
	opts      Options
	hosts     []*Host
	buildArgv BuildArgv
	watcher   *poll.Watcher
	con       console

	outstanding int
	done        int
}

// New creates an orchestrator over the named hosts. The host order is
// preserved for spawning and for join-mode class numbering.
func New(opts Options, names []string, buildArgv BuildArgv) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New("empty host list")
	}

	watcher, err := poll.NewWatcher()
	if err != nil {
		return nil, err
	}

	hosts := make([]*Host, len(names))
	for i, name := range names {
		hosts[i] = &Host{Name: name}
	}

	return &Orchestrator{
		opts:      opts,
		hosts:     hosts,
		buildArgv: buildArgv,
		watcher:   watcher,
		con:       console{w: os.Stdout, newlinePrinted: true},
	}, nil
}

// Hosts exposes the host list in input order.
func (o *Orchestrator) Hosts() []*Host {
	return o.hosts
}

// Run spawns at most MaxJobs children at a time, dispatches pipe readiness
// to the stream readers, and reaps each child once all of its pipes reach
// end of file. In join mode the equivalence-class report follows.
func (o *Orchestrator) Run() error {
	defer o.watcher.Close()

	cursor := 0
	for cursor < len(o.hosts) || o.outstanding > 0 {
		// Refill free slots before blocking so a just-finished slot is
		// reused immediately.
		for cursor < len(o.hosts) && o.outstanding < o.opts.MaxJobs {
			h := o.hosts[cursor]
			if err := o.spawn(h); err != nil {
				return err
			}
			// The child got the full name; displays get the short one.
			if o.opts.Trim {
				if i := strings.IndexByte(h.Name, '.'); i >= 0 {
					h.Name = h.Name[:i]
				}
			}
			cursor++
			o.outstanding++
		}

		toks, err := o.watcher.Wait(maxEvents)
		if err != nil {
			return err
		}

		for _, tok := range toks {
			ev := tok.(*fdEvent)
			closed, err := o.pump(ev)
			if err != nil {
				return err
			}
			if closed && ev.host.child.stdioDone() {
				if err := o.reap(ev.host); err != nil {
					return err
				}
				o.outstanding--
				o.done++
				if o.opts.Mode == ModeJoin {
					o.progress()
				}
			}
		}
	}

	if o.opts.Mode == ModeJoin {
		o.aggregate()
	}
	return nil
}

// reap waits on a child whose pipes have all reported end of file, records
// its exit code and finish time, and optionally prints the exit line.
func (o *Orchestrator) reap(h *Host) error {
	c := h.child
	code := 0
	if err := c.cmd.Wait(); err != nil {
		ee, ok := err.(*exec.ExitError)
		if !ok {
			return errors.Wrapf(err, "wait %s", h.Name)
		}
		code = ee.ExitCode()
		if code < 0 {
			// Terminated by signal; report it shell-style.
			if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				code = 128 + int(ws.Signal())
			}
		}
	}
	c.exitCode = code
	c.finished = time.Now()

	if o.opts.ExitCodes || o.opts.Debug {
		o.printExitLine(h)
	}
	return nil
}

// printExitLine reports a host's exit code and elapsed time, starting at
// column 0.
func (o *Orchestrator) printExitLine(h *Host) {
	c := h.child
	if !o.con.newlinePrinted {
		fmt.Fprintln(o.con.w)
	}
	codeColor := okColor
	if c.exitCode != 0 {
		codeColor = failColor
	}
	delta := c.finished.Sub(c.started).Milliseconds()
	headerColor.Fprintf(o.con.w, "[%s]", h.Name)
	fmt.Fprint(o.con.w, " exited: ")
	codeColor.Fprintf(o.con.w, "%d", c.exitCode)
	fmt.Fprintf(o.con.w, " (%d ms)\n", delta)
	o.con.newlinePrinted = true
	o.con.lastHost = nil
}

// progress rewrites the join-mode completion counter in place. Only shown
// on a terminal; redirected output stays clean for the final report.
func (o *Orchestrator) progress() {
	if !o.opts.Terminal {
		return
	}
	fmt.Fprintf(o.con.w, "[%s] finished %d/%d\r", progName, o.done, len(o.hosts))
	o.con.newlinePrinted = false
	if o.done == len(o.hosts) {
		fmt.Fprintln(o.con.w)
		o.con.newlinePrinted = true
	}
}
