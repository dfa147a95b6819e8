package runner

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// readChunk sizes the scratch buffer for one read syscall.
const readChunk = 4096

// pump drains a read-ready descriptor until it would block or reaches end
// of file. On end of file the descriptor is deregistered, closed, and its
// slot on the child marked closed; pump then reports closed=true so the
// scheduler can check whether the child is ready to reap.
func (o *Orchestrator) pump(ev *fdEvent) (closed bool, err error) {
	var chunk [readChunk]byte
	for {
		n, err := unix.Read(ev.fd, chunk[:])
		if n > 0 {
			if !o.opts.Silent {
				o.feed(ev, chunk[:n])
			}
			continue
		}
		if n == 0 && err == nil {
			if err := o.watcher.Remove(ev.fd); err != nil {
				return false, err
			}
			unix.Close(ev.fd)
			ev.host.child.closeSlot(ev.stream)
			o.finish(ev)
			return true, nil
		}
		if err == unix.EAGAIN {
			return false, nil
		}
		if err == unix.EINTR {
			continue
		}
		return false, errors.Wrapf(err, "read from %s", ev.host.Name)
	}
}

// feed dispatches a chunk of child output to the active discipline.
func (o *Orchestrator) feed(ev *fdEvent, chunk []byte) {
	switch o.opts.Mode {
	case ModeLine:
		o.feedLine(ev, chunk)
	case ModeGroup:
		o.feedGroup(ev, chunk)
	case ModeJoin:
		o.feedJoin(ev, chunk)
	}
}

// finish runs the per-mode end-of-stream step.
func (o *Orchestrator) finish(ev *fdEvent) {
	switch o.opts.Mode {
	case ModeLine:
		// Flush a trailing partial line, terminating it ourselves.
		if ev.off > 0 {
			if ev.buf[ev.off-1] != '\n' {
				ev.buf[ev.off] = '\n'
				ev.off++
			}
			o.emitLine(ev)
			ev.off = 0
		}
	case ModeJoin:
		// Hand the capture over to the child; the event is dead now.
		ev.host.child.output = ev.buf[:ev.off]
		ev.buf = nil
	}
}

// feedLine reassembles complete lines. A line longer than MaxLineLength is
// forced out with an injected newline, so the buffer never grows past
// MaxLineLength+1 bytes.
func (o *Orchestrator) feedLine(ev *fdEvent, chunk []byte) {
	for _, b := range chunk {
		if ev.off == o.opts.MaxLineLength {
			ev.buf[ev.off] = '\n'
			ev.off++
			o.emitLine(ev)
			ev.off = 0
		}
		ev.buf[ev.off] = b
		ev.off++
		if b == '\n' {
			o.emitLine(ev)
			ev.off = 0
		}
	}
}

// emitLine writes one complete, newline-terminated line, tagged with the
// host unless running anonymous. Lines are written whole, so output from
// different hosts interleaves at line boundaries only.
func (o *Orchestrator) emitLine(ev *fdEvent) {
	if !o.opts.Anonymous {
		headerColor.Fprintf(o.con.w, "[%s] ", ev.host.Name)
	}
	line := ev.buf[:ev.off]
	if ev.stream == StreamErr {
		stderrColor.Fprintf(o.con.w, "%s", line)
	} else {
		o.con.w.Write(line)
	}
	o.con.newlinePrinted = true
}

// feedGroup streams raw chunks, printing a host header whenever the
// active host changes.
func (o *Orchestrator) feedGroup(ev *fdEvent, chunk []byte) {
	if o.con.lastHost != ev.host {
		if !o.con.newlinePrinted {
			fmt.Fprintln(o.con.w)
		}
		if !o.opts.Anonymous {
			headerColor.Fprintf(o.con.w, "[%s]\n", ev.host.Name)
		}
		o.con.lastHost = ev.host
		o.con.newlinePrinted = true
	}
	if ev.stream == StreamErr {
		stderrColor.Fprintf(o.con.w, "%s", chunk)
	} else {
		o.con.w.Write(chunk)
	}
	o.con.newlinePrinted = chunk[len(chunk)-1] == '\n'
}

// feedJoin accumulates the merged stream up to MaxOutputLength; anything
// beyond the bound is dropped.
func (o *Orchestrator) feedJoin(ev *fdEvent, chunk []byte) {
	room := o.opts.MaxOutputLength - ev.off
	if room <= 0 {
		return
	}
	if len(chunk) > room {
		chunk = chunk[:room]
	}
	copy(ev.buf[ev.off:], chunk)
	ev.off += len(chunk)
}
