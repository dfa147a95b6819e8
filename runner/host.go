package runner

import (
	"os/exec"
	"time"
)

// Stream identifies which output stream of a child a descriptor carries.
type Stream int

const (
	// StreamOut is the child's standard output.
	StreamOut Stream = iota
	// StreamErr is the child's standard error.
	StreamErr
	// StreamMerged carries both streams over one pipe (join mode).
	StreamMerged
)

// Mode selects how child output is presented.
type Mode int

const (
	// ModeLine interleaves complete lines from all hosts, each tagged
	// with its host name.
	ModeLine Mode = iota
	// ModeGroup streams raw chunks, printing a host header whenever the
	// active host changes.
	ModeGroup
	// ModeJoin captures each host's output in full and reports
	// equivalence classes of identical outputs after the run.
	ModeJoin
)

// Host is one remote target. A child process is spawned per host per run.
type Host struct {
	Name  string
	child *child
}

// fdSlot tracks one pipe read end owned by a child.
type fdSlot struct {
	fd   int
	open bool
}

// child is the local process executing the remote invocation for one host.
type child struct {
	cmd    *exec.Cmd
	stdout fdSlot // line/group modes
	stderr fdSlot
	stdio  fdSlot // join mode, merged

	exitCode int // -1 until reaped
	started  time.Time
	finished time.Time

	output []byte // join mode, complete captured stream
	class  int    // join mode, -1 until aggregation
}

func (c *child) closeSlot(s Stream) {
	switch s {
	case StreamOut:
		c.stdout.open = false
	case StreamErr:
		c.stderr.open = false
	case StreamMerged:
		c.stdio.open = false
	}
}

// stdioDone reports whether every pipe read end of the child has reached
// end of file. Only then may the child be reaped.
func (c *child) stdioDone() bool {
	return !c.stdout.open && !c.stderr.open && !c.stdio.open
}

// fdEvent is the token registered with the poll watcher for one pipe read
// end. It borrows its host; the host list owns it.
type fdEvent struct {
	host   *Host
	fd     int
	stream Stream
	buf    []byte // line reassembly (line mode) or capture (join mode)
	off    int
}
