package runner

import (
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// newPipe creates a close-on-exec pipe. The read end, returned raw, is
// switched to non-blocking for the epoll readers; the write end stays
// blocking so the child sees ordinary stdio semantics, and is wrapped for
// handing to exec.
func newPipe() (int, *os.File, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return -1, nil, errors.Wrap(err, "pipe2")
	}
	if err := unix.SetNonblock(p[0], true); err != nil {
		unix.Close(p[0])
		unix.Close(p[1])
		return -1, nil, errors.Wrap(err, "set nonblock")
	}
	return p[0], os.NewFile(uintptr(p[1]), "|1"), nil
}

// spawn starts the child for h with its output pipes wired, registers the
// read ends with the watcher, and records the start time. The write ends
// are closed in the parent so end of file propagates when the child exits.
func (o *Orchestrator) spawn(h *Host) error {
	argv := o.buildArgv(h.Name)
	if len(argv) == 0 {
		return errors.Errorf("empty argv for host %s", h.Name)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	c := &child{cmd: cmd, exitCode: -1, class: -1}

	var evs []*fdEvent
	if o.opts.Mode == ModeJoin {
		rfd, w, err := newPipe()
		if err != nil {
			return err
		}
		cmd.Stdout = w
		cmd.Stderr = w
		c.stdio = fdSlot{fd: rfd, open: true}
		evs = append(evs, &fdEvent{
			host:   h,
			fd:     rfd,
			stream: StreamMerged,
			buf:    make([]byte, o.opts.MaxOutputLength),
		})
		defer w.Close()
	} else {
		outfd, outw, err := newPipe()
		if err != nil {
			return err
		}
		errfd, errw, err := newPipe()
		if err != nil {
			unix.Close(outfd)
			outw.Close()
			return err
		}
		cmd.Stdout = outw
		cmd.Stderr = errw
		c.stdout = fdSlot{fd: outfd, open: true}
		c.stderr = fdSlot{fd: errfd, open: true}
		evs = append(evs,
			&fdEvent{host: h, fd: outfd, stream: StreamOut},
			&fdEvent{host: h, fd: errfd, stream: StreamErr})
		if o.opts.Mode == ModeLine {
			for _, ev := range evs {
				ev.buf = make([]byte, o.opts.MaxLineLength+2)
			}
		}
		defer outw.Close()
		defer errw.Close()
	}

	if err := cmd.Start(); err != nil {
		for _, ev := range evs {
			unix.Close(ev.fd)
		}
		return errors.Wrapf(err, "spawn %s", h.Name)
	}
	c.started = time.Now()
	h.child = c

	for _, ev := range evs {
		if err := o.watcher.Add(ev.fd, ev); err != nil {
			return err
		}
	}
	return nil
}
