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

//go:build linux
// +build linux

// Package poll provides a level-triggered read-readiness multiplexer over
// raw file descriptors, backed by epoll.
package poll

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Token is the opaque value associated with a registered descriptor and
// handed back by Wait when that descriptor becomes readable.
type Token interface{}

// Watcher multiplexes read readiness over a set of file descriptors.
// It is not safe for concurrent use; the caller drives it from a single
// goroutine. Descriptors must be removed before they are closed, otherwise
// a recycled fd number can be delivered against a stale token.
type Watcher struct {
	epfd   int
	tokens map[int]Token
	events []unix.EpollEvent
}

// NewWatcher creates an epoll instance for read-readiness monitoring.
func NewWatcher() (*Watcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create1")
	}
	return &Watcher{
		epfd:   epfd,
		tokens: make(map[int]Token),
	}, nil
}

// Add registers fd for read readiness and associates tok with it.
func (w *Watcher) Add(fd int, tok Token) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrapf(err, "epoll_ctl add fd %d", fd)
	}
	w.tokens[fd] = tok
	return nil
}

// Remove deregisters fd. The fd must still be open when Remove is called.
func (w *Watcher) Remove(fd int) error {
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrapf(err, "epoll_ctl del fd %d", fd)
	}
	delete(w.tokens, fd)
	return nil
}

// Len reports the number of registered descriptors.
func (w *Watcher) Len() int {
	return len(w.tokens)
}

// Wait blocks until at least one registered descriptor is read-ready and
// returns up to max tokens, one per ready descriptor. With no descriptors
// registered it returns an empty list immediately.
func (w *Watcher) Wait(max int) ([]Token, error) {
	if len(w.tokens) == 0 {
		return nil, nil
	}
	if cap(w.events) < max {
		w.events = make([]unix.EpollEvent, max)
	}
	events := w.events[:max]

	for {
		n, err := unix.EpollWait(w.epfd, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "epoll_wait")
		}

		toks := make([]Token, 0, n)
		for i := 0; i < n; i++ {
			if tok, ok := w.tokens[int(events[i].Fd)]; ok {
				toks = append(toks, tok)
			}
		}
		return toks, nil
	}
}

// Close releases the epoll instance. Registered descriptors are left open.
func (w *Watcher) Close() error {
	w.tokens = nil
	return unix.Close(w.epfd)
}
