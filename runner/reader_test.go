package runner

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
)

func testOrch(t *testing.T, opts Options, names ...string) (*Orchestrator, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	hosts := make([]*Host, len(names))
	for i, name := range names {
		hosts[i] = &Host{Name: name, child: &child{exitCode: -1, class: -1}}
	}
	var buf bytes.Buffer
	o := &Orchestrator{
		opts:  opts,
		hosts: hosts,
		con:   console{w: &buf, newlinePrinted: true},
	}
	return o, &buf
}

func lineEvent(o *Orchestrator, h *Host, s Stream) *fdEvent {
	return &fdEvent{host: h, stream: s, buf: make([]byte, o.opts.MaxLineLength+2)}
}

func TestLineReassembly(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeLine, MaxJobs: 1, MaxLineLength: 64, MaxOutputLength: 1}, "a")
	ev := lineEvent(o, o.hosts[0], StreamOut)

	o.feedLine(ev, []byte("hello\nwor"))
	o.feedLine(ev, []byte("ld\n"))

	want := "[a] hello\n[a] world\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLineOversizeBoundary(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeLine, MaxJobs: 1, MaxLineLength: 4, MaxOutputLength: 1}, "a")
	ev := lineEvent(o, o.hosts[0], StreamOut)

	o.feedLine(ev, []byte("abcdefg\n"))

	// The oversized line is forced out with an injected newline, body
	// length exactly MaxLineLength+1 including it.
	want := "[a] abcd\n[a] efg\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLineFinalFlushWithoutNewline(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeLine, MaxJobs: 1, MaxLineLength: 64, MaxOutputLength: 1}, "a")
	ev := lineEvent(o, o.hosts[0], StreamOut)

	o.feedLine(ev, []byte("x"))
	if buf.Len() != 0 {
		t.Fatalf("partial line emitted early: %q", buf.String())
	}
	o.finish(ev)

	want := "[a] x\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if ev.off != 0 {
		t.Fatalf("offset not reset: %d", ev.off)
	}
}

func TestLineAnonymous(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeLine, MaxJobs: 1, MaxLineLength: 64, MaxOutputLength: 1, Anonymous: true}, "a")
	ev := lineEvent(o, o.hosts[0], StreamOut)

	o.feedLine(ev, []byte("hello\n"))

	if got := buf.String(); got != "hello\n" {
		t.Fatalf("got %q, want %q", got, "hello\n")
	}
}

func TestLineStreamsKeepSeparateBuffers(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeLine, MaxJobs: 1, MaxLineLength: 64, MaxOutputLength: 1}, "a")
	out := lineEvent(o, o.hosts[0], StreamOut)
	errEv := lineEvent(o, o.hosts[0], StreamErr)

	o.feedLine(out, []byte("par"))
	o.feedLine(errEv, []byte("oops\n"))
	o.feedLine(out, []byte("tial\n"))

	want := "[a] oops\n[a] partial\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestGroupHeaderTransitions(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeGroup, MaxJobs: 2, MaxLineLength: 1, MaxOutputLength: 1}, "a", "b")
	evA := &fdEvent{host: o.hosts[0], stream: StreamOut}
	evB := &fdEvent{host: o.hosts[1], stream: StreamOut}

	o.feedGroup(evA, []byte("one\n"))
	o.feedGroup(evB, []byte("two\n"))
	o.feedGroup(evA, []byte("three\n"))

	want := "[a]\none\n[b]\ntwo\n[a]\nthree\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestGroupSameHostNoRepeatedHeader(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeGroup, MaxJobs: 1, MaxLineLength: 1, MaxOutputLength: 1}, "a")
	ev := &fdEvent{host: o.hosts[0], stream: StreamOut}

	o.feedGroup(ev, []byte("one\n"))
	o.feedGroup(ev, []byte("two\n"))

	want := "[a]\none\ntwo\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestGroupExitLineStartsAtColumnZero(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeGroup, MaxJobs: 1, MaxLineLength: 1, MaxOutputLength: 1, ExitCodes: true}, "a")
	h := o.hosts[0]
	h.child.started = time.Now()
	ev := &fdEvent{host: h, stream: StreamOut}

	// Chunk without a trailing newline; the exit line must inject one.
	o.feedGroup(ev, []byte("x"))
	h.child.exitCode = 0
	h.child.finished = h.child.started
	o.printExitLine(h)

	want := "[a]\nx\n[a] exited: 0 (0 ms)\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !o.con.newlinePrinted {
		t.Fatalf("newlinePrinted should be true after exit line")
	}
}

func TestJoinCaptureBound(t *testing.T) {
	o, buf := testOrch(t, Options{Mode: ModeJoin, MaxJobs: 1, MaxLineLength: 1, MaxOutputLength: 4}, "a")
	h := o.hosts[0]
	ev := &fdEvent{host: h, stream: StreamMerged, buf: make([]byte, o.opts.MaxOutputLength)}

	o.feedJoin(ev, []byte("abc"))
	o.feedJoin(ev, []byte("defg"))
	o.finish(ev)

	if buf.Len() != 0 {
		t.Fatalf("join mode wrote live output: %q", buf.String())
	}
	if got := string(h.child.output); got != "abcd" {
		t.Fatalf("captured %q, want %q", got, "abcd")
	}
	if ev.buf != nil {
		t.Fatalf("event buffer not released after handoff")
	}
}
