//go:build linux || darwin || freebsd
// +build linux darwin freebsd

package main

import (
	"os/signal"
	"syscall"
)

func init() {
	// A reader closing our standard output early must not kill the
	// orchestrator; writes to it then fail with EPIPE instead.
	signal.Ignore(syscall.SIGPIPE)
}
