package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// readHosts reads the ordered host list from path, or from standard input
// when path is empty or "-". Hosts are whitespace-separated; blank lines
// and '#' comments are skipped. Duplicates are kept.
func readHosts(path string) ([]string, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "host file")
		}
		defer f.Close()
		r = f
	}
	return parseHosts(r)
}

func parseHosts(r io.Reader) ([]string, error) {
	var hosts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		hosts = append(hosts, strings.Fields(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "host list")
	}
	if len(hosts) == 0 {
		return nil, errors.New("empty host list")
	}
	return hosts, nil
}
