package main

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseHosts(t *testing.T) {
	input := `
# fleet
web1 web2
db1.internal # primary

db2.internal
`
	hosts, err := parseHosts(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseHosts returned error: %v", err)
	}

	want := []string{"web1", "web2", "db1.internal", "db2.internal"}
	if !reflect.DeepEqual(hosts, want) {
		t.Fatalf("got %v, want %v", hosts, want)
	}
}

func TestParseHostsKeepsDuplicates(t *testing.T) {
	hosts, err := parseHosts(strings.NewReader("a a b"))
	if err != nil {
		t.Fatalf("parseHosts returned error: %v", err)
	}
	if !reflect.DeepEqual(hosts, []string{"a", "a", "b"}) {
		t.Fatalf("got %v", hosts)
	}
}

func TestParseHostsEmpty(t *testing.T) {
	if _, err := parseHosts(strings.NewReader("# nothing here\n\n")); err == nil {
		t.Fatalf("expected error for empty host list")
	}
}
