package runner

import (
	"bytes"
	"fmt"
)

// aggregate partitions hosts into equivalence classes of byte-identical
// captured outputs and prints the report. Class ids follow the order of
// first occurrence in the host list, so the report is deterministic for a
// fixed host order no matter how the children finished.
func (o *Orchestrator) aggregate() {
	var counts []int
	next := 0
	for i, h := range o.hosts {
		if h.child.class >= 0 {
			continue
		}
		h.child.class = next
		n := 1
		for _, g := range o.hosts[i+1:] {
			if g.child.class < 0 && bytes.Equal(g.child.output, h.child.output) {
				g.child.class = next
				n++
			}
		}
		counts = append(counts, n)
		next++
	}

	w := o.con.w
	fmt.Fprintf(w, "finished with %d unique result(s)\n", next)
	for id := 0; id < next; id++ {
		headerColor.Fprintf(w, "hosts (%d/%d):", counts[id], len(o.hosts))
		var output []byte
		for _, h := range o.hosts {
			if h.child.class == id {
				fmt.Fprintf(w, " %s", h.Name)
				output = h.child.output
			}
		}
		fmt.Fprintln(w)
		w.Write(output)
		if len(output) == 0 || output[len(output)-1] != '\n' {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}
	o.con.newlinePrinted = true
}
