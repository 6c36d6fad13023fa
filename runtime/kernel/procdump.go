package kernel

import (
	"fmt"
	"io"
	"strings"
)

// ProcInfo is one row of the process listing.
type ProcInfo struct {
	Name       string `json:"name" yaml:"name"`
	PID        int    `json:"pid" yaml:"pid"`
	StackPages int    `json:"stackPages" yaml:"stackPages"`
	Size       uint32 `json:"size" yaml:"size"`
	Limit      int    `json:"limit" yaml:"limit"`
}

// procList snapshots every process that is neither unused, embryo nor zombie.
func (k *Kernel) procList(c *CPU) []ProcInfo {
	c.acquire(&k.ptable.lock)
	defer c.release(&k.ptable.lock)
	var ret []ProcInfo
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state == Unused || p.state == Embryo || p.state == Zombie {
			continue
		}
		ret = append(ret, ProcInfo{Name: p.name, PID: p.pid, StackPages: p.stacksize, Size: p.sz, Limit: p.memlimit})
	}
	return ret
}

// PrintProcList renders a process listing the way the console shows it.
func PrintProcList(w io.Writer, list []ProcInfo) {
	fmt.Fprintf(w, "Process Name\t pid\tnumofstackpage\tmemsize\t memmax\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 57))
	for _, p := range list {
		switch {
		case len(p.Name) < 8:
			fmt.Fprintf(w, "%s\t\t ", p.Name)
		case len(p.Name) < 16:
			fmt.Fprintf(w, "%s\t ", p.Name)
		default:
			fmt.Fprintf(w, "%s ", p.Name)
		}
		fmt.Fprintf(w, "%d\t%d\t\t%d\t %d\t\n", p.PID, p.StackPages, p.Size, p.Limit)
	}
}

// Dump writes every used process and its threads to w.
func (k *Kernel) Dump(w io.Writer) {
	k.withConsole(func(c *CPU) {
		c.acquire(&k.ptable.lock)
		defer c.release(&k.ptable.lock)
		for i := range k.ptable.proc {
			p := &k.ptable.proc[i]
			if p.state == Unused {
				continue
			}
			fmt.Fprintf(w, "%d %s %s", p.pid, p.state, p.name)
			if p.state == Running && p.cpu != nil {
				fmt.Fprintf(w, " cpu%d", p.cpu.id)
			}
			fmt.Fprintln(w)
			for j := range p.threads {
				if t := &p.threads[j]; t.state != TUnused {
					fmt.Fprintf(w, "  [%d] tid %d %s\n", j, t.tid, t.state)
				}
			}
		}
	})
}
