package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/viant/kproc"
	"github.com/viant/kproc/runtime/kernel"
	"github.com/viant/toolbox"
)

// Shell runs process-manager commands against a runtime.
type Shell struct {
	runtime *kproc.Runtime
	in      io.Reader
	out     io.Writer
}

type command struct {
	name string
	args int
	run  func(s *Shell, ctx context.Context, args []string) bool
	help string
}

var commands []command

func init() {
	commands = []command{
		{"list", 0, (*Shell).list, "list live processes"},
		{"kill", 1, (*Shell).kill, "kill <pid>"},
		{"execute", 2, (*Shell).execute, "execute <path> <stack pages>"},
		{"memlim", 2, (*Shell).memlim, "memlim <pid> <limit>"},
		{"dump", 0, (*Shell).dump, "print the process and thread table"},
		{"help", 0, (*Shell).help, "show this help message"},
		{"exit", 0, func(*Shell, context.Context, []string) bool { return false }, "leave the manager"},
	}
}

// NewShell creates a shell reading commands from in.
func NewShell(runtime *kproc.Runtime, in io.Reader, out io.Writer) *Shell {
	return &Shell{runtime: runtime, in: in, out: out}
}

// Run executes commands until exit or end of input.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		if !s.Execute(ctx, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// Execute runs a single command line and reports whether to continue.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	for _, cmd := range commands {
		if cmd.name != fields[0] {
			continue
		}
		if len(fields)-1 < cmd.args {
			fmt.Fprintf(s.out, "usage: %s\n", cmd.help)
			return true
		}
		return cmd.run(s, ctx, fields[1:])
	}
	fmt.Fprintf(s.out, "%s: unknown command\n", fields[0])
	return true
}

func (s *Shell) list(ctx context.Context, _ []string) bool {
	list, err := s.runtime.ProcList(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "list failed: %v\n", err)
		return true
	}
	kernel.PrintProcList(s.out, list)
	return true
}

func (s *Shell) kill(ctx context.Context, args []string) bool {
	pid, err := toolbox.ToInt(args[0])
	if err == nil {
		err = s.runtime.Kill(ctx, pid)
	}
	if err != nil {
		fmt.Fprintln(s.out, "kill failed")
		return true
	}
	fmt.Fprintln(s.out, "kill succeed")
	return true
}

func (s *Shell) execute(ctx context.Context, args []string) bool {
	stackPages, err := toolbox.ToInt(args[1])
	if err == nil {
		_, err = s.runtime.Execute(ctx, args[0], stackPages)
	}
	if err != nil {
		fmt.Fprintln(s.out, "execution failed")
	}
	return true
}

func (s *Shell) memlim(ctx context.Context, args []string) bool {
	pid, err := toolbox.ToInt(args[0])
	if err != nil {
		fmt.Fprintln(s.out, "setting failed")
		return true
	}
	limit, err := toolbox.ToInt(args[1])
	if err == nil {
		err = s.runtime.SetMemoryLimit(ctx, pid, limit)
	}
	if err != nil {
		fmt.Fprintln(s.out, "setting failed")
		return true
	}
	fmt.Fprintln(s.out, "setting succeed")
	return true
}

func (s *Shell) dump(ctx context.Context, _ []string) bool {
	_ = s.runtime.Dump(ctx, s.out)
	return true
}

func (s *Shell) help(_ context.Context, _ []string) bool {
	for _, cmd := range commands {
		fmt.Fprintf(s.out, "%-8s %s\n", cmd.name, cmd.help)
	}
	return true
}
