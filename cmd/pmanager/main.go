// pmanager boots a kproc kernel with a set of sample programs and reads
// process-manager commands from standard input.
//
// Usage:
//
//	pmanager [-config URL] [-trace file]
//
// Commands:
//
//	list                  list live processes
//	kill <pid>            kill a process
//	execute <path> <n>    run an image with n stack pages
//	memlim <pid> <limit>  set a memory limit in bytes, 0 for none
//	dump                  print the process and thread table
//	exit                  leave the manager
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/viant/kproc"
)

func main() {
	configURL := flag.String("config", "", "config URL (yaml)")
	traceFile := flag.String("trace", "", "write spans to file")
	flag.Parse()

	ctx := context.Background()
	cfg := kproc.DefaultConfig()
	if *configURL != "" {
		var err error
		if cfg, err = kproc.LoadConfig(ctx, *configURL); err != nil {
			fmt.Fprintf(os.Stderr, "pmanager: %v\n", err)
			os.Exit(1)
		}
	}
	if *traceFile != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.OutputFile = *traceFile
	}

	srv := kproc.New(kproc.WithConfig(cfg), kproc.WithConsole(os.Stdout))
	runtime := srv.Runtime()
	if err := runtime.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pmanager: %v\n", err)
		os.Exit(1)
	}
	if err := installPrograms(ctx, runtime); err != nil {
		fmt.Fprintf(os.Stderr, "pmanager: %v\n", err)
		os.Exit(1)
	}
	err := NewShell(runtime, os.Stdin, os.Stdout).Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = runtime.Shutdown(shutdownCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pmanager: %v\n", err)
		os.Exit(1)
	}
}
