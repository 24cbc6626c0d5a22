// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// hsh is a POSIX-style interactive command shell built on top of
// [interp]: it reads a command language from a terminal or a -c
// argument, parses and expands it, and dispatches execution across
// external processes, builtins, pipelines and compound control
// structures.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/hsh-shell/hsh/expand"
	"github.com/hsh-shell/hsh/interp"
	"github.com/hsh-shell/hsh/syntax"
)

const version = "0.1.0"

var (
	command     = pflag.StringP("command", "c", "", "run the given command and exit")
	verbose     = pflag.BoolP("verbose", "v", false, "echo each command before running it")
	showHelp    = pflag.BoolP("help", "h", false, "print this help and exit")
	showVersion = pflag.BoolP("version", "V", false, "print the version and exit")
)

func main() {
	os.Exit(main1())
}

func main1() int {
	pflag.Usage = func() { usage(os.Stderr) }
	pflag.Parse()
	if *showHelp {
		usage(os.Stdout)
		return 0
	}
	if *showVersion {
		fmt.Printf("hsh %s\n", version)
		return 0
	}
	err := runAll()
	var es interp.ExitStatus
	if errors.As(err, &es) {
		return int(es)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: hsh [-v|--verbose] [-h|--help] [-V|--version] [-c command] [file [args...]]\n")
	fmt.Fprint(w, pflag.CommandLine.FlagUsages())
}

func runAll() error {
	r, err := interp.New(
		interp.Env(startupEnviron()),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
	)
	if err != nil {
		return err
	}
	if *verbose {
		if err := interp.Params("-v")(r); err != nil {
			return err
		}
	}
	args := pflag.Args()

	if *command != "" {
		if len(args) > 0 {
			if err := interp.Params(append([]string{"--"}, args...)...)(r); err != nil {
				return err
			}
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return run(ctx, r, *command, "")
	}
	if len(args) == 0 {
		if interactiveTerminal(os.Stdin) {
			return runInteractive(r, os.Stdin, os.Stdout, os.Stderr)
		}
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return run(ctx, r, string(src), "")
	}
	// a script file; the remaining arguments become its parameters
	path := args[0]
	if len(args) > 1 {
		if err := interp.Params(append([]string{"--"}, args[1:]...)...)(r); err != nil {
			return err
		}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return run(ctx, r, string(src), path)
}

// startupEnviron snapshots the process environment with SHELL pointing
// at this executable, discovered through /proc/self/exe with a
// fallback to the name the shell was started with.
func startupEnviron() expand.Environ {
	pairs := os.Environ()
	pairs = append(pairs, "SHELL="+shellExecutable())
	return expand.ListEnviron(pairs...)
}

func shellExecutable() string {
	if path, err := os.Readlink("/proc/self/exe"); err == nil {
		return path
	}
	if path, err := filepath.Abs(os.Args[0]); err == nil {
		return path
	}
	return os.Args[0]
}

func interactiveTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func run(ctx context.Context, r *interp.Runner, src, name string) error {
	file, err := syntax.Parse([]byte(src), name)
	if err != nil {
		return err
	}
	return r.Run(ctx, file)
}

// runInteractive is the line-reader loop: it prompts, accumulates
// lines until they parse as a complete program, runs them, and reports
// finished background jobs before the next prompt.
func runInteractive(r *interp.Runner, stdin io.Reader, stdout, stderr io.Writer) error {
	fmt.Fprintf(stdout, "$ ")
	scanner := bufio.NewScanner(stdin)
	var pending strings.Builder
	for scanner.Scan() {
		pending.WriteString(scanner.Text())
		pending.WriteString("\n")
		file, err := syntax.Parse([]byte(pending.String()), "")
		if err != nil {
			if incomplete(err) {
				fmt.Fprintf(stdout, "> ")
				continue
			}
			fmt.Fprintln(stderr, err)
			r.SetStatus(1)
			pending.Reset()
			fmt.Fprintf(stdout, "$ ")
			continue
		}
		pending.Reset()

		// SIGINT is forwarded to the foreground process group via
		// the context; the shell itself survives and re-prompts.
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		err = r.Run(ctx, file)
		cancel()
		if r.Exited() {
			return err
		}
		for _, job := range r.ReapJobs() {
			state, _ := job.State()
			fmt.Fprintf(stdout, "[%d]  %s %s\n", job.ID, state, job.Command)
		}
		fmt.Fprintf(stdout, "$ ")
	}
	return scanner.Err()
}

// incomplete reports whether a parse failure looks like the start of a
// longer program, such as an unterminated quote or an if without its
// fi yet, so the loop can keep reading instead of reporting it.
func incomplete(err error) bool {
	s := err.Error()
	return strings.Contains(s, "found EOF") || strings.Contains(s, "unterminated")
}
