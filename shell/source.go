// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package shell

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hsh-shell/hsh/expand"
	"github.com/hsh-shell/hsh/interp"
	"github.com/hsh-shell/hsh/syntax"
)

// SourceFile sources a shell file from disk and returns the variables
// declared in it. It is a convenience function joining
// [syntax.Parse], [interp.New], and [SourceNode].
//
// A default parser is used; to set custom options, use SourceNode
// instead.
func SourceFile(ctx context.Context, path string) (map[string]expand.Variable, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read: %w", err)
	}
	file, err := syntax.Parse(src, path)
	if err != nil {
		return nil, fmt.Errorf("could not parse: %w", err)
	}
	return SourceNode(ctx, file)
}

// SourceNode sources a shell program from a node and returns the
// variables declared in it. It accepts the same nodes that
// [interp.Runner.Run] does.
//
// Any side effects or modifications to the system are forbidden when
// interpreting the program: executing programs, opening files for
// writing, and so on.
func SourceNode(ctx context.Context, node syntax.Node) (map[string]expand.Variable, error) {
	r, err := interp.New(
		interp.ExecHandler(func(ctx context.Context, args []string) error {
			return fmt.Errorf("cannot execute program while sourcing: %s", args[0])
		}),
		interp.OpenHandler(func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
			return nil, fmt.Errorf("cannot open file while sourcing: %s", path)
		}),
	)
	if err != nil {
		return nil, err
	}
	if err := r.Run(ctx, node); err != nil {
		return nil, fmt.Errorf("could not run: %w", err)
	}
	return r.Vars(), nil
}
