// Copyright (c) 2022, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"strings"

	"github.com/hsh-shell/hsh/syntax"
)

// trace echoes the command about to run to stderr when the verbose
// option is on, the way a shell's -v flag does.
func (r *Runner) trace(node syntax.Node) {
	if !r.opts[optVerbose] {
		return
	}
	var sb strings.Builder
	syntax.NewPrinter().Print(&sb, node)
	r.errf("+ %s\n", sb.String())
}
