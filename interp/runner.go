// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/hsh-shell/hsh/expand"
	"github.com/hsh-shell/hsh/pattern"
	"github.com/hsh-shell/hsh/syntax"
)

// maxAliasDepth bounds how many times the first word of a command can
// be replaced by an alias value, to break substitution cycles.
const maxAliasDepth = 16

// maxFuncDepth bounds shell function recursion.
const maxFuncDepth = 16

func (r *Runner) out(s string) {
	io.WriteString(r.stdout, s)
}

func (r *Runner) outf(format string, a ...any) {
	if r.stdout != nil {
		fmt.Fprintf(r.stdout, format, a...)
	}
}

func (r *Runner) errf(format string, a ...any) {
	if r.stderr != nil {
		fmt.Fprintf(r.stderr, format, a...)
	}
}

func (r *Runner) fillExpandConfig(ctx context.Context) {
	r.ectx = ctx
	r.ecfg = &expand.Config{
		Env: expandEnv{r},
		CmdSubst: func(w io.Writer, src string) error {
			// a command substitution re-enters the parser and
			// runs in a subshell that captures stdout
			file, err := syntax.Parse([]byte(src), "")
			if err != nil {
				return err
			}
			r2 := r.Subshell()
			r2.stdout = w
			r2.stmts(ctx, file.Stmts)
			return nil
		},
		ReadDir: func(path string) ([]fs.DirEntry, error) {
			return r.readDirHandler(ctx, path)
		},
		Dir: r.Dir,
	}
}

// stop reports whether the interpreter should stop running further
// commands, either because the context was cancelled or because an
// exit was requested.
func (r *Runner) stop(ctx context.Context) bool {
	if r.exit.exiting {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	return false
}

func (r *Runner) stmts(ctx context.Context, cs *syntax.CompoundStatement) {
	if cs == nil {
		return
	}
	for _, stmt := range cs.Statements {
		if r.stop(ctx) {
			return
		}
		r.stmt(ctx, stmt)
	}
}

func (r *Runner) stmt(ctx context.Context, node syntax.Node) {
	switch x := node.(type) {
	case *syntax.Pipeline:
		r.pipeline(ctx, x)
	case *syntax.LogicalExpression:
		r.logical(ctx, x)
	case syntax.Command:
		r.cmd(ctx, x)
	default:
		r.errf("unhandled statement node: %T\n", node)
		r.exit.code = 1
	}
	r.lastExit = r.exit
}

// logical runs one side of a && or || chain, and the other side only
// when the first one's status calls for it.
func (r *Runner) logical(ctx context.Context, le *syntax.LogicalExpression) {
	r.stmt(ctx, le.Left)
	if r.stop(ctx) {
		return
	}
	if (le.Op == syntax.LogAnd) == r.exit.ok() {
		r.stmt(ctx, le.Right)
	}
}

func (r *Runner) pipeline(ctx context.Context, pl *syntax.Pipeline) {
	r.trace(pl)
	if pl.Background {
		r.bgPipeline(ctx, pl)
		return
	}
	code := r.runPipeline(ctx, pl.Commands, nil)
	if pl.Negated {
		if code == 0 {
			code = 1
		} else {
			code = 0
		}
	}
	r.exit.code = code
}

// bgPipeline spawns the pipeline without awaiting it, registering a
// job whose primary process is the pipeline's last external command.
// The shell's status is immediately zero.
func (r *Runner) bgPipeline(ctx context.Context, pl *syntax.Pipeline) {
	job := r.jobs.add(pipelineText(pl))
	r2 := r.Subshell()
	r.bgShells.Go(func() error {
		job.finish(r2.runPipeline(ctx, pl.Commands, job))
		return nil
	})
	r.exit = exitStatus{}
}

func pipelineText(pl *syntax.Pipeline) string {
	var sb strings.Builder
	syntax.NewPrinter().Print(&sb, pl)
	return strings.TrimSuffix(sb.String(), " &")
}

// pipeStage is one command of a multi-command pipeline, run on its own
// subshell runner so that the stages execute concurrently.
type pipeStage struct {
	r2   *Runner
	cmd  syntax.Command
	done chan struct{}

	// pipe ends owned by this stage, closed once it finishes so the
	// neighboring stages observe EOF
	stdin  *os.File
	stdout *os.File
}

// runPipeline executes the commands of one pipeline and returns its
// overall status: the last command's, or with pipefail enabled, the
// rightmost non-zero one. Stages are awaited left to right.
func (r *Runner) runPipeline(ctx context.Context, cmds []syntax.Command, job *Job) uint8 {
	if len(cmds) == 1 {
		r.job = job
		r.cmd(ctx, cmds[0])
		r.job = nil
		return r.exit.code
	}
	stages := make([]*pipeStage, 0, len(cmds))
	var prevRead *os.File
	for i, cmd := range cmds {
		last := i == len(cmds)-1
		var pr, pw *os.File
		if !last {
			var err error
			pr, pw, err = os.Pipe()
			if err != nil {
				r.errf("pipe: %v\n", err)
				if prevRead != nil {
					prevRead.Close()
				}
				for _, st := range stages {
					st.stdin.Close()
					st.stdout.Close()
				}
				return 1
			}
		}
		r2 := r.Subshell()
		r2.inPipe = true
		if prevRead != nil {
			r2.stdin = prevRead
		}
		if !last {
			r2.stdout = pw
		}
		if last {
			// the job's primary pid comes from the last stage
			r2.job = job
		}
		stages = append(stages, &pipeStage{
			r2:     r2,
			cmd:    cmd,
			done:   make(chan struct{}),
			stdin:  prevRead,
			stdout: pw,
		})
		prevRead = pr
	}
	for _, st := range stages {
		st := st
		go func() {
			st.r2.cmd(ctx, st.cmd)
			if st.stdin != nil {
				st.stdin.Close()
			}
			if st.stdout != nil {
				st.stdout.Close()
			}
			close(st.done)
		}()
	}
	statuses := make([]uint8, len(stages))
	for i, st := range stages {
		<-st.done
		statuses[i] = st.r2.exit.code
	}
	code := statuses[len(statuses)-1]
	if r.opts[optPipeFail] {
		code = 0
		for _, st := range statuses {
			if st != 0 {
				code = st
			}
		}
	}
	return code
}

func (r *Runner) cmd(ctx context.Context, cm syntax.Command) {
	if r.stop(ctx) {
		return
	}
	switch x := cm.(type) {
	case *syntax.SimpleCommand:
		r.simpleCmd(ctx, x)
	case *syntax.ConditionalStatement:
		r.withRedirs(ctx, x.Redirs, func() { r.ifClause(ctx, x) })
	case *syntax.LoopStatement:
		r.withRedirs(ctx, x.Redirs, func() { r.loop(ctx, x) })
	case *syntax.CaseStatement:
		r.withRedirs(ctx, x.Redirs, func() { r.caseClause(ctx, x) })
	case *syntax.Group:
		r.withRedirs(ctx, x.Redirs, func() { r.group(ctx, x) })
	case *syntax.FuncDecl:
		if r.Funcs == nil {
			r.Funcs = make(map[string]syntax.Command)
		}
		r.Funcs[x.Name.Text] = x.Body
		r.exit = exitStatus{}
	default:
		r.errf("unhandled command node: %T\n", cm)
		r.exit.code = 1
	}
}

func (r *Runner) ifClause(ctx context.Context, x *syntax.ConditionalStatement) {
	r.stmts(ctx, x.Cond)
	if r.exit.ok() {
		r.exit = exitStatus{}
		r.stmts(ctx, x.Then)
		return
	}
	for _, e := range x.Elifs {
		r.stmts(ctx, e.Cond)
		if r.exit.ok() {
			r.exit = exitStatus{}
			r.stmts(ctx, e.Body)
			return
		}
	}
	if x.Else != nil {
		r.exit = exitStatus{}
		r.stmts(ctx, x.Else)
		return
	}
	// no branch ran
	r.exit = exitStatus{}
}

func (r *Runner) loop(ctx context.Context, x *syntax.LoopStatement) {
	if x.Kind == syntax.LoopFor {
		r.forLoop(ctx, x)
		return
	}
	code := uint8(0)
	for !r.stop(ctx) {
		r.stmts(ctx, x.Cond)
		cont := r.exit.ok()
		if x.Kind == syntax.LoopUntil {
			cont = !cont
		}
		if !cont {
			break
		}
		r.stmts(ctx, x.Body)
		code = r.exit.code
	}
	r.exit.code = code
}

// forLoop binds the loop variable for each post-expansion item; the
// variable's prior value is put back once the loop is done. Without an
// "in" clause, the positional parameters are iterated.
func (r *Runner) forLoop(ctx context.Context, x *syntax.LoopStatement) {
	var items []string
	if x.HasIn {
		var err error
		items, err = expand.Fields(r.ecfg, x.Items...)
		if err != nil {
			r.expandErr(err)
			return
		}
	} else {
		items = r.Params
	}
	name := x.Variable.Text
	prev := r.writeEnv.Get(name)
	code := uint8(0)
	for _, item := range items {
		if r.stop(ctx) {
			break
		}
		r.setVarString(name, item)
		r.stmts(ctx, x.Body)
		code = r.exit.code
	}
	r.setVar(name, prev)
	r.exit.code = code
}

// caseClause matches the expanded subject against each clause's
// patterns with the glob rules, running the first matching body.
func (r *Runner) caseClause(ctx context.Context, x *syntax.CaseStatement) {
	subject, err := expand.Literal(r.ecfg, x.Expr)
	if err != nil {
		r.expandErr(err)
		return
	}
	for _, cl := range x.Clauses {
		for _, p := range cl.Patterns {
			pat, err := expand.Pattern(r.ecfg, p)
			if err != nil {
				r.expandErr(err)
				return
			}
			if pattern.Match(pat, subject) {
				r.exit = exitStatus{}
				r.stmts(ctx, cl.Body)
				return
			}
		}
	}
	r.exit = exitStatus{}
}

// group runs a braced group in the current shell, or a (...) subshell
// on an isolated copy of it whose status the parent adopts.
func (r *Runner) group(ctx context.Context, x *syntax.Group) {
	if !x.IsSubshell {
		r.stmts(ctx, x.Body)
		return
	}
	r2 := r.Subshell()
	r2.stmts(ctx, x.Body)
	r.exit = exitStatus{code: r2.exit.code}
}

func (r *Runner) expandErr(err error) {
	r.errf("%v\n", err)
	r.exit = exitStatus{code: 1}
}

func (r *Runner) simpleCmd(ctx context.Context, sc *syntax.SimpleCommand) {
	// expand the assignment values first; they apply either to the
	// shell itself or to just this command
	type binding struct{ name, value string }
	bindings := make([]binding, 0, len(sc.Assigns))
	for _, as := range sc.Assigns {
		value, err := expand.Literal(r.ecfg, as.Value)
		if err != nil {
			r.expandErr(err)
			return
		}
		bindings = append(bindings, binding{as.Name.Text, value})
	}

	if len(sc.Words) == 0 {
		for _, b := range bindings {
			r.setVarString(b.name, b.value)
		}
		r.withRedirs(ctx, sc.Redirs, func() {
			r.exit = exitStatus{}
		})
		return
	}

	words := r.expandAliases(sc.Words)
	fields, err := expand.Fields(r.ecfg, words...)
	if err != nil {
		r.expandErr(err)
		return
	}
	if len(fields) == 0 {
		for _, b := range bindings {
			r.setVarString(b.name, b.value)
		}
		r.exit = exitStatus{}
		return
	}

	// make the bindings visible to the command, restoring the shell's
	// own values afterwards
	restore := make([]func(), 0, len(bindings))
	for _, b := range bindings {
		prev := r.writeEnv.Get(b.name)
		name := b.name
		restore = append(restore, func() { r.setVar(name, prev) })
		r.setVar(b.name, expand.Variable{Set: true, Exported: true, Str: b.value})
	}
	r.withRedirs(ctx, sc.Redirs, func() {
		r.call(ctx, fields)
	})
	for i := len(restore) - 1; i >= 0; i-- {
		restore[i]()
	}
}

// expandAliases substitutes the leading word through the alias table,
// re-tokenizing the alias value each time, up to a fixed depth. A
// quoted first word suppresses the lookup.
func (r *Runner) expandAliases(words []*syntax.Word) []*syntax.Word {
	for i := 0; i < maxAliasDepth; i++ {
		if len(words) == 0 {
			return words
		}
		first := words[0]
		if first.LeadingQuoted {
			return words
		}
		value, ok := r.alias[first.Text]
		if !ok {
			return words
		}
		sub := aliasWords(value)
		if len(sub) == 0 {
			// an empty expansion drops the word and retries on
			// the next one
			words = words[1:]
			continue
		}
		words = append(sub, words[1:]...)
	}
	return words
}

// aliasWords re-lexes an alias value into the words it substitutes;
// alias values are tokenized on use, not on definition.
func aliasWords(value string) []*syntax.Word {
	lex := syntax.NewLexer([]byte(value))
	var out []*syntax.Word
	for {
		tok := lex.Next()
		if !tok.Kind.IsWordToken() {
			return out
		}
		out = append(out, &syntax.Word{
			Position:      tok.Pos,
			Text:          tok.Text,
			TokenKind:     tok.Kind,
			LeadingQuoted: tok.LeadingQuoted,
		})
	}
}

// isPipelineRestricted reports the builtins that mutate or inspect shell
// state and therefore cannot run as a stage of a multi-command
// pipeline, where every stage executes on an isolated copy of the
// shell.
func isPipelineRestricted(name string) bool {
	switch name {
	case "cd", "export", "unset", "alias", "unalias", "set", "exit",
		"shift", "jobs", "fg", "bg", "wait":
		return true
	}
	return false
}

func (r *Runner) call(ctx context.Context, fields []string) {
	name := fields[0]
	if body, ok := r.Funcs[name]; ok {
		r.callFunc(ctx, body, fields)
		return
	}
	if IsBuiltin(name) {
		if r.inPipe && isPipelineRestricted(name) {
			r.errf("%s: cannot be used in a pipeline\n", name)
			r.exit = exitStatus{code: 1}
			return
		}
		r.exit.code = r.builtinCode(ctx, name, fields[1:])
		return
	}
	r.exec(ctx, fields)
}

func (r *Runner) callFunc(ctx context.Context, body syntax.Command, fields []string) {
	if r.funcDepth >= maxFuncDepth {
		r.errf("%s: maximum function call depth exceeded\n", fields[0])
		r.exit = exitStatus{code: 1}
		return
	}
	oldParams := r.Params
	r.Params = fields[1:]
	r.funcDepth++
	r.cmd(ctx, body)
	r.funcDepth--
	r.Params = oldParams
}

// exec runs an external program through the exec handler, which
// reports its exit status as an [ExitStatus] error.
func (r *Runner) exec(ctx context.Context, args []string) {
	hc := HandlerContext{
		Env:    expandEnv{r},
		Dir:    r.Dir,
		Stdin:  r.stdin,
		Stdout: r.stdout,
		Stderr: r.stderr,
	}
	if job := r.job; job != nil {
		hc.OnStart = func(pid int) { job.table.started(job, pid) }
	}
	err := r.execHandler(context.WithValue(ctx, handlerCtxKey{}, hc), args)
	var es ExitStatus
	switch {
	case err == nil:
		r.exit.code = 0
	case errors.As(err, &es):
		r.exit.code = uint8(es)
	default:
		r.errf("%v\n", err)
		r.exit.code = 1
	}
}

// withRedirs applies the redirections around fn, restoring the
// original standard streams afterwards on every path.
func (r *Runner) withRedirs(ctx context.Context, redirs []*syntax.Redirection, fn func()) {
	if len(redirs) == 0 {
		fn()
		return
	}
	savedIn, savedOut, savedErr := r.stdin, r.stdout, r.stderr
	opened, err := r.applyRedirs(ctx, redirs)
	defer func() {
		for _, f := range opened {
			f.Close()
		}
		r.stdin, r.stdout, r.stderr = savedIn, savedOut, savedErr
	}()
	if err != nil {
		r.errf("%v\n", err)
		r.exit = exitStatus{code: 1}
		return
	}
	fn()
}

// applyRedirs opens each redirection target and rewires the standard
// streams in order, so that a later redirection can refer to the
// result of an earlier one, as in >out 2>&1. The returned files are
// owned by the caller; duplicated descriptors are borrowed and must
// not be closed twice.
func (r *Runner) applyRedirs(ctx context.Context, redirs []*syntax.Redirection) ([]io.Closer, error) {
	var opened []io.Closer
	for _, rd := range redirs {
		target, err := expand.Literal(r.ecfg, rd.Target)
		if err != nil {
			return opened, err
		}
		fd := rd.DefaultFd()
		if rd.Fd != nil {
			fd = *rd.Fd
		}
		if fd > 2 {
			return opened, fmt.Errorf("unsupported file descriptor: %d", fd)
		}
		switch rd.Kind {
		case syntax.RedirHereDoc, syntax.RedirHereDocDash:
			// the operator is recognized but the body is not
			// ingested; the command reads an empty document
			r.stdin = strings.NewReader("")
			continue
		case syntax.RedirInputFd, syntax.RedirOutputFd:
			if target == "-" {
				switch fd {
				case 0:
					r.stdin = strings.NewReader("")
				case 1:
					r.stdout = io.Discard
				default:
					r.stderr = io.Discard
				}
				continue
			}
			src, err := strconv.Atoi(target)
			if err != nil || src > 2 {
				return opened, fmt.Errorf("%s: bad file descriptor", target)
			}
			// duplicating borrows the stream; nothing to close
			var dup any
			switch src {
			case 0:
				dup = r.stdin
			case 1:
				dup = r.stdout
			default:
				dup = r.stderr
			}
			switch fd {
			case 0:
				rdr, ok := dup.(io.Reader)
				if !ok {
					return opened, fmt.Errorf("%d: not open for reading", src)
				}
				r.stdin = rdr
			case 1:
				w, ok := dup.(io.Writer)
				if !ok {
					return opened, fmt.Errorf("%d: not open for writing", src)
				}
				r.stdout = w
			default:
				w, ok := dup.(io.Writer)
				if !ok {
					return opened, fmt.Errorf("%d: not open for writing", src)
				}
				r.stderr = w
			}
			continue
		}
		flag, mode := openFlags(rd.Kind)
		f, err := r.openHandler(ctx, absPath(r.Dir, target), flag, mode)
		if err != nil {
			return opened, fmt.Errorf("%s: %v", target, err)
		}
		opened = append(opened, f)
		switch fd {
		case 0:
			r.stdin = f
		case 1:
			r.stdout = f
		default:
			r.stderr = f
		}
	}
	return opened, nil
}

func openFlags(kind syntax.RedirKind) (int, os.FileMode) {
	switch kind {
	case syntax.RedirInput:
		return os.O_RDONLY, 0
	case syntax.RedirAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, 0o644
	case syntax.RedirInputOutput:
		return os.O_RDWR | os.O_CREATE, 0o644
	default: // RedirOutput
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, 0o644
	}
}
