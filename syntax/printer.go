// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"io"
	"strconv"
	"strings"
)

// Printer renders an AST node back to shell source text. It is used
// to echo commands for xtrace (-v) output, not to reformat scripts.
type Printer struct{}

// NewPrinter returns a ready to use Printer.
func NewPrinter() *Printer { return &Printer{} }

// Print writes a source-like rendering of node to w.
func (pr *Printer) Print(w io.Writer, node Node) error {
	var sb strings.Builder
	writeNode(&sb, node)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeNode(sb *strings.Builder, node Node) {
	switch x := node.(type) {
	case *File:
		if x.Stmts != nil {
			writeNode(sb, x.Stmts)
		}
	case *Word:
		sb.WriteString(x.Text)
	case *Redirection:
		if x.Fd != nil {
			sb.WriteString(strconv.Itoa(*x.Fd))
		}
		sb.WriteString(redirOpText(x.Kind))
		sb.WriteByte(' ')
		sb.WriteString(x.Target.Text)
	case *Assignment:
		sb.WriteString(x.Name.Text)
		sb.WriteByte('=')
		sb.WriteString(x.Value.Text)
	case *SimpleCommand:
		var parts []string
		for _, a := range x.Assigns {
			parts = append(parts, a.Name.Text+"="+a.Value.Text)
		}
		for _, w := range x.Words {
			parts = append(parts, w.Text)
		}
		for _, r := range x.Redirs {
			var b strings.Builder
			writeNode(&b, r)
			parts = append(parts, b.String())
		}
		sb.WriteString(strings.Join(parts, " "))
	case *Pipeline:
		if x.Negated {
			sb.WriteString("! ")
		}
		var parts []string
		for _, c := range x.Commands {
			var b strings.Builder
			writeNode(&b, c)
			parts = append(parts, b.String())
		}
		sb.WriteString(strings.Join(parts, " | "))
		if x.Background {
			sb.WriteString(" &")
		}
	case *LogicalExpression:
		writeNode(sb, x.Left)
		if x.Op == LogAnd {
			sb.WriteString(" && ")
		} else {
			sb.WriteString(" || ")
		}
		writeNode(sb, x.Right)
	case *CompoundStatement:
		for i, s := range x.Statements {
			if i > 0 {
				sb.WriteString("; ")
			}
			writeNode(sb, s)
		}
	case *ConditionalStatement:
		sb.WriteString("if ")
		writeNode(sb, x.Cond)
		sb.WriteString("; then ")
		writeNode(sb, x.Then)
		for _, e := range x.Elifs {
			sb.WriteString("; elif ")
			writeNode(sb, e.Cond)
			sb.WriteString("; then ")
			writeNode(sb, e.Body)
		}
		if x.Else != nil {
			sb.WriteString("; else ")
			writeNode(sb, x.Else)
		}
		sb.WriteString("; fi")
	case *LoopStatement:
		switch x.Kind {
		case LoopWhile:
			sb.WriteString("while ")
			writeNode(sb, x.Cond)
		case LoopUntil:
			sb.WriteString("until ")
			writeNode(sb, x.Cond)
		case LoopFor:
			sb.WriteString("for ")
			sb.WriteString(x.Variable.Text)
			if x.HasIn {
				sb.WriteString(" in")
				for _, it := range x.Items {
					sb.WriteByte(' ')
					sb.WriteString(it.Text)
				}
			}
		}
		sb.WriteString("; do ")
		writeNode(sb, x.Body)
		sb.WriteString("; done")
	case *CaseStatement:
		sb.WriteString("case ")
		sb.WriteString(x.Expr.Text)
		sb.WriteString(" in ")
		for _, c := range x.Clauses {
			var pats []string
			for _, p := range c.Patterns {
				pats = append(pats, p.Text)
			}
			sb.WriteString(strings.Join(pats, "|"))
			sb.WriteString(") ")
			writeNode(sb, c.Body)
			sb.WriteString(" ;; ")
		}
		sb.WriteString("esac")
	case *Group:
		if x.IsSubshell {
			sb.WriteString("(")
			writeNode(sb, x.Body)
			sb.WriteString(")")
		} else {
			sb.WriteString("{ ")
			writeNode(sb, x.Body)
			sb.WriteString("; }")
		}
	case *FuncDecl:
		sb.WriteString(x.Name.Text)
		sb.WriteString("() ")
		writeNode(sb, x.Body)
	}
}

func redirOpText(k RedirKind) string {
	switch k {
	case RedirInput:
		return "<"
	case RedirOutput:
		return ">"
	case RedirAppend:
		return ">>"
	case RedirInputFd:
		return "<&"
	case RedirOutputFd:
		return ">&"
	case RedirInputOutput:
		return "<>"
	case RedirHereDoc:
		return "<<"
	case RedirHereDocDash:
		return "<<-"
	}
	return "?"
}

// Quote renders s as a single-quoted shell word, escaping any embedded
// single quotes in POSIX style: ' -> '\''.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
