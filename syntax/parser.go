// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is returned when the token stream does not match the
// grammar. The parser does not attempt to resynchronize; parsing stops
// at the first error and the caller discards the line.
type ParseError struct {
	Pos     Pos
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at token %d: %s", e.Pos, e.Message)
}

// Parse builds a *File from src, a recursive-descent parse over the
// token stream produced by a Lexer.
func Parse(src []byte, name string) (*File, error) {
	p := &parser{lex: NewLexer(src)}
	p.next()
	stmts := p.compoundUntil()
	f := &File{Name: name, Stmts: stmts}
	if p.err != nil {
		return f, p.err
	}
	return f, nil
}

type parser struct {
	lex *Lexer
	tok LexToken
	err *ParseError
}

func (p *parser) next() {
	p.tok = p.lex.Next()
	if p.tok.Kind == ERROR {
		p.fail(p.tok.Pos, p.tok.Text)
	}
}

func (p *parser) fail(pos Pos, msg string) {
	if p.err == nil {
		p.err = &ParseError{Pos: pos, Message: msg}
	}
}

func (p *parser) failExpected(what string) {
	p.fail(p.tok.Pos, fmt.Sprintf("expected %s, found %s", what, p.tok.Kind))
}

func (p *parser) isStop(stops []Token) bool {
	for _, s := range stops {
		if p.tok.Kind == s {
			return true
		}
	}
	return false
}

func (p *parser) skipNewlines() {
	for p.tok.Kind == NEWLINE {
		p.next()
	}
}

func (p *parser) skipSemisAndNewlines() {
	for p.tok.Kind == NEWLINE || p.tok.Kind == SEMICOLON {
		p.next()
	}
}

func wordLike(k Token) bool { return k.IsWordToken() }

func isRedirOp(k Token) bool {
	switch k {
	case LESS, GREAT, DGREAT, DLESS, DLESSDASH, LESSAND, GREATAND, LESSGREAT, GREATPIPE:
		return true
	}
	return false
}

func redirKindFor(k Token) (RedirKind, bool) {
	switch k {
	case LESS:
		return RedirInput, true
	case GREAT:
		return RedirOutput, true
	case DGREAT:
		return RedirAppend, true
	case LESSAND:
		return RedirInputFd, true
	case GREATAND:
		return RedirOutputFd, true
	case LESSGREAT:
		return RedirInputOutput, true
	case DLESS:
		return RedirHereDoc, true
	case DLESSDASH:
		return RedirHereDocDash, true
	case GREATPIPE:
		return RedirOutput, true
	}
	return 0, false
}

func (p *parser) wordFromTok() *Word {
	return &Word{
		Position:      p.tok.Pos,
		Text:          p.tok.Text,
		TokenKind:     p.tok.Kind,
		LeadingQuoted: p.tok.LeadingQuoted,
	}
}

// compoundUntil parses and-or statements separated by ';', newline or
// a trailing '&' until it reaches EOF or one of stops.
func (p *parser) compoundUntil(stops ...Token) *CompoundStatement {
	pos := p.tok.Pos
	cs := &CompoundStatement{Position: pos}
	for {
		p.skipSemisAndNewlines()
		if p.err != nil || p.tok.Kind == EOF || p.isStop(stops) {
			break
		}
		n := p.andOr()
		if p.err != nil {
			break
		}
		cs.Statements = append(cs.Statements, n)
		last := n
		for le, ok := last.(*LogicalExpression); ok; le, ok = last.(*LogicalExpression) {
			last = le.Right
		}
		if pl, ok := last.(*Pipeline); ok && pl.Background {
			// the trailing '&' already separated this statement
			continue
		}
		if p.tok.Kind != NEWLINE && p.tok.Kind != SEMICOLON && p.tok.Kind != EOF && !p.isStop(stops) {
			p.failExpected("';', newline or end")
			break
		}
	}
	return cs
}

// setBackground marks the right-most pipeline of a chain such as
// "a && b &" as background;
// this is the pragmatic reading of "[ & ]" applying to an entire
// and-or chain when the chain is more than a single pipeline.
func setBackground(n Node) {
	switch x := n.(type) {
	case *Pipeline:
		x.Background = true
	case *LogicalExpression:
		setBackground(x.Right)
	}
}

func (p *parser) andOr() Node {
	var left Node = p.pipelineNode()
	if p.err != nil {
		return left
	}
	for p.tok.Kind == ANDAND || p.tok.Kind == OROR {
		op := LogAnd
		if p.tok.Kind == OROR {
			op = LogOr
		}
		pos := p.tok.Pos
		p.next()
		p.skipNewlines()
		right := p.pipelineNode()
		if p.err != nil {
			return left
		}
		left = &LogicalExpression{Position: pos, Left: left, Op: op, Right: right}
	}
	if p.tok.Kind == AMP {
		setBackground(left)
		p.next()
	}
	return left
}

func (p *parser) pipelineNode() *Pipeline {
	pos := p.tok.Pos
	negated := false
	if p.tok.Kind == BANG {
		negated = true
		p.next()
	}
	pl := &Pipeline{Position: pos, Negated: negated}
	for {
		cmd := p.command()
		if p.err != nil {
			return pl
		}
		if cmd != nil {
			pl.Commands = append(pl.Commands, cmd)
		}
		if p.tok.Kind == PIPE {
			p.next()
			p.skipNewlines()
			continue
		}
		break
	}
	return pl
}

func (p *parser) command() Command {
	switch p.tok.Kind {
	case LPAREN:
		return p.groupOrSubshell(true)
	case LBRACE:
		return p.groupOrSubshell(false)
	case IF:
		return p.ifClause()
	case WHILE:
		return p.loopClause(LoopWhile)
	case UNTIL:
		return p.loopClause(LoopUntil)
	case FOR:
		return p.forClause()
	case CASE:
		return p.caseClause()
	case FUNCTION:
		return p.funcDeclKeyword()
	case WORD:
		if p.looksLikeFuncDecl() {
			return p.funcDeclParens()
		}
	}
	return p.simpleCommand()
}

// looksLikeFuncDecl peeks, without consuming, whether the current WORD
// is immediately followed by "()" (a POSIX-style function definition).
// It operates on a value-copy of the lexer so no input is consumed.
func (p *parser) looksLikeFuncDecl() bool {
	if p.tok.Kind != WORD {
		return false
	}
	la := *p.lex
	t1 := la.Next()
	if t1.Kind != LPAREN {
		return false
	}
	t2 := la.Next()
	return t2.Kind == RPAREN
}

func (p *parser) funcDeclParens() Command {
	pos := p.tok.Pos
	name := p.wordFromTok()
	p.next() // name
	p.next() // (
	p.next() // )
	p.skipNewlines()
	body := p.command()
	if p.err != nil {
		return nil
	}
	return &FuncDecl{Position: pos, Name: name, Body: body}
}

func (p *parser) funcDeclKeyword() Command {
	pos := p.tok.Pos
	p.next() // "function"
	if p.tok.Kind != WORD {
		p.fail(p.tok.Pos, "expected name after function")
		return nil
	}
	name := p.wordFromTok()
	p.next()
	if p.tok.Kind == LPAREN {
		p.next()
		if p.tok.Kind != RPAREN {
			p.failExpected(")")
			return nil
		}
		p.next()
	}
	p.skipNewlines()
	body := p.command()
	if p.err != nil {
		return nil
	}
	return &FuncDecl{Position: pos, Name: name, Body: body}
}

func (p *parser) groupOrSubshell(isSubshell bool) Command {
	pos := p.tok.Pos
	closeTok := RBRACE
	if isSubshell {
		closeTok = RPAREN
	}
	p.next() // consume '(' or '{'
	body := p.compoundUntil(closeTok)
	if p.err != nil {
		return nil
	}
	if p.tok.Kind != closeTok {
		p.failExpected(closeTok.String())
		return nil
	}
	p.next()
	return &Group{Position: pos, Body: body, IsSubshell: isSubshell, Redirs: p.redirections()}
}

func (p *parser) ifClause() Command {
	pos := p.tok.Pos
	p.next() // if
	cond := p.compoundUntil(THEN)
	if p.err != nil {
		return nil
	}
	if p.tok.Kind != THEN {
		p.failExpected("then")
		return nil
	}
	p.next()
	then := p.compoundUntil(ELIF, ELSE, FI)
	if p.err != nil {
		return nil
	}
	cs := &ConditionalStatement{Position: pos, Cond: cond, Then: then}
	for p.tok.Kind == ELIF {
		p.next()
		econd := p.compoundUntil(THEN)
		if p.err != nil {
			return nil
		}
		if p.tok.Kind != THEN {
			p.failExpected("then")
			return nil
		}
		p.next()
		ebody := p.compoundUntil(ELIF, ELSE, FI)
		if p.err != nil {
			return nil
		}
		cs.Elifs = append(cs.Elifs, ElifClause{Cond: econd, Body: ebody})
	}
	if p.tok.Kind == ELSE {
		p.next()
		cs.Else = p.compoundUntil(FI)
		if p.err != nil {
			return nil
		}
	}
	if p.tok.Kind != FI {
		p.failExpected("fi")
		return nil
	}
	p.next()
	cs.Redirs = p.redirections()
	return cs
}

func (p *parser) loopClause(kind LoopKind) Command {
	pos := p.tok.Pos
	p.next() // while/until
	cond := p.compoundUntil(DO)
	if p.err != nil {
		return nil
	}
	if p.tok.Kind != DO {
		p.failExpected("do")
		return nil
	}
	p.next()
	body := p.compoundUntil(DONE)
	if p.err != nil {
		return nil
	}
	if p.tok.Kind != DONE {
		p.failExpected("done")
		return nil
	}
	p.next()
	return &LoopStatement{Position: pos, Kind: kind, Cond: cond, Body: body, Redirs: p.redirections()}
}

func (p *parser) forClause() Command {
	pos := p.tok.Pos
	p.next() // for
	if p.tok.Kind != WORD {
		p.fail(p.tok.Pos, "expected name after for")
		return nil
	}
	ls := &LoopStatement{Position: pos, Kind: LoopFor, Variable: p.wordFromTok()}
	p.next()
	p.skipSemisAndNewlines()
	if p.tok.Kind == IN {
		ls.HasIn = true
		p.next()
		for wordLike(p.tok.Kind) {
			ls.Items = append(ls.Items, p.wordFromTok())
			p.next()
		}
	}
	p.skipSemisAndNewlines()
	if p.tok.Kind != DO {
		p.failExpected("do")
		return nil
	}
	p.next()
	ls.Body = p.compoundUntil(DONE)
	if p.err != nil {
		return nil
	}
	if p.tok.Kind != DONE {
		p.failExpected("done")
		return nil
	}
	p.next()
	ls.Redirs = p.redirections()
	return ls
}

func (p *parser) caseClause() Command {
	pos := p.tok.Pos
	p.next() // case
	if !wordLike(p.tok.Kind) {
		p.fail(p.tok.Pos, "expected word after case")
		return nil
	}
	expr := p.wordFromTok()
	p.next()
	p.skipNewlines()
	if p.tok.Kind != IN {
		p.failExpected("in")
		return nil
	}
	p.next()
	p.skipNewlines()
	cs := &CaseStatement{Position: pos, Expr: expr}
	for p.tok.Kind != ESAC && p.tok.Kind != EOF {
		if p.tok.Kind == LPAREN {
			p.next()
		}
		var patterns []*Word
		for {
			if !wordLike(p.tok.Kind) {
				p.fail(p.tok.Pos, "expected case pattern")
				return nil
			}
			patterns = append(patterns, p.wordFromTok())
			p.next()
			if p.tok.Kind == PIPE {
				p.next()
				continue
			}
			break
		}
		if len(patterns) == 0 {
			p.fail(p.tok.Pos, "empty pattern list")
			return nil
		}
		if p.tok.Kind != RPAREN {
			p.failExpected(")")
			return nil
		}
		p.next()
		p.skipNewlines()
		body := p.compoundUntil(DSEMI, ESAC)
		if p.err != nil {
			return nil
		}
		cs.Clauses = append(cs.Clauses, CaseClause{Patterns: patterns, Body: body})
		if p.tok.Kind == DSEMI {
			p.next()
			p.skipNewlines()
		} else {
			break
		}
	}
	if p.tok.Kind != ESAC {
		p.failExpected("esac")
		return nil
	}
	p.next()
	cs.Redirs = p.redirections()
	return cs
}

func (p *parser) isRedirStart() bool {
	if isRedirOp(p.tok.Kind) {
		return true
	}
	if p.tok.Kind == NUMBER {
		next := p.lex.Peek()
		if isRedirOp(next.Kind) && next.Pos == p.tok.Pos+Pos(len(p.tok.Text)) {
			return true
		}
	}
	return false
}

func (p *parser) redirection() *Redirection {
	pos := p.tok.Pos
	var fd *int
	if p.tok.Kind == NUMBER {
		n, err := strconv.Atoi(p.tok.Text)
		if err != nil {
			p.fail(p.tok.Pos, "invalid file descriptor")
			return nil
		}
		fd = &n
		p.next()
	}
	kind, ok := redirKindFor(p.tok.Kind)
	if !ok {
		p.failExpected("redirection operator")
		return nil
	}
	p.next()
	if !wordLike(p.tok.Kind) {
		p.failExpected("redirection target")
		return nil
	}
	target := p.wordFromTok()
	p.next()
	return &Redirection{Position: pos, Kind: kind, Fd: fd, Target: target}
}

func (p *parser) redirections() []*Redirection {
	var out []*Redirection
	for p.isRedirStart() {
		r := p.redirection()
		if r == nil {
			break
		}
		out = append(out, r)
	}
	return out
}

func (p *parser) assignment() *Assignment {
	pos := p.tok.Pos
	text := p.tok.Text
	eq := strings.IndexByte(text, '=')
	name := &Word{Position: pos, Text: text[:eq], TokenKind: WORD}
	value := &Word{Position: pos + Pos(eq+1), Text: text[eq+1:], TokenKind: WORD, LeadingQuoted: p.tok.LeadingQuoted}
	p.next()
	return &Assignment{Position: pos, Name: name, Value: value}
}

func (p *parser) simpleCommand() Command {
	pos := p.tok.Pos
	sc := &SimpleCommand{Position: pos}
	sawWord := false
	for {
		switch {
		case p.tok.Kind == ASSIGNMENT && !sawWord:
			sc.Assigns = append(sc.Assigns, p.assignment())
		case p.isRedirStart():
			r := p.redirection()
			if r == nil {
				return sc
			}
			sc.Redirs = append(sc.Redirs, r)
		case wordLike(p.tok.Kind):
			sc.Words = append(sc.Words, p.wordFromTok())
			sawWord = true
			p.next()
		default:
			if len(sc.Assigns) == 0 && len(sc.Words) == 0 && len(sc.Redirs) == 0 {
				p.failExpected("command")
				return nil
			}
			return sc
		}
		if p.err != nil {
			return sc
		}
	}
}
