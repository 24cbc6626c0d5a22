// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

// LexToken is a single lexical token produced by the Lexer.
//
// LeadingQuoted records whether the first character that went into Text
// originated inside quotes or behind a backslash escape; it survives
// unchanged into the Word node the Parser builds from this token, since
// the Expander uses it to skip tilde and arithmetic expansion.
type LexToken struct {
	Kind          Token
	Text          string
	Pos           Pos
	LeadingQuoted bool
}

func (t LexToken) String() string { return t.Kind.String() }
