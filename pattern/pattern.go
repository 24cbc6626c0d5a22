// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package pattern implements shell pattern matching notation, also
// known as wildcards or globbing: "*" matches any run of characters,
// "?" matches a single character, and "[set]" matches any of the
// enumerated characters or ranges, with "[!set]" negating the set.
//
// The same dialect serves both pathname expansion and case-statement
// pattern matching; the latter simply never touches the filesystem.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode supplies options to the functions below.
type Mode uint

const (
	// Filenames makes "*" and "?" stop at path separators, for use
	// when matching one path component at a time.
	Filenames Mode = 1 << iota

	// EntireString anchors the pattern so that it must match the
	// whole input, not just a substring of it.
	EntireString
)

// SyntaxError is returned when a pattern cannot be translated, such as
// an unterminated character class.
type SyntaxError struct {
	msg string
}

func (e SyntaxError) Error() string { return e.msg }

// HasMeta reports whether the pattern contains any unescaped matching
// metacharacters. Words without them skip pathname expansion entirely.
func HasMeta(pat string) bool {
	for i := 0; i < len(pat); i++ {
		switch pat[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// Regexp translates a shell pattern into a regular expression accepted
// by [regexp.Compile]. For example, Regexp(`foo*bar?`, 0) returns
// `(?s)foo.*bar.`.
func Regexp(pat string, mode Mode) (string, error) {
	var sb strings.Builder
	// globs match newlines too, so let "." do the same
	sb.WriteString("(?s)")
	if mode&EntireString != 0 {
		sb.WriteString("^")
	}
	any := "."
	if mode&Filenames != 0 {
		any = "[^/]"
	}
	for i := 0; i < len(pat); i++ {
		switch c := pat[i]; c {
		case '*':
			sb.WriteString(any)
			sb.WriteString("*")
		case '?':
			sb.WriteString(any)
		case '\\':
			if i++; i >= len(pat) {
				return "", SyntaxError{msg: `\ at end of pattern`}
			}
			sb.WriteString(regexp.QuoteMeta(pat[i : i+1]))
		case '[':
			n, err := writeClass(&sb, pat[i:])
			if err != nil {
				return "", err
			}
			i += n
		default:
			sb.WriteString(regexp.QuoteMeta(pat[i : i+1]))
		}
	}
	if mode&EntireString != 0 {
		sb.WriteString("$")
	}
	return sb.String(), nil
}

// writeClass translates a "[...]" character class starting at pat[0],
// returning how many bytes beyond the opening bracket were consumed.
func writeClass(sb *strings.Builder, pat string) (int, error) {
	// Find the closing bracket, allowing "]" as the very first set
	// member (after an optional negation) as in "[]ab]".
	start := 1
	if start < len(pat) && (pat[start] == '!' || pat[start] == '^') {
		start++
	}
	if start < len(pat) && pat[start] == ']' {
		start++
	}
	end := strings.IndexByte(pat[start:], ']')
	if end < 0 {
		return 0, SyntaxError{msg: fmt.Sprintf("[ was not matched with a closing ]: %q", pat)}
	}
	end += start
	set := pat[1:end]
	sb.WriteByte('[')
	if strings.HasPrefix(set, "!") || strings.HasPrefix(set, "^") {
		sb.WriteByte('^')
		set = set[1:]
	}
	for i := 0; i < len(set); i++ {
		c := set[i]
		switch {
		case c == '\\' && i+1 < len(set):
			i++
			writeClassByte(sb, set[i])
		case c == '-' && i > 0 && i < len(set)-1:
			// range separator, pass through as-is
			sb.WriteByte('-')
		default:
			writeClassByte(sb, c)
		}
	}
	sb.WriteByte(']')
	return end, nil
}

func writeClassByte(sb *strings.Builder, c byte) {
	switch c {
	case '^', ']', '\\', '[':
		sb.WriteByte('\\')
	}
	sb.WriteByte(c)
}

// Match reports whether name matches the entire shell pattern. A
// malformed pattern matches only its own literal text, per the same
// rule that makes pathname expansion leave such words alone.
func Match(pat, name string) bool {
	expr, err := Regexp(pat, EntireString)
	if err != nil {
		return pat == name
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return pat == name
	}
	return rx.MatchString(name)
}

// QuoteMeta returns a string that quotes all pattern metacharacters in
// the given text, so that they match their literal selves.
func QuoteMeta(pat string) string {
	needsEscaping := false
loop:
	for _, r := range pat {
		switch r {
		case '*', '?', '[', '\\':
			needsEscaping = true
			break loop
		}
	}
	if !needsEscaping { // short-cut without a string copy
		return pat
	}
	var sb strings.Builder
	for _, r := range pat {
		switch r {
		case '*', '?', '[', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
