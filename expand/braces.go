// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"strconv"
	"strings"
)

// braceExpand performs brace expansion on a single expanded field,
// returning the resulting list of fields. {a,b,c} alternation and
// {x..y} sequences are supported, nested braces expand recursively,
// and unmatched or quoted braces are left literal.
func braceExpand(f *field) []*field {
	for start := 0; start < len(f.text); start++ {
		if f.text[start] != '{' || f.quoted[start] {
			continue
		}
		end, commas := matchBrace(f, start)
		if end < 0 {
			continue
		}
		prefix := f.slice(0, start)
		suffix := f.slice(end+1, len(f.text))
		if len(commas) > 0 {
			var out []*field
			segStart := start + 1
			for _, c := range append(commas, end) {
				nf := &field{}
				nf.addField(prefix)
				nf.addField(f.slice(segStart, c))
				nf.addField(suffix)
				out = append(out, braceExpand(nf)...)
				segStart = c + 1
			}
			return out
		}
		if allUnquoted(f, start+1, end) {
			if items, ok := seqItems(string(f.text[start+1 : end])); ok {
				var out []*field
				for _, item := range items {
					nf := &field{}
					nf.addField(prefix)
					nf.add(item, false)
					nf.addField(suffix)
					out = append(out, braceExpand(nf)...)
				}
				return out
			}
		}
		// a brace pair with no alternation nor sequence stays
		// literal; keep looking for a later opening brace
	}
	return []*field{f}
}

// matchBrace finds the unquoted '}' closing the '{' at start, along
// with the positions of the unquoted commas at depth one. A missing
// closing brace returns -1.
func matchBrace(f *field, start int) (end int, commas []int) {
	depth := 1
	for i := start + 1; i < len(f.text); i++ {
		if f.quoted[i] {
			continue
		}
		switch f.text[i] {
		case '{':
			depth++
		case '}':
			if depth--; depth == 0 {
				return i, commas
			}
		case ',':
			if depth == 1 {
				commas = append(commas, i)
			}
		}
	}
	return -1, nil
}

func allUnquoted(f *field, i, j int) bool {
	for ; i < j; i++ {
		if f.quoted[i] {
			return false
		}
	}
	return true
}

// seqItems expands a "x..y" sequence body into its items: both ends
// numeric, or both single characters, ascending or descending.
func seqItems(body string) ([]string, bool) {
	from, to, ok := strings.Cut(body, "..")
	if !ok || from == "" || to == "" {
		return nil, false
	}
	if i, err := strconv.Atoi(from); err == nil {
		j, err := strconv.Atoi(to)
		if err != nil {
			return nil, false
		}
		var items []string
		if i <= j {
			for n := i; n <= j; n++ {
				items = append(items, strconv.Itoa(n))
			}
		} else {
			for n := i; n >= j; n-- {
				items = append(items, strconv.Itoa(n))
			}
		}
		return items, true
	}
	if len(from) == 1 && len(to) == 1 {
		i, j := from[0], to[0]
		var items []string
		if i <= j {
			for c := i; c <= j; c++ {
				items = append(items, string(c))
			}
		} else {
			for c := i; c >= j; c-- {
				items = append(items, string(c))
			}
		}
		return items, true
	}
	return nil, false
}
