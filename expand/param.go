// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"strings"
)

// paramExp expands the body of a ${...} parameter expansion into f.
//
// Note that ":-" deliberately treats an empty-but-set variable the
// same as any other set variable, returning its empty value rather
// than the default. POSIX says otherwise; this matches the observed
// behavior this shell documents.
func (cfg *Config) paramExp(f *field, content string, quoted bool) error {
	name, rest := splitParamName(content)
	if name == "" {
		// ${} or an invalid name; nothing to substitute
		return nil
	}
	switch {
	case rest == "":
		f.add(cfg.envGet(name), quoted)
	case strings.HasPrefix(rest, ":-"):
		if cfg.Env.Get(name).IsSet() {
			f.add(cfg.envGet(name), quoted)
			return nil
		}
		return cfg.scan(f, rest[2:], quoted)
	case strings.HasPrefix(rest, "-"):
		if cfg.Env.Get(name).IsSet() {
			f.add(cfg.envGet(name), quoted)
			return nil
		}
		return cfg.scan(f, rest[1:], quoted)
	default:
		// an operator we don't implement; substitute the value
		f.add(cfg.envGet(name), quoted)
	}
	return nil
}

// splitParamName splits a ${...} body into the parameter name and the
// remaining operator text. An empty name means the body was invalid.
func splitParamName(content string) (name, rest string) {
	if content == "" {
		return "", ""
	}
	b := content[0]
	switch {
	case isSpecialParam(b) && !(b >= '0' && b <= '9'):
		return content[:1], content[1:]
	case b >= '0' && b <= '9':
		i := 1
		for i < len(content) && content[i] >= '0' && content[i] <= '9' {
			i++
		}
		return content[:i], content[i:]
	case isNameByte(b, false):
		i := 1
		for i < len(content) && isNameByte(content[i], true) {
			i++
		}
		return content[:i], content[i:]
	}
	return "", ""
}
