// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package mergeparam

import (
	"errors"
	"strings"
	"unicode"
)

// splitArgs splits a command line into arguments.
// Arguments are separated by spaces,
// unless the spaces are quoted.
// Single quotes keep the enclosed text as is,
// in double quotes and outside quotes
// a backslash escapes the next character.
func splitArgs(s string) ([]string, error) {
	var args []string
	var b strings.Builder
	inArg := false
	var quote rune
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
				continue
			}
			b.WriteRune(r)
		case r == '\\' && quote == '"':
			escaped = true
		case quote == '"':
			if r == '"' {
				quote = 0
				continue
			}
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			inArg = true
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case unicode.IsSpace(r):
			if inArg {
				args = append(args, b.String())
				b.Reset()
				inArg = false
			}
		default:
			b.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote in arguments")
	}
	if escaped {
		return nil, errors.New("unfinished escape in arguments")
	}
	if inArg {
		args = append(args, b.String())
	}
	return args, nil
}

// joinArgs joins the arguments into a command line
// that can be read with splitArgs.
func joinArgs(args []string) string {
	q := make([]string, 0, len(args))
	for _, a := range args {
		if a != "" && !strings.ContainsFunc(a, needQuote) {
			q = append(q, a)
			continue
		}
		q = append(q, "'"+strings.ReplaceAll(a, "'", `'\''`)+"'")
	}
	return strings.Join(q, " ")
}

func needQuote(r rune) bool {
	return unicode.IsSpace(r) || r == '\'' || r == '"' || r == '\\'
}
