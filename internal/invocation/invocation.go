// Package invocation models a command-line invocation as a token list and
// rewrites it for namespace dispatch.
//
// All rewriting is positional: tokens are located by scanning, then spliced
// out or inserted by index. Nothing is matched as a pattern, so namespace names
// containing regex or shell metacharacters behave like any other literal.
// Tokens from the first "--" terminator onwards are copied verbatim.
package invocation

import (
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const (
	// Verb is the dispatch command name.
	Verb = "bin"

	// AllNamespaces is the selector meaning every namespace under the target root.
	AllNamespaces = "all"

	// Terminator ends option parsing; everything after it is passed through untouched.
	Terminator = "--"

	// WorkingDirFlag is the long form of the global working directory option.
	WorkingDirFlag = "--working-dir"

	// WorkingDirShortFlag is the short form of WorkingDirFlag.
	WorkingDirShortFlag = "-d"

	// HereDirective pins the working directory to the process current directory.
	HereDirective = WorkingDirFlag + "=."
)

// valueFlags lists options that take their value from the following token.
var valueFlags = map[string]bool{
	WorkingDirFlag:      true,
	WorkingDirShortFlag: true,
}

// Invocation is an ordered list of command-line tokens, without the program name.
// The zero value is an empty invocation. Invocations are never mutated in place.
type Invocation struct {
	tokens []string
}

// New returns an invocation holding a copy of tokens.
func New(tokens ...string) Invocation {
	return Invocation{tokens: slices.Clone(tokens)}
}

// Tokens returns a copy of the invocation tokens.
func (inv Invocation) Tokens() []string {
	return slices.Clone(inv.tokens)
}

// String renders the invocation as text suitable for logs and for pasting
// into a terminal. Only tokens the shell would reinterpret are quoted.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.tokens))
	for _, tok := range inv.tokens {
		if shellSafe(tok) {
			parts = append(parts, tok)
			continue
		}
		quoted, err := syntax.Quote(tok, syntax.LangBash)
		if err != nil {
			quoted = tok
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}

// shellSafe reports whether tok reads back as itself without quoting.
func shellSafe(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./=:,+@%", r):
		default:
			return false
		}
	}
	return true
}

// terminatorIndex returns the index of the first "--", or len(tokens) if there is none.
func (inv Invocation) terminatorIndex() int {
	if i := slices.Index(inv.tokens, Terminator); i >= 0 {
		return i
	}
	return len(inv.tokens)
}

// nextPositional returns the index of the first positional token at or after
// from, skipping options and the values of value-taking options. It returns -1
// when a terminator or the end of the stream is reached first.
func (inv Invocation) nextPositional(from int) int {
	for i := from; i < len(inv.tokens); i++ {
		tok := inv.tokens[i]
		if tok == Terminator {
			return -1
		}
		if isOption(tok) {
			if valueFlags[tok] {
				i++
			}
			continue
		}
		return i
	}
	return -1
}

// CommandIndex returns the index of the first positional token (the command
// name), or -1 if the invocation has none before the terminator.
func (inv Invocation) CommandIndex() int {
	return inv.nextPositional(0)
}

// Command returns the command name, or "" if there is none.
func (inv Invocation) Command() string {
	i := inv.CommandIndex()
	if i < 0 {
		return ""
	}
	return inv.tokens[i]
}

// WorkingDir returns the value of the last working directory option before the
// terminator. ok is false when the option is absent. The attached short form
// ("-d/path") is only recognised before the command name; after it, such a
// token belongs to the command.
func (inv Invocation) WorkingDir() (dir string, ok bool) {
	end := inv.terminatorIndex()
	cmd := inv.CommandIndex()
	for i := 0; i < end; i++ {
		tok := inv.tokens[i]
		switch {
		case valueFlags[tok]:
			if i+1 < end {
				dir, ok = inv.tokens[i+1], true
				i++
			}
		case strings.HasPrefix(tok, WorkingDirFlag+"="):
			dir, ok = strings.TrimPrefix(tok, WorkingDirFlag+"="), true
		case (cmd < 0 || i < cmd) && strings.HasPrefix(tok, WorkingDirShortFlag) && len(tok) > len(WorkingDirShortFlag) && !strings.HasPrefix(tok, "--"):
			dir, ok = strings.TrimPrefix(strings.TrimPrefix(tok, WorkingDirShortFlag), "="), true
		}
	}
	return dir, ok
}

// HasFlag reports whether any of names appears as an option before the terminator.
func (inv Invocation) HasFlag(names ...string) bool {
	for _, tok := range inv.tokens[:inv.terminatorIndex()] {
		if slices.Contains(names, tok) {
			return true
		}
	}
	return false
}

func isOption(tok string) bool {
	return len(tok) > 1 && tok[0] == '-'
}
