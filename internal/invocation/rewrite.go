package invocation

import "slices"

// locate returns the positions of the dispatch verb and the namespace token.
func (inv Invocation) locate() (verbIdx, nsIdx int, err error) {
	verbIdx = inv.nextPositional(0)
	if verbIdx < 0 {
		return -1, -1, malformed(inv, "missing %q command", Verb)
	}
	if inv.tokens[verbIdx] != Verb {
		return -1, -1, malformed(inv, "expected %q command, got %q", Verb, inv.tokens[verbIdx])
	}

	nsIdx = inv.nextPositional(verbIdx + 1)
	if nsIdx < 0 {
		return -1, -1, malformed(inv, "missing namespace argument")
	}
	return verbIdx, nsIdx, nil
}

// Selector returns the namespace token of a dispatch invocation
// ("<verb> [options] <namespace> ...").
func Selector(original Invocation) (string, error) {
	_, nsIdx, err := original.locate()
	if err != nil {
		return "", err
	}
	return original.tokens[nsIdx], nil
}

// Inner removes the dispatch verb and the namespace token from original and
// returns the command to run inside the namespace. Every other token keeps its
// relative order, including options placed before the verb or between the verb
// and the namespace.
func Inner(namespace string, original Invocation) (Invocation, error) {
	if namespace == "" {
		return Invocation{}, malformed(original, "namespace is empty")
	}

	verbIdx, nsIdx, err := original.locate()
	if err != nil {
		return Invocation{}, err
	}
	if original.tokens[nsIdx] != namespace {
		return Invocation{}, malformed(original, "expected namespace %q, got %q", namespace, original.tokens[nsIdx])
	}

	out := make([]string, 0, len(original.tokens)-2)
	out = append(out, original.tokens[:verbIdx]...)
	out = append(out, original.tokens[verbIdx+1:nsIdx]...)
	out = append(out, original.tokens[nsIdx+1:]...)
	return Invocation{tokens: out}, nil
}

// Namespaced pins inner to the current directory by inserting HereDirective
// before the terminator, or at the end when there is no terminator. Applying it
// twice yields the same invocation.
func Namespaced(inner Invocation) Invocation {
	end := inner.terminatorIndex()
	if slices.Contains(inner.tokens[:end], HereDirective) {
		return New(inner.tokens...)
	}

	out := make([]string, 0, len(inner.tokens)+1)
	out = append(out, inner.tokens[:end]...)
	out = append(out, HereDirective)
	out = append(out, inner.tokens[end:]...)
	return Invocation{tokens: out}
}

// Forwarding builds an "all namespaces" dispatch of command with args.
func Forwarding(command string, args []string) Invocation {
	out := make([]string, 0, len(args)+3)
	out = append(out, Verb, AllNamespaces, command)
	out = append(out, args...)
	return Invocation{tokens: out}
}
