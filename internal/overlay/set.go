package overlay

import (
	"sort"
	"strings"
)

// Set is a set of device-tree overlay names.
type Set map[string]struct{}

// DecodeSet parses the raw value of a dt-overlay config variable.
//
// Grammar: a value wrapped in double quotes is a comma-separated list of
// double-quoted tokens without brackets ("tok1","tok2"); anything else is
// a single bare token.
func DecodeSet(raw string) Set {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		body := raw[1 : len(raw)-1]
		s := make(Set)
		for _, tok := range strings.Split(body, `","`) {
			s[tok] = struct{}{}
		}
		return s
	}
	return Set{raw: {}}
}

// Encode renders the set in the quoted comma-separated form, dropping
// empty tokens. Tokens are sorted so repeated runs produce a stable
// value. An empty set encodes to "".
func Encode(s Set) string {
	toks := make([]string, 0, len(s))
	for tok := range s {
		if tok == "" {
			continue
		}
		toks = append(toks, tok)
	}
	sort.Strings(toks)
	for i, tok := range toks {
		toks[i] = `"` + tok + `"`
	}
	return strings.Join(toks, ",")
}

// Equal reports whether both sets hold the same tokens. A nil set equals
// an empty one.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for tok := range s {
		if _, ok := o[tok]; !ok {
			return false
		}
	}
	return true
}

func (s Set) with(tok string) Set {
	out := make(Set, len(s)+1)
	for t := range s {
		out[t] = struct{}{}
	}
	out[tok] = struct{}{}
	return out
}

func (s Set) without(tok string) Set {
	out := make(Set, len(s))
	for t := range s {
		if t == tok {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}
