package recorder

import (
	"regexp"
	"sort"
)

// idPattern matches a run of digits wrapped in back-ticks. It covers both
// `398121` and **`398121`** as rendered by the catch bot.
var idPattern = regexp.MustCompile("`([0-9]+)`")

// IDSet is a set of extracted identifiers.
type IDSet map[string]struct{}

// Extract returns the distinct identifiers found across all sections.
func Extract(sections ...string) IDSet {
	out := make(IDSet)
	for _, s := range sections {
		for _, m := range idPattern.FindAllStringSubmatch(s, -1) {
			out[m[1]] = struct{}{}
		}
	}
	return out
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the ids in lexical order.
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
