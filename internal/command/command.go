package command

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/massmux/QwenImageBot/internal"
)

type Kind int

const (
	Draw Kind = iota
	Edit
	Control
	Account
	Help
)

func (k Kind) String() string {
	switch k {
	case Draw:
		return "draw"
	case Edit:
		return "edit"
	case Control:
		return "control"
	case Account:
		return "account"
	case Help:
		return "help"
	}
	return "unknown"
}

// Command is a matched prefix command.
type Command struct {
	Kind   Kind
	Prefix string
	// Index of the matched prefix within its group.
	Index int
	// Args is the remaining text with surrounding whitespace removed.
	Args string
}

type group struct {
	kind     Kind
	prefixes []string
}

// Router matches chat text against prefix groups in fixed priority order.
type Router struct {
	groups []group
}

func NewRouter(c internal.CommandConfiguration) *Router {
	return &Router{groups: []group{
		{Draw, c.Image},
		{Edit, c.Edit},
		{Control, c.Control},
		{Account, c.Account},
		{Help, c.Help},
	}}
}

// Match returns the command of the first group that has a prefix starting
// text. Within a group the longest such prefix wins. A prefix ending in a
// letter or digit must not be followed by another one, so "Q切换账号 10" is
// not account 1.
func (r *Router) Match(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	for _, g := range r.groups {
		best := -1
		for i, prefix := range g.prefixes {
			if !hasWordPrefix(text, prefix) {
				continue
			}
			if best < 0 || len(prefix) > len(g.prefixes[best]) {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		prefix := g.prefixes[best]
		return Command{
			Kind:   g.kind,
			Prefix: prefix,
			Index:  best,
			Args:   strings.TrimSpace(text[len(prefix):]),
		}, true
	}
	return Command{}, false
}

func hasWordPrefix(text, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(prefix)
	next, _ := utf8.DecodeRuneInString(text[len(prefix):])
	return !(isWordRune(last) && isWordRune(next))
}

func isWordRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
