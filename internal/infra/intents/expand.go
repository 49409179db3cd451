package intents

import "strings"

// Expand turns an intent template into concrete samples: "(a|b)" picks one
// alternative and "[x]" is optional. Entity slots such as "{entity}" are
// left for the host intent engine.
func Expand(template string) []string {
	p := &parser{src: []rune(template)}
	raw := p.alternatives(0)

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) alternatives(closer rune) []string {
	var out []string
	for {
		out = append(out, p.sequence()...)
		if p.pos >= len(p.src) {
			return out
		}
		c := p.src[p.pos]
		p.pos++
		if c == '|' {
			continue
		}
		if closer != 0 {
			return out
		}
		// unbalanced closing bracket at the top level: skip it
	}
}

func (p *parser) sequence() []string {
	results := []string{""}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			results = product(results, []string{lit.String()})
			lit.Reset()
		}
	}

	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '|', ')', ']':
			flush()
			return results
		case '(':
			p.pos++
			flush()
			results = product(results, p.alternatives(')'))
		case '[':
			p.pos++
			flush()
			results = product(results, append(p.alternatives(']'), ""))
		default:
			lit.WriteRune(c)
			p.pos++
		}
	}
	flush()
	return results
}

func product(prefixes, suffixes []string) []string {
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out
}
