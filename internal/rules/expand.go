package rules

import "strings"

// expand builds the substitution text for one match. Supported tokens:
// $$, $&, $`, $', $n, $nn and $<name>. Anything else is kept literally.
func (p *Pattern) expand(template, s string, m []int) string {
	if !strings.Contains(template, "$") {
		return template
	}

	groups := len(m)/2 - 1
	var b strings.Builder

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i+1 >= len(template) {
			b.WriteByte(c)
			continue
		}

		next := template[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '&':
			b.WriteString(s[m[0]:m[1]])
			i++
		case next == '`':
			b.WriteString(s[:m[0]])
			i++
		case next == '\'':
			b.WriteString(s[m[1]:])
			i++
		case isDigit(next):
			n, width := groupRef(template[i+1:], groups)
			if width == 0 {
				b.WriteByte('$')
				continue
			}
			b.WriteString(submatch(s, m, n))
			i += width
		case next == '<' && p.named:
			end := strings.IndexByte(template[i+2:], '>')
			if end < 0 {
				b.WriteByte('$')
				continue
			}
			name := template[i+2 : i+2+end]
			if idx := p.re.SubexpIndex(name); idx > 0 {
				b.WriteString(submatch(s, m, idx))
			}
			i += 2 + end
		default:
			b.WriteByte('$')
		}
	}

	return b.String()
}

// groupRef resolves the digits after '$' to a group index, preferring two
// digits when that group exists. width is 0 when no group is referenced.
func groupRef(digits string, groups int) (n, width int) {
	if len(digits) >= 2 && isDigit(digits[1]) {
		nn := int(digits[0]-'0')*10 + int(digits[1]-'0')
		if nn >= 1 && nn <= groups {
			return nn, 2
		}
	}
	d := int(digits[0] - '0')
	if d >= 1 && d <= groups {
		return d, 1
	}
	return 0, 0
}

func submatch(s string, m []int, n int) string {
	start, end := m[2*n], m[2*n+1]
	if start < 0 {
		return ""
	}
	return s[start:end]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
