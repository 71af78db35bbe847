package surface

import "github.com/raaihank/regex-relay/internal/rules"

// RewriteLeaves applies p to every text leaf of c and writes back only the
// leaves whose text changed. onReplace is called once per substituted match.
// Markup is never touched and no notification is dispatched; the caller
// decides when to notify.
func RewriteLeaves(c Container, p *rules.Pattern, replacement string, onReplace func()) bool {
	// Snapshot first so writes cannot disturb the traversal
	leaves := c.Leaves()

	changed := false
	for _, leaf := range leaves {
		old := leaf.Text()
		updated, n := p.Replace(old, replacement, onReplace)
		if n > 0 && updated != old {
			leaf.SetText(updated)
			changed = true
		}
	}
	return changed
}

// ReplaceValue applies p to a value field, writes back and notifies when the
// value changed. It returns the number of substituted matches.
func ReplaceValue(f ValueField, p *rules.Pattern, replacement string, onReplace func()) int {
	old := f.Text()
	updated, n := p.Replace(old, replacement, onReplace)
	if updated != old {
		f.SetText(updated)
		f.NotifyChanged()
	}
	return n
}
