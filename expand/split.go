// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import "strings"

func isIFSWhitespace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }

func splittableChar(c AttrChar, ifs string) bool {
	return c.Origin == SoftExpansion && !c.IsQuoted && strings.ContainsRune(ifs, c.Value)
}

// splitField implements spec §4.7b: field splitting over one field's
// AttrChar sequence. Only unquoted SoftExpansion characters are
// splittable; runs of IFS whitespace collapse into a single separator
// and are trimmed at the ends of the field, while every non-whitespace
// IFS character is its own separator, including at the very end of the
// field (an unquoted trailing non-whitespace delimiter still yields a
// trailing empty field, the classic `IFS=:; x="a:"; set -- $x` gotcha).
//
// A field that has no literal, quoted or hard-expansion character
// anywhere in it (i.e. it is the output of pure, unquoted soft
// expansion) vanishes entirely if splitting leaves nothing behind,
// rather than surviving as a lone empty field — this is what makes an
// unquoted reference to an empty or all-whitespace parameter disappear
// as a command argument, while "$empty" still produces one empty field.
func splitField(cfg *Config, af AttrField) []AttrField {
	ifs := cfg.ifs()

	hasAnchor := false
	for _, c := range af {
		if c.Origin != SoftExpansion || c.IsQuoted {
			hasAnchor = true
			break
		}
	}

	if ifs == "" {
		if len(af) == 0 {
			return nil
		}
		return []AttrField{af}
	}

	n := len(af)
	i := 0
	for i < n && splittableChar(af[i], ifs) && isIFSWhitespace(af[i].Value) {
		i++
	}

	var fields []AttrField
	cur := AttrField{}
	any := false
	lastBoundaryHard := false
	for i < n {
		c := af[i]
		if splittableChar(c, ifs) {
			nonWS := 0
			j := i
			for j < n && splittableChar(af[j], ifs) {
				if !isIFSWhitespace(af[j].Value) {
					nonWS++
				}
				j++
			}
			i = j
			fields = append(fields, cur)
			any = true
			cur = AttrField{}
			for k := 1; k < nonWS; k++ {
				fields = append(fields, AttrField{})
			}
			lastBoundaryHard = nonWS > 0
			continue
		}
		cur = append(cur, c)
		i++
	}

	switch {
	case len(cur) > 0:
		fields = append(fields, cur)
	case lastBoundaryHard:
		fields = append(fields, cur)
	case !any && hasAnchor:
		fields = append(fields, cur)
	}
	return fields
}
