// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"mvdan.cc/posh/pattern"
)

// quoteRemoval implements spec §4.7d: drop every AttrChar whose
// IsQuoting is true, keep the Value of everything else.
func quoteRemoval(af AttrField) string {
	var b strings.Builder
	for _, c := range af {
		if c.IsQuoting {
			continue
		}
		b.WriteRune(c.Value)
	}
	return b.String()
}

// hasGlobMeta reports whether af contains any unquoted character with
// glob meaning, i.e. whether pathname expansion has anything to do.
func hasGlobMeta(af AttrField) bool {
	for _, c := range af {
		if c.IsQuoting || c.IsQuoted {
			continue
		}
		switch c.Value {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// globField implements spec §4.7c+d: pathname expansion over one
// already-split field, followed by quote removal. When NoGlob is set, no
// glob metacharacter is unquoted, or nothing matches, the field is kept
// as a single literal field (quote-removed).
func globField(cfg *Config, af AttrField) []Field {
	if cfg.NoGlob || !hasGlobMeta(af) {
		return []Field{Field(quoteRemoval(af))}
	}

	exprs, err := translateFieldPattern(af)
	if err != nil {
		return []Field{Field(quoteRemoval(af))}
	}

	matches := globPattern(quoteRemoval(af), exprs)
	if len(matches) == 0 {
		return []Field{Field(quoteRemoval(af))}
	}
	sort.Strings(matches)
	out := make([]Field, len(matches))
	for i, m := range matches {
		out[i] = Field(m)
	}
	return out
}

// translateFieldPattern turns af into a path glob regular expression
// (spec §4.7c): quoted characters are literal, unquoted characters keep
// their glob meaning. Matching is anchored at both ends of each path
// component, and a leading '.' is only matched by an explicit literal
// '.' in the pattern — both handled by pattern.Filenames|EntireString.
func translateFieldPattern(af AttrField) ([]string, error) {
	var b strings.Builder
	for _, c := range af {
		if c.IsQuoting {
			continue
		}
		if c.IsQuoted {
			b.WriteString(pattern.QuoteMeta(string(c.Value), pattern.Filenames))
			continue
		}
		b.WriteRune(c.Value)
	}
	full := b.String()
	var exprs []string
	for _, part := range strings.Split(full, string(filepath.Separator)) {
		if part == "" {
			// Left empty so globPattern skips it (root or doubled separator).
			exprs = append(exprs, "")
			continue
		}
		expr, err := pattern.Regexp(part, pattern.Filenames|pattern.EntireString)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

// globPattern walks the filesystem one path component at a time,
// matching each component's compiled expression against directory
// entries (spec §4.7c). It never descends into a dotfile unless the
// pattern's component explicitly starts with a literal '.'.
func globPattern(original string, exprs []string) []string {
	abs := filepath.IsAbs(original)
	matches := []string{"."}
	if abs {
		matches[0] = string(filepath.Separator)
	}
	for _, expr := range exprs {
		if expr == "" {
			continue
		}
		rx, err := regexp.Compile(expr)
		if err != nil {
			return nil
		}
		var next []string
		for _, dir := range matches {
			next = globDir(dir, rx, next)
		}
		matches = next
	}
	return matches
}

// globDir matches rx (already compiled from pattern.Filenames|EntireString,
// which itself encodes the "a wildcard never matches a leading dot"
// rule) against dir's entries.
func globDir(dir string, rx *regexp.Regexp, matches []string) []string {
	d, err := os.Open(dir)
	if err != nil {
		return matches
	}
	defer d.Close()

	names, _ := d.Readdirnames(-1)
	sort.Strings(names)
	for _, name := range names {
		if rx.MatchString(name) {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	return matches
}
