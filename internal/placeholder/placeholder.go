// Package placeholder finds and fills {{ name }} placeholders in note content.
//
// A placeholder is a name made of ASCII word characters and dots, wrapped
// in double braces with optional whitespace inside: {{date}}, {{ user.name }}.
// Whitespace covers the ASCII blanks, vertical tab, every Unicode space
// separator, the line and paragraph separators and the byte order mark.
package placeholder

import (
	"regexp"
	"strings"
)

// padding is the whitespace allowed around a name.
const padding = `[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]*`

// pattern matches one placeholder; group 1 is the bare name.
var pattern = regexp.MustCompile(`\{\{` + padding + `([\w.]+)` + padding + `\}\}`)

// FindVariables returns the distinct placeholder names in content, trimmed,
// in order of first occurrence. It returns an empty, non-nil slice when
// content has no placeholders.
func FindVariables(content string) []string {
	matches := pattern.FindAllStringSubmatch(content, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))

	for _, m := range matches {
		name := m[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// Substitute replaces every placeholder whose name is a key of vars with the
// corresponding value. Unknown placeholders are kept verbatim.
//
// Values are inserted literally and never rescanned, so a value that itself
// looks like a placeholder, or contains "$1", comes through unchanged.
func Substitute(content string, vars map[string]string) string {
	if len(vars) == 0 {
		return content
	}

	locs := pattern.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, loc := range locs {
		// loc[0:2] is the whole placeholder, loc[2:4] the name
		value, ok := vars[content[loc[2]:loc[3]]]
		if !ok {
			continue
		}
		b.WriteString(content[last:loc[0]])
		b.WriteString(value)
		last = loc[1]
	}
	b.WriteString(content[last:])

	return b.String()
}
