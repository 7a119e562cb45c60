package template

import "regexp"

var placeholder = regexp.MustCompile(`\$\{([^}]+)}`)

// Substitute replaces every ${name} in tmpl with vars[name].
// Unknown names become the empty string.
func Substitute(tmpl string, vars map[string]string) string {
	if tmpl == "" {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		return vars[name]
	})
}
