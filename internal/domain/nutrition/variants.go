package nutrition

import (
	"strings"
	"unicode"
)

// QueryVariants returns the ordered, de-duplicated search queries tried for name:
// original, lowercase, capitalized, +"s", +"es", spaces removed, "fresh "+, "cooked "+.
// First occurrence wins when two variants collide.
func QueryVariants(name string) []string {
	candidates := []string{
		name,
		strings.ToLower(name),
		capitalize(name),
		name + "s",
		name + "es",
		strings.ReplaceAll(name, " ", ""),
		"fresh " + name,
		"cooked " + name,
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, v := range candidates {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// capitalize upper-cases the first rune and lower-cases the rest ("white RICE" -> "White rice").
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
