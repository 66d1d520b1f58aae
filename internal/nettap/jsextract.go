package nettap

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	windowAssignRe = regexp.MustCompile(`window\.\w+\s*=\s*(\[)`)
	varAssignRe    = regexp.MustCompile(`(?:let|var|const)\s+\w+\s*=\s*(\[)`)
	jsonParseRe    = regexp.MustCompile(`JSON\.parse\(\s*'((?:[^'\\]|\\.)*)'\s*\)`)
	scriptTagRe    = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)
	jsonLDAttrRe   = regexp.MustCompile(`(?i)application/(?:ld\+)?json`)
	scriptOpenRe   = regexp.MustCompile(`(?i)<script[^>]*>`)
)

// ExtractJSONFromJS pulls candidate JSON array documents out of a JS body:
// global window assignments, let/var/const assignments, JSON.parse string
// literals, and bare inline array literals. Unparseable candidates are
// dropped silently.
func ExtractJSONFromJS(body string) []string {
	var out []string

	for _, re := range []*regexp.Regexp{windowAssignRe, varAssignRe} {
		for _, loc := range re.FindAllStringSubmatchIndex(body, -1) {
			// loc[2] is the '[' opening the array literal.
			if doc := balancedArrayAt(body, loc[2]); doc != "" && validJSON(doc) {
				out = append(out, doc)
			}
		}
	}

	for _, m := range jsonParseRe.FindAllStringSubmatch(body, -1) {
		unescaped := strings.NewReplacer(`\'`, `'`, `\\`, `\`, `\"`, `"`).Replace(m[1])
		if validJSON(unescaped) {
			out = append(out, unescaped)
		}
	}

	// Inline array-of-objects literals not bound to a name.
	for i := 0; i < len(body); i++ {
		if body[i] == '[' && i+1 < len(body) && body[i+1] == '{' {
			if doc := balancedArrayAt(body, i); doc != "" && validJSON(doc) {
				out = append(out, doc)
				i += len(doc) - 1
			}
		}
	}

	return dedupeStrings(out)
}

// ExtractJSONFromHTML pulls JSON documents out of <script> bodies,
// including JSON-LD blocks, and then applies the JS extraction rules to
// plain script bodies.
func ExtractJSONFromHTML(body string) []string {
	var out []string
	for _, m := range scriptTagRe.FindAllStringSubmatch(body, -1) {
		content := strings.TrimSpace(m[1])
		if content == "" {
			continue
		}
		open := scriptOpenRe.FindString(m[0])
		if jsonLDAttrRe.MatchString(open) {
			if validJSON(content) {
				out = append(out, content)
			}
			continue
		}
		out = append(out, ExtractJSONFromJS(content)...)
	}
	return dedupeStrings(out)
}

// balancedArrayAt returns the substring of a balanced [...] literal
// starting at position i, or "" when the brackets never close.
func balancedArrayAt(s string, i int) string {
	if i >= len(s) || s[i] != '[' {
		return ""
	}
	depth := 0
	inStr := false
	var quote byte
	for j := i; j < len(s); j++ {
		c := s[j]
		if inStr {
			if c == '\\' {
				j++
			} else if c == quote {
				inStr = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inStr = true
			quote = c
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[i : j+1]
			}
		}
	}
	return ""
}

func validJSON(s string) bool {
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
