package discovery

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadKeywords reads keywords.txt: one lowercase token per line, blank
// lines and # comments skipped. A missing file yields the default set.
func LoadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultKeywords, nil
		}
		return nil, fmt.Errorf("open keywords: %w", err)
	}
	defer f.Close()

	var keywords []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kw := strings.ToLower(line)
		if seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keywords: %w", err)
	}
	if len(keywords) == 0 {
		return DefaultKeywords, nil
	}
	return keywords, nil
}
