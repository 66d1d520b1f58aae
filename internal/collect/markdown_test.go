package collect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectMarkdownStripsNoise(t *testing.T) {
	html := `<html><body>
		<nav><a href="/">Home</a></nav>
		<div class="cookie-consent">Accept cookies</div>
		<table>
			<tr><th>Rank</th><th>User</th><th>Wagered</th></tr>
			<tr><td>1</td><td>Alpha</td><td>$12,000</td></tr>
			<tr><td>2</td><td>Beta</td><td>$9,000</td></tr>
		</table>
		<script>var tracking = true;</script>
		<footer>All rights reserved</footer>
	</body></html>`

	md, err := ProjectMarkdown(html, 1<<20)
	require.NoError(t, err)

	assert.Contains(t, md, "Alpha")
	assert.Contains(t, md, "$12,000")
	assert.Contains(t, md, "|")
	assert.NotContains(t, md, "Accept cookies")
	assert.NotContains(t, md, "tracking")
	assert.NotContains(t, md, "All rights reserved")
	assert.NotContains(t, md, "Home")
}

func TestProjectMarkdownTruncatesOnRuneBoundary(t *testing.T) {
	html := "<html><body><p>" + strings.Repeat("日", 100) + "</p></body></html>"

	md, err := ProjectMarkdown(html, 50)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(md), 50)
	// No split multibyte sequence at the cut.
	assert.True(t, strings.HasSuffix(md, "日"))
}

func TestCollectOptionsDefaults(t *testing.T) {
	var o Options
	assert.Equal(t, 3, o.stablePolls())
	assert.Equal(t, 1<<20, o.markdownLimit())
}
