package collect

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

// noiseSelectors are removed from the body clone before projection so the
// Markdown parsers see leaderboard content, not chrome.
var noiseSelectors = []string{
	"script", "style", "noscript", "iframe", "svg",
	"nav", "footer", "header",
	"[class*='cookie']", "[class*='popup']", "[class*='modal']",
	"[class*='sidebar']", "[class*='drawer']", "[class*='banner']",
	"[role='navigation']", "[role='banner']", "[role='contentinfo']",
	"[hidden]", "[aria-hidden='true']",
	"[style*='display:none']", "[style*='display: none']",
	"[style*='visibility:hidden']", "[style*='visibility: hidden']",
}

// ProjectMarkdown converts page HTML to Markdown on a noise-stripped body
// clone. Tables survive as pipe-delimited rows. The output is truncated at
// limit bytes (on a rune boundary).
func ProjectMarkdown(html string, limit int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	for _, sel := range noiseSelectors {
		body.Find(sel).Remove()
	}

	cleaned, err := goquery.OuterHtml(body)
	if err != nil {
		return "", err
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(cleaned)
	if err != nil {
		return "", err
	}

	md = strings.TrimSpace(md)
	if len(md) > limit {
		cut := limit
		for cut > 0 && !isRuneStart(md[cut]) {
			cut--
		}
		md = md[:cut]
	}
	return md, nil
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
