package strategy

import (
	"regexp"
	"strings"
	"unicode"

	"leaderhound/internal/types"
)

// uiTextPhrases are interface labels that must never be accepted as
// usernames. Matching is case-insensitive on the whitespace-normalized text.
var uiTextPhrases = map[string]struct{}{
	"show more": {}, "load more": {}, "view all": {}, "show all": {},
	"display all": {}, "see more": {}, "see all": {},
	"leaderboard": {}, "leaderboards": {}, "ranking": {}, "rankings": {},
	"standings": {}, "top players": {}, "wager race": {}, "wager races": {},
	"previous": {}, "current": {}, "history": {}, "archive": {},
	"wagered": {}, "wager": {}, "prize": {}, "prizes": {}, "reward": {},
	"rewards": {}, "bonus": {}, "winnings": {}, "payout": {},
	"rank": {}, "place": {}, "position": {}, "player": {}, "user": {},
	"username": {}, "name": {}, "amount": {}, "points": {},
	"total": {}, "total wagered": {}, "total wager": {}, "prize pool": {},
	"grand total": {}, "participants": {}, "entries": {}, "players": {},
	"time left": {}, "time remaining": {}, "ends in": {}, "ending in": {},
	"starts in": {}, "remaining": {}, "duration": {},
	"sign up": {}, "sign in": {}, "log in": {}, "login": {}, "register": {},
	"play now": {}, "join now": {}, "claim": {}, "claim now": {},
	"weekly": {}, "monthly": {}, "daily": {}, "jackpot": {},
	"next": {}, "back": {}, "more": {}, "all": {},
}

var (
	ordinalRe   = regexp.MustCompile(`(?i)^\d{1,3}(st|nd|rd|th)$`)
	timerUnitRe = regexp.MustCompile(`(?i)^\d+\s*(d|h|m|s|days?|hours?|hrs?|mins?|minutes?|secs?|seconds?)$`)
	emailRe     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	wsRe        = regexp.MustCompile(`\s+`)
)

// IsUIText reports whether a candidate string is interface text rather than
// a username: known label phrases, ordinals, Roman numerals, timer
// fragments, and pure numbers or currency amounts.
func IsUIText(s string) bool {
	t := strings.ToLower(wsRe.ReplaceAllString(strings.TrimSpace(s), " "))
	if t == "" {
		return true
	}
	if _, ok := uiTextPhrases[t]; ok {
		return true
	}
	if ordinalRe.MatchString(t) || timerUnitRe.MatchString(t) {
		return true
	}
	if _, ok := romanNumerals[t]; ok {
		return true
	}
	if ParseRank(t) > 0 {
		return true
	}
	// Pure number or currency amount with nothing else.
	stripped := strings.TrimSpace(currencyStripRe.ReplaceAllString(t, ""))
	if stripped != "" {
		if _, ok := ParseAmount(stripped); ok {
			clean := strings.Map(func(r rune) rune {
				if unicode.IsDigit(r) || r == '.' || r == ',' || r == ' ' {
					return -1
				}
				return r
			}, stripped)
			if clean == "" || clean == "k" || clean == "m" || clean == "b" {
				return true
			}
		}
	}
	return false
}

// IsCensored reports whether a username is a censored display form: two or
// more asterisks anywhere, or any asterisk in a short (≤ 4 char) name.
func IsCensored(s string) bool {
	n := strings.Count(s, "*")
	if n >= 2 {
		return true
	}
	return n >= 1 && len(s) <= 4
}

// IsEmailShaped reports whether the candidate looks like an email address.
func IsEmailShaped(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// ValidUsername applies the acceptance rules shared by the strategies:
// non-empty, not email-shaped, not UI text (unless censored), and carrying
// at least two letters unless asterisks mark censorship or the name is a
// single alphanumeric character.
func ValidUsername(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if s == types.HiddenUsername {
		return true
	}
	if IsEmailShaped(s) {
		return false
	}
	// Single-character names collide with the Roman-numeral and bare-rank
	// forms in the UI-text tables; judge the rune directly.
	if r := []rune(s); len(r) == 1 {
		return unicode.IsLetter(r[0]) || unicode.IsDigit(r[0])
	}
	hasAsterisk := strings.Contains(s, "*")
	if IsUIText(s) && !hasAsterisk {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2 || hasAsterisk
}

var (
	mdImageRe      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLinkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingPrefix  = regexp.MustCompile(`^#{1,6}\s+`)
	leadingRankRe  = regexp.MustCompile(`(?i)^(?:#\s*\d{1,4}\s*\.?|\d{1,4}\s*[.)]|\d{1,3}(?:st|nd|rd|th))\s+`)
	quoteOnlyRe    = regexp.MustCompile("^[\"'`“”‘’\\s]*$")
	backslashEscRe = regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+.!$|-])")
)

// balanced markdown wrappers, longest first so ** is tried before *.
var mdWrappers = []string{"***", "**", "__", "*", "_", "`", "~~"}

// CleanMarkdownUsername normalizes a username scraped out of projected
// Markdown. Emphasis markers are stripped only when they form balanced
// wrapping pairs, so censorship asterisks inside or trailing a name survive
// ("Z****o", "Ano**"). The function is idempotent.
func CleanMarkdownUsername(s string) string {
	prev := ""
	for s != prev {
		prev = s
		s = cleanOnce(s)
	}
	if s == "" || quoteOnlyRe.MatchString(s) {
		return types.HiddenUsername
	}
	return s
}

func cleanOnce(s string) string {
	s = strings.TrimSpace(s)

	// Image markdown keeps its alt text; plain links keep their label.
	s = mdImageRe.ReplaceAllString(s, "$1")
	s = mdLinkRe.ReplaceAllString(s, "$1")

	s = backslashEscRe.ReplaceAllString(s, "$1")
	s = headingPrefix.ReplaceAllString(s, "")
	s = wsRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	for _, w := range mdWrappers {
		if len(s) > 2*len(w) && strings.HasPrefix(s, w) && strings.HasSuffix(s, w) {
			inner := s[len(w) : len(s)-len(w)]
			// Refuse the strip when it would eat censorship asterisks:
			// the inner text must not begin or end with the marker rune.
			if inner != "" && !strings.HasPrefix(inner, w[:1]) && !strings.HasSuffix(inner, w[:1]) {
				s = inner
				break
			}
		}
	}

	s = leadingRankRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
