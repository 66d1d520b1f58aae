package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderhound/internal/collect"
	"leaderhound/internal/types"
)

func mdCapture(md string) *collect.Capture {
	return &collect.Capture{Markdown: md}
}

func TestMarkdownTableWithHeader(t *testing.T) {
	md := strings.Join([]string{
		"| Place | User | Wagered | Prize |",
		"| --- | --- | --- | --- |",
		"| 1 | alpha | $1,000 | $500 |",
		"| 2 | beta | $900 | $250 |",
	}, "\n")

	out := Markdown(mdCapture(md))
	require.NotNil(t, out)
	assert.Equal(t, types.SourceMarkdown, out.Source)
	require.Len(t, out.Entries, 2)

	assert.Equal(t, 1, out.Entries[0].Rank)
	assert.Equal(t, "alpha", out.Entries[0].Username)
	assert.InDelta(t, 1000, out.Entries[0].Wager, 0.001)
	assert.InDelta(t, 500, out.Entries[0].Prize, 0.001)
	assert.Equal(t, "beta", out.Entries[1].Username)
}

// Duplicate header names map only their first occurrence: in
// "Prize ... Reward" the Reward column is ignored rather than
// overwriting the prize.
func TestMarkdownTableDuplicateHeaderRoles(t *testing.T) {
	md := strings.Join([]string{
		"| Place | User | Prize | Wagered | Reward |",
		"| --- | --- | --- | --- | --- |",
		"| 1 | gamma | $300 | $8,000 | $999 |",
	}, "\n")

	out := Markdown(mdCapture(md))
	require.NotNil(t, out)
	require.Len(t, out.Entries, 1)
	e := out.Entries[0]
	assert.Equal(t, "gamma", e.Username)
	assert.InDelta(t, 8000, e.Wager, 0.001)
	assert.InDelta(t, 300, e.Prize, 0.001)
}

func TestMarkdownHeaderlessTablePositional(t *testing.T) {
	md := strings.Join([]string{
		"| 1 | delta | $700 | $90 |",
		"| 2 | echo | $600 | $45 |",
	}, "\n")

	out := Markdown(mdCapture(md))
	require.NotNil(t, out)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "delta", out.Entries[0].Username)
	assert.InDelta(t, 700, out.Entries[0].Wager, 0.001)
	assert.InDelta(t, 90, out.Entries[0].Prize, 0.001)
}

func TestMarkdownPodium(t *testing.T) {
	md := strings.Join([]string{
		"![](avatar1.png)",
		"**HighRoller**",
		"Wagered: $50,000",
		"$5,000",
		"![](avatar2.png)",
		"**SecondGuy**",
		"Wagered: $40,000",
		"$2,500",
		"![](avatar3.png)",
		"ThirdGuy",
		"Wagered: $30,000",
		"$1,000",
	}, "\n")

	out := Markdown(mdCapture(md))
	require.NotNil(t, out)
	require.Len(t, out.Entries, 3)

	assert.Equal(t, "HighRoller", out.Entries[0].Username)
	assert.InDelta(t, 50000, out.Entries[0].Wager, 0.001)
	assert.InDelta(t, 5000, out.Entries[0].Prize, 0.001)
	assert.Equal(t, 1, out.Entries[0].Rank)

	assert.Equal(t, "ThirdGuy", out.Entries[2].Username)
	assert.Equal(t, 3, out.Entries[2].Rank)
}

// Label on one line, value on the next.
func TestMarkdownPodiumLabelThenAmount(t *testing.T) {
	md := strings.Join([]string{
		"LuckyOne",
		"Wagered",
		"$25,000",
		"Prize: $750",
	}, "\n")

	entries := parsePodium(splitMarkdownLines(md), columnOrder{})
	require.Len(t, entries, 1)
	assert.Equal(t, "LuckyOne", entries[0].Username)
	assert.InDelta(t, 25000, entries[0].Wager, 0.001)
	assert.InDelta(t, 750, entries[0].Prize, 0.001)
}

func TestMarkdownRankedListWithPrizeIcon(t *testing.T) {
	lines := splitMarkdownLines(strings.Join([]string{
		"#1 delta",
		"Wagered: $700",
		"🎁 $90",
		"#2 echo",
		"$500",
		"$50",
	}, "\n"))

	entries := parseRankedList(lines, columnOrder{})
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "delta", entries[0].Username)
	assert.InDelta(t, 700, entries[0].Wager, 0.001)
	assert.InDelta(t, 90, entries[0].Prize, 0.001)

	assert.InDelta(t, 500, entries[1].Wager, 0.001)
	assert.InDelta(t, 50, entries[1].Prize, 0.001)
}

// Bare integers continue the ranking only in sequence and only inside a
// Challengers-style section.
func TestMarkdownRankedListBareSequence(t *testing.T) {
	lines := splitMarkdownLines(strings.Join([]string{
		"Top Challengers",
		"#3 foo",
		"Wagered: $1,000",
		"4",
		"bar",
		"$800",
		"5",
		"baz",
		"$600",
	}, "\n"))

	entries := parseRankedList(lines, columnOrder{})
	require.Len(t, entries, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	assert.Equal(t, "bar", entries[1].Username)
	assert.InDelta(t, 800, entries[1].Wager, 0.001)
	assert.Equal(t, "baz", entries[2].Username)
}

// Without the Challengers context a bare integer is not a rank.
func TestMarkdownRankedListBareRejectedOutsideContext(t *testing.T) {
	lines := splitMarkdownLines(strings.Join([]string{
		"#3 foo",
		"Wagered: $1,000",
		"4",
		"bar",
		"$800",
	}, "\n"))

	entries := parseRankedList(lines, columnOrder{})
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Rank)
}

func TestMarkdownHeaderBlocks(t *testing.T) {
	lines := splitMarkdownLines(strings.Join([]string{
		"1",
		"### TopDog",
		"250,000 points",
		"Gold",
		"### Runner",
		"Wagered: $90,000",
		"Prize: $1,000",
	}, "\n"))

	entries := parseHeaderBlocks(lines)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "TopDog", entries[0].Username)
	assert.InDelta(t, 250000, entries[0].Wager, 0.001)

	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "Runner", entries[1].Username)
	assert.InDelta(t, 90000, entries[1].Wager, 0.001)
	assert.InDelta(t, 1000, entries[1].Prize, 0.001)
}

func TestDetectColumnOrder(t *testing.T) {
	prizeFirst := detectColumnOrder([]string{"| Place | User | Prize | Wagered |"})
	assert.True(t, prizeFirst.known)
	assert.True(t, prizeFirst.prizeFirst)

	wagerFirst := detectColumnOrder([]string{"| Rank | Player | Wagered | Reward |"})
	assert.True(t, wagerFirst.known)
	assert.False(t, wagerFirst.prizeFirst)

	unknown := detectColumnOrder([]string{"no table here"})
	assert.False(t, unknown.known)
}

func TestMarkdownEmptyInput(t *testing.T) {
	assert.Nil(t, Markdown(mdCapture("")))
	assert.Nil(t, Markdown(mdCapture("Just some prose with no leaderboard.")))
}
