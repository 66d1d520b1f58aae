package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderhound/internal/strategy"
	"leaderhound/internal/types"
)

func entry(rank int, name string, wager, prize float64) types.Entry {
	return types.Entry{Rank: rank, Username: name, Wager: wager, Prize: prize, LeaderboardType: types.TypeCurrent}
}

func output(src types.Source, conf float64, entries ...types.Entry) *strategy.Output {
	return &strategy.Output{Source: src, Entries: entries, Confidence: conf}
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "playerone", NormalizeUsername("Player_One"))
	assert.Equal(t, "zo", NormalizeUsername("Z****o"))
	assert.Equal(t, "abc", NormalizeUsername("  a-b c  "))
}

func TestFuseAgreeingSources(t *testing.T) {
	api := output(types.SourceAPI, 90,
		entry(1, "alpha", 50000, 5000),
		entry(2, "beta", 40000, 2500),
		entry(3, "gamma", 30000, 1000),
	)
	md := output(types.SourceMarkdown, 75,
		entry(1, "Alpha", 50000, 5000),
		entry(2, "beta", 40100, 2500), // within 5%
		entry(3, "gamma", 30000, 1000),
	)

	fused := Fuse([]*strategy.Output{api, md})
	require.NotNil(t, fused)
	assert.Equal(t, types.SourceAPI, fused.Source, "api scores highest on confidence and coverage")
	assert.InDelta(t, 1.0, fused.Report.OverallAgreement, 0.001)
	assert.InDelta(t, 20, fused.Report.ConfidenceAdjust, 0.001)
	assert.InDelta(t, 100, fused.Confidence, 0.001, "90 + 20 clamps to 100")
	assert.Empty(t, fused.Report.Discrepancies)

	for _, ea := range fused.Report.EntryAgreement {
		assert.Equal(t, types.AgreementAgreed, ea.Status)
	}
}

func TestFuseDisagreeingWagers(t *testing.T) {
	api := output(types.SourceAPI, 90, entry(1, "alpha", 50000, 0))
	dom := output(types.SourceDOM, 65, entry(1, "alpha", 10000, 0))

	fused := Fuse([]*strategy.Output{api, dom})
	require.NotNil(t, fused)

	// Username and rank agree, the wager does not: 2/3 < 0.75.
	assert.InDelta(t, 0, fused.Report.OverallAgreement, 0.001)
	require.Len(t, fused.Report.Discrepancies, 1)
	assert.Equal(t, "wager", fused.Report.Discrepancies[0].Field)
	assert.Equal(t, types.AgreementDisputed, fused.Report.EntryAgreement["alpha"].Status)
	assert.InDelta(t, -15, fused.Report.ConfidenceAdjust, 0.001)
}

func TestFuseSingleSourcePenalty(t *testing.T) {
	dom := output(types.SourceDOM, 65, entry(1, "alpha", 100, 0), entry(2, "beta", 90, 0))

	fused := Fuse([]*strategy.Output{dom, nil})
	require.NotNil(t, fused)
	assert.True(t, fused.Report.SingleSource)
	assert.Equal(t, types.SourceDOM, fused.Report.RecommendedSource)
	assert.InDelta(t, -5, fused.Report.ConfidenceAdjust, 0.001)
	assert.InDelta(t, 60, fused.Confidence, 0.001)
}

func TestFuseNothingUsable(t *testing.T) {
	assert.Nil(t, Fuse(nil))
	assert.Nil(t, Fuse([]*strategy.Output{nil, {Source: types.SourceDOM}}))
}

// Entries without ranks align on normalized username plus rounded wager, so
// a censored DOM name still pairs with its API form when the wager matches.
func TestFuseAlignmentWithoutRanks(t *testing.T) {
	api := output(types.SourceAPI, 90, types.Entry{Username: "player_one", Wager: 1234.4})
	md := output(types.SourceMarkdown, 75, types.Entry{Username: "PlayerOne", Wager: 1234.4})

	fused := Fuse([]*strategy.Output{api, md})
	require.NotNil(t, fused)
	assert.InDelta(t, 1.0, fused.Report.OverallAgreement, 0.001)
	ea := fused.Report.EntryAgreement["player_one"]
	assert.Equal(t, types.AgreementAgreed, ea.Status)
	assert.ElementsMatch(t, []string{"api", "markdown"}, ea.Sources)
}

func TestSourceScorePrefersCoverageAndAgreement(t *testing.T) {
	rich := output(types.SourceAPI, 90,
		entry(1, "a", 100, 10), entry(2, "b", 90, 5),
	)
	poor := output(types.SourceGeometric, 50,
		entry(1, "a", 0, 0), entry(2, "b", 0, 0),
	)
	assert.Greater(t, sourceScore(rich, 2), sourceScore(poor, 0))
}

func TestConfidenceAdjustLadder(t *testing.T) {
	assert.InDelta(t, 20, confidenceAdjust(0.95, 0), 0.001)
	assert.InDelta(t, 10, confidenceAdjust(0.75, 0), 0.001)
	assert.InDelta(t, 5, confidenceAdjust(0.55, 0), 0.001)
	assert.InDelta(t, -10, confidenceAdjust(0.4, 0), 0.001)
	assert.InDelta(t, -15, confidenceAdjust(0.2, 0), 0.001)
	assert.InDelta(t, 15, confidenceAdjust(0.95, 6), 0.001, "6 discrepancies cost 5")
	assert.InDelta(t, 10, confidenceAdjust(0.95, 11), 0.001, "11 discrepancies cost 10")
}
