package ranks

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestTiersPartitionWithoutGaps(t *testing.T) {
	all := All()
	require.Len(t, all, 5)

	assert.Equal(t, int64(0), all[0].Min, "first tier must start at zero")
	assert.Equal(t, Unbounded, all[len(all)-1].Max, "last tier must be unbounded")

	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].Max+1, all[i].Min,
			"tier %q must start where %q ends", all[i].Name, all[i-1].Name)
		assert.Greater(t, all[i].Level, all[i-1].Level)
		assert.GreaterOrEqual(t, all[i].Bonus, all[i-1].Bonus)
	}
}

func TestForLevelNonDecreasing(t *testing.T) {
	prev := 0
	for total := int64(0); total <= 250_000; total += 1_000 {
		info := For(d(total))
		assert.GreaterOrEqual(t, info.Level, prev, "level dropped at total=%d", total)
		prev = info.Level
	}
}

func TestForBoundaries(t *testing.T) {
	testCases := []struct {
		total         int64
		expectedName  string
		expectedLevel int
		expectedBonus int
	}{
		{0, "Новичок", 1, 0},
		{49_999, "Новичок", 1, 0},
		{50_000, "Воркер", 2, 2},
		{99_999, "Воркер", 2, 2},
		{100_000, "Профи", 3, 5},
		{149_999, "Профи", 3, 5},
		{150_000, "Эксперт", 4, 7},
		{199_999, "Эксперт", 4, 7},
		{200_000, "Легенда", 5, 10},
		{1_000_000, "Легенда", 5, 10},
	}

	for _, tc := range testCases {
		info := For(d(tc.total))
		assert.Equal(t, tc.expectedName, info.Name, "total=%d", tc.total)
		assert.Equal(t, tc.expectedLevel, info.Level, "total=%d", tc.total)
		assert.Equal(t, tc.expectedBonus, info.Bonus, "total=%d", tc.total)
	}
}

func TestForNegativeTotalClamped(t *testing.T) {
	info := For(d(-500))
	assert.Equal(t, "Новичок", info.Name)
	assert.Equal(t, float64(0), info.Progress)
}

func TestForProgress(t *testing.T) {
	// Середина первой полосы: (25000-0)/(49999-0+1)*100 = 50
	info := For(d(25_000))
	assert.InDelta(t, 50.0, info.Progress, 0.01)
	assert.True(t, info.ToNext.Equal(d(25_000)))

	// Top tier is always at 100%
	top := For(d(500_000))
	assert.Equal(t, float64(100), top.Progress)
	assert.True(t, top.ToNext.IsZero())
}

func TestCheckRankUp(t *testing.T) {
	up := CheckRankUp(d(49_999), d(50_000))
	require.NotNil(t, up)
	assert.Equal(t, "Воркер", up.Name)
	assert.Equal(t, 2, up.Level)

	assert.Nil(t, CheckRankUp(d(50_000), d(60_000)), "no crossing within the same tier")
	assert.Nil(t, CheckRankUp(d(60_000), d(55_000)), "rank down is not reported")
}

func TestCheckRankUpMultiTierJumpReportsFinalTier(t *testing.T) {
	up := CheckRankUp(d(0), d(150_000))
	require.NotNil(t, up)
	assert.Equal(t, "Эксперт", up.Name)
	assert.Equal(t, 4, up.Level)
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(0, 10))
	assert.Equal(t, "█████░░░░░", ProgressBar(50, 10))
	assert.Equal(t, "██████████", ProgressBar(100, 10))
	assert.Equal(t, "██████████", ProgressBar(250, 10), "clamped above 100")
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(-5, 10), "clamped below 0")
}

func TestRewardMessageFallback(t *testing.T) {
	assert.NotEmpty(t, RewardMessage(Tier{Level: 2}))
	assert.Equal(t, "🎉 Поздравляем с повышением ранга!", RewardMessage(Tier{Level: 1}))
}
