package ranks

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is one cumulative-profit band. Max < 0 means the band is
// unbounded from above.
type Tier struct {
	Name  string
	Emoji string
	Min   int64
	Max   int64
	Bonus int
	Level int
}

// Unbounded marks the top tier's upper bound.
const Unbounded int64 = -1

var tiers = []Tier{
	{Name: "Новичок", Emoji: "🌱", Min: 0, Max: 49_999, Bonus: 0, Level: 1},
	{Name: "Воркер", Emoji: "⚡", Min: 50_000, Max: 99_999, Bonus: 2, Level: 2},
	{Name: "Профи", Emoji: "💎", Min: 100_000, Max: 149_999, Bonus: 5, Level: 3},
	{Name: "Эксперт", Emoji: "👑", Min: 150_000, Max: 199_999, Bonus: 7, Level: 4},
	{Name: "Легенда", Emoji: "🔥", Min: 200_000, Max: Unbounded, Bonus: 10, Level: 5},
}

// Info describes a worker's position within their current tier
type Info struct {
	Tier
	Progress float64
	ToNext   decimal.Decimal
}

// All returns the ordered tier table
func All() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// For returns rank information for a cumulative profit total.
// Negative totals are clamped to zero.
func For(total decimal.Decimal) Info {
	if total.IsNegative() {
		total = decimal.Zero
	}

	for _, t := range tiers {
		min := decimal.NewFromInt(t.Min)
		if t.Max == Unbounded {
			if total.GreaterThanOrEqual(min) {
				return Info{Tier: t, Progress: 100, ToNext: decimal.Zero}
			}
			continue
		}

		max := decimal.NewFromInt(t.Max)
		if total.GreaterThanOrEqual(min) && total.LessThanOrEqual(max) {
			// Width is max-min+1 so that the progress reaches 100%
			// only at the next tier's lower bound
			width := max.Sub(min).Add(decimal.NewFromInt(1))
			progress, _ := total.Sub(min).Div(width).Mul(decimal.NewFromInt(100)).Float64()
			toNext := max.Add(decimal.NewFromInt(1)).Sub(total)
			return Info{Tier: t, Progress: progress, ToNext: toNext}
		}
	}

	return Info{Tier: tiers[0], Progress: 0, ToNext: decimal.NewFromInt(tiers[0].Max + 1)}
}

// CheckRankUp returns the new tier if newTotal crosses into a higher
// tier than oldTotal, nil otherwise. A jump over several tiers reports
// only the tier reached.
func CheckRankUp(oldTotal, newTotal decimal.Decimal) *Tier {
	oldInfo := For(oldTotal)
	newInfo := For(newTotal)
	if newInfo.Level > oldInfo.Level {
		t := newInfo.Tier
		return &t
	}
	return nil
}

// Badge returns the emoji-prefixed rank name for a total
func Badge(total decimal.Decimal) string {
	info := For(total)
	return info.Emoji + " " + info.Name
}

// ProgressBar renders a text progress bar of the given length
func ProgressBar(progress float64, length int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := int(progress / 100 * float64(length))
	return strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
}

var rewardMessages = map[int]string{
	2: "🎉 <b>ПОЗДРАВЛЯЕМ С ПОВЫШЕНИЕМ!</b>\n\n" +
		"⚡ Вы достигли ранга <b>ВОРКЕР</b>!\n\n" +
		"🎁 <b>Награды:</b>\n" +
		"💰 +2% к каждому профиту\n" +
		"🔓 Доступ к расширенной статистике\n\n" +
		"Продолжайте в том же духе! 💪",
	3: "🎊 <b>НЕВЕРОЯТНО! НОВЫЙ РАНГ!</b>\n\n" +
		"💎 Вы стали <b>ПРОФИ</b>!\n\n" +
		"🎁 <b>Награды:</b>\n" +
		"💰 +5% к каждому профиту\n" +
		"👨‍🏫 Возможность стать наставником\n\n" +
		"Вы в топе! 🚀",
	4: "👑 <b>ЛЕГЕНДАРНОЕ ДОСТИЖЕНИЕ!</b>\n\n" +
		"👑 Вы достигли ранга <b>ЭКСПЕРТ</b>!\n\n" +
		"🎁 <b>Награды:</b>\n" +
		"💰 +7% к каждому профиту\n" +
		"💼 Доступ к VIP сервисам\n\n" +
		"Вы элита команды! 👑",
	5: "🔥 <b>МАКСИМАЛЬНЫЙ РАНГ ДОСТИГНУТ!</b>\n\n" +
		"🔥 Вы стали <b>ЛЕГЕНДОЙ</b>!\n\n" +
		"🎁 <b>Награды:</b>\n" +
		"💰 +10% к каждому профиту\n" +
		"🎖️ Место в зале славы\n\n" +
		"Вы достигли вершины! 🏔️",
}

// RewardMessage returns the congratulation text for reaching a tier
func RewardMessage(t Tier) string {
	if msg, ok := rewardMessages[t.Level]; ok {
		return msg
	}
	return "🎉 Поздравляем с повышением ранга!"
}
