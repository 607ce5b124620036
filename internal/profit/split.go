package profit

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MentorTerms carries the mentor relationship data needed to compute
// a mentor cut. ServiceName is the service the mentor is registered
// for; the cut applies only when it matches the profit's service.
type MentorTerms struct {
	MentorID     int64
	MentorUserID int64
	Username     string
	ServiceName  string
	Percent      int
}

// Split is the result of distributing a gross profit amount
type Split struct {
	Base        decimal.Decimal
	Bonus       decimal.Decimal
	WithBonus   decimal.Decimal
	ReferralCut decimal.Decimal
	MentorCut   decimal.Decimal
	WorkerNet   decimal.Decimal
}

// percentOf returns amount * percent / 100 without rounding
func percentOf(amount decimal.Decimal, percent int) decimal.Decimal {
	return amount.Mul(decimal.New(int64(percent), -2))
}

// ComputeSplit distributes a gross amount between the worker, an
// optional referrer and an optional mentor. The computation order is
// fixed:
//
//  1. base = gross * workerPercent
//  2. bonus = base * rankBonusPercent
//  3. withBonus = base + bonus
//  4. referralCut = gross * referralPercent (only with a referrer) —
//     taken from the gross amount, funded by the team side, and not
//     subtracted from the worker's net
//  5. mentorCut = withBonus * mentor.Percent, only when the mentor's
//     registered service matches the profit's service
//  6. workerNet = withBonus - mentorCut
//
// No rounding happens here; callers round to 2 decimals at
// persistence and display time.
func ComputeSplit(gross decimal.Decimal, workerPercent, rankBonusPercent int,
	hasReferrer bool, referralPercent int, mentor *MentorTerms, serviceName string) Split {

	base := percentOf(gross, workerPercent)
	bonus := percentOf(base, rankBonusPercent)
	withBonus := base.Add(bonus)

	referralCut := decimal.Zero
	if hasReferrer {
		referralCut = percentOf(gross, referralPercent)
	}

	mentorCut := decimal.Zero
	if mentorEligible(mentor, serviceName) {
		mentorCut = percentOf(withBonus, mentor.Percent)
	}

	return Split{
		Base:        base,
		Bonus:       bonus,
		WithBonus:   withBonus,
		ReferralCut: referralCut,
		MentorCut:   mentorCut,
		WorkerNet:   withBonus.Sub(mentorCut),
	}
}

// mentorEligible reports whether the mentor commission applies. A
// service mismatch silently zeroes the cut; this is deliberate policy,
// not an error condition.
func mentorEligible(mentor *MentorTerms, serviceName string) bool {
	if mentor == nil || mentor.Percent <= 0 {
		return false
	}
	return strings.EqualFold(mentor.ServiceName, serviceName)
}
