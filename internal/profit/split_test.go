package profit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func assertEqualDec(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual),
		"expected %s, got %s", expected, actual.String())
}

func TestComputeSplit_NoBonusNoReferrer(t *testing.T) {
	s := ComputeSplit(dec("1000"), 50, 0, false, 5, nil, "CPA")

	assertEqualDec(t, "500", s.Base)
	assertEqualDec(t, "0", s.Bonus)
	assertEqualDec(t, "0", s.ReferralCut)
	assertEqualDec(t, "0", s.MentorCut)
	assertEqualDec(t, "500", s.WorkerNet)
}

func TestComputeSplit_RankBonus(t *testing.T) {
	s := ComputeSplit(dec("1000"), 50, 10, false, 5, nil, "CPA")

	assertEqualDec(t, "500", s.Base)
	assertEqualDec(t, "50", s.Bonus)
	assertEqualDec(t, "550", s.WorkerNet)
}

func TestComputeSplit_MentorNoLeakage(t *testing.T) {
	mentor := &MentorTerms{MentorID: 1, MentorUserID: 10, ServiceName: "CPA", Percent: 20}
	s := ComputeSplit(dec("1000"), 50, 10, false, 5, mentor, "CPA")

	assertEqualDec(t, "550", s.WithBonus)
	assertEqualDec(t, "110", s.MentorCut)
	assertEqualDec(t, "440", s.WorkerNet)

	// workerNet + mentorCut == withBonus, exactly
	assert.True(t, s.WorkerNet.Add(s.MentorCut).Equal(s.WithBonus))
}

func TestComputeSplit_MentorServiceMismatchZeroesCut(t *testing.T) {
	mentor := &MentorTerms{MentorID: 1, MentorUserID: 10, ServiceName: "Крипта", Percent: 20}
	s := ComputeSplit(dec("1000"), 50, 0, false, 5, mentor, "CPA")

	assertEqualDec(t, "0", s.MentorCut)
	assertEqualDec(t, "500", s.WorkerNet)
}

func TestComputeSplit_MentorServiceMatchCaseInsensitive(t *testing.T) {
	mentor := &MentorTerms{MentorID: 1, MentorUserID: 10, ServiceName: "cpa", Percent: 20}
	s := ComputeSplit(dec("1000"), 50, 0, false, 5, mentor, "CPA")

	assertEqualDec(t, "100", s.MentorCut)
}

func TestComputeSplit_ReferralCutFromGrossNotFromWorkerNet(t *testing.T) {
	s := ComputeSplit(dec("1000"), 50, 0, true, 5, nil, "CPA")

	// 5% of the gross amount, not of the worker's share
	assertEqualDec(t, "50", s.ReferralCut)
	// Funded by the team side: worker net is untouched
	assertEqualDec(t, "500", s.WorkerNet)
}

func TestComputeSplit_ZeroWorkerPercent(t *testing.T) {
	s := ComputeSplit(dec("1000"), 0, 10, false, 5, nil, "CPA")

	assertEqualDec(t, "0", s.Base)
	assertEqualDec(t, "0", s.Bonus)
	assertEqualDec(t, "0", s.WorkerNet)
}

func TestComputeSplit_EndToEnd(t *testing.T) {
	// Worker with a referrer and a matching mentor:
	// gross=2000, worker 60%, rank bonus 5%, mentor 30%, referral 5%
	mentor := &MentorTerms{MentorID: 1, MentorUserID: 10, ServiceName: "CPA", Percent: 30}
	s := ComputeSplit(dec("2000"), 60, 5, true, 5, mentor, "CPA")

	assertEqualDec(t, "1200", s.Base)
	assertEqualDec(t, "60", s.Bonus)
	assertEqualDec(t, "1260", s.WithBonus)
	assertEqualDec(t, "378", s.MentorCut)
	assertEqualDec(t, "882", s.WorkerNet)
	assertEqualDec(t, "100", s.ReferralCut)
}

func TestComputeSplit_NetNeverExceedsWithBonus(t *testing.T) {
	for _, percent := range []int{0, 10, 50, 100} {
		for _, bonus := range []int{0, 2, 5, 7, 10} {
			s := ComputeSplit(dec("12345.67"), percent, bonus, true, 5,
				&MentorTerms{ServiceName: "CPA", Percent: 25}, "CPA")
			assert.True(t, s.WorkerNet.LessThanOrEqual(s.WithBonus),
				"percent=%d bonus=%d", percent, bonus)
			assert.False(t, s.WorkerNet.IsNegative())
		}
	}
}

func TestComputeSplit_NoRoundingDrift(t *testing.T) {
	// Amounts with cents must split without binary-float drift
	s := ComputeSplit(dec("0.03"), 50, 0, false, 5, nil, "CPA")
	assertEqualDec(t, "0.015", s.WorkerNet)
	assert.Equal(t, "0.02", s.WorkerNet.Round(2).StringFixed(2))
}
