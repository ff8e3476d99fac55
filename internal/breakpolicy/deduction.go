package breakpolicy

import "github.com/hitoshi/kintai/internal/model"

// 労働基準法34条に基づく休憩時間の閾値（分）。
const (
	sixHours   = 6 * 60
	eightHours = 8 * 60

	shortBreak = 45
	longBreak  = 60
)

// DeductFunc は総労働分数から休憩控除後の分数を求める関数。
type DeductFunc func(gross int) int

// StandardDeduction は標準の休憩控除表を適用する。
// 8時間を超える場合は60分、6時間を超える場合は45分を控除し、それ以外はそのまま返す。
func StandardDeduction(gross int) int {
	switch {
	case gross > eightHours:
		return gross - longBreak
	case gross > sixHours:
		return gross - shortBreak
	default:
		return gross
	}
}

// Apply はポリシーに従って控除後の分数を返す。
// 控除除外のユーザーは総分数をそのまま使う。deductがnilの場合は標準控除を使う。
func Apply(policy model.BreakPolicy, gross int, deduct DeductFunc) int {
	if gross <= 0 {
		return 0
	}
	if policy.ExcludeBreakDeduction {
		return gross
	}
	if deduct == nil {
		deduct = StandardDeduction
	}
	return deduct(gross)
}

// Policies はユーザーキーごとの休憩控除ポリシーと控除関数の組。
// 登録のないユーザーは控除の対象になる。ゼロ値は全員に標準控除を適用する。
type Policies struct {
	byUser map[string]model.BreakPolicy
	deduct DeductFunc
}

// NewPolicies はPoliciesを生成する。deductがnilの場合は標準控除を使う。
func NewPolicies(byUser map[string]model.BreakPolicy, deduct DeductFunc) Policies {
	return Policies{byUser: byUser, deduct: deduct}
}

// Excluded はユーザーが休憩控除の対象外かを返す。
func (p Policies) Excluded(userKey string) bool {
	return p.byUser[userKey].ExcludeBreakDeduction
}

// NetMinutes はユーザーの1日の総分数に控除関数を適用した分数を返す。
func (p Policies) NetMinutes(userKey string, gross int) int {
	return Apply(p.byUser[userKey], gross, p.deduct)
}
