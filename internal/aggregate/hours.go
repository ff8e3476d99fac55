package aggregate

import (
	"math"
	"strconv"
)

// StandardWorkingMinutes は1日の所定労働時間（7.5時間）。
const StandardWorkingMinutes = 450

// SplitOvertime は控除後の分数を所定内と残業に分ける。
// working + overtime は常にnetに等しく、workingはStandardWorkingMinutesを超えない。
func SplitOvertime(net int) (working, overtime int) {
	if net < 0 {
		net = 0
	}
	if net <= StandardWorkingMinutes {
		return net, 0
	}
	return StandardWorkingMinutes, net - StandardWorkingMinutes
}

// RoundHours は分数を小数点以下2桁に丸めた時間数にする。
func RoundHours(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}

// FormatHours は分数を "7.5h" のような最小表現の時間表示にする。
func FormatHours(minutes int) string {
	return strconv.FormatFloat(RoundHours(minutes), 'f', -1, 64) + "h"
}
