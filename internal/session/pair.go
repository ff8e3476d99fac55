// Package session は打刻列から勤務セッションを再構成する。
//
// ユーザーごとに打刻を (timestampMs, id) の昇順に並べ、「現在開いている出勤打刻」を
// 1枠だけ持ちながら走査する。出勤が続いた場合は前の出勤を未退勤セッションとして
// 確定させ、新しい出勤で枠を置き換える。対応する出勤がない退勤、または出勤以前の
// 時刻の退勤は対応なし（unmatched）として記録し、ペアにはしない。
package session

import (
	"math"
	"sort"
	"strings"

	"github.com/hitoshi/kintai/internal/model"
)

// workDescriptionSeparator は複数の作業内容を1つのラベルにする際の区切り文字。
const workDescriptionSeparator = ", "

// Result はPairの結果。
type Result struct {
	// Sessions はユーザーキー昇順、ユーザー内では確定順に並ぶ。
	Sessions []model.Session
	// Unmatched は対応する出勤がなかった退勤打刻。
	Unmatched []model.UnmatchedPunch
}

// Pair は複数ユーザーの打刻からセッションを再構成する。
// 入力の順序には依存せず、同じ打刻集合からは常に同じ結果を返す。
func Pair(punches []model.PunchRecord) Result {
	var res Result
	byUser := PartitionByUser(punches)
	for _, key := range SortedKeys(byUser) {
		pairUser(byUser[key], &res)
	}
	return res
}

// PartitionByUser は打刻をUserKeyごとに分け、各ユーザーの打刻を時系列に並べ替える。
// 入力スライスは変更しない。
func PartitionByUser(punches []model.PunchRecord) map[string][]model.PunchRecord {
	byUser := make(map[string][]model.PunchRecord)
	for _, p := range punches {
		byUser[p.UserKey] = append(byUser[p.UserKey], p)
	}
	for _, list := range byUser {
		SortPunches(list)
	}
	return byUser
}

// SortPunches は打刻を (timestampMs昇順, id昇順) に並べ替える。
// idによるタイブレークで同時刻の打刻にも全順序が付く。
func SortPunches(punches []model.PunchRecord) {
	sort.SliceStable(punches, func(i, j int) bool {
		if punches[i].TimestampMs != punches[j].TimestampMs {
			return punches[i].TimestampMs < punches[j].TimestampMs
		}
		return punches[i].ID < punches[j].ID
	})
}

// SortedKeys はマップのキーを昇順で返す。
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// pairUser は1ユーザー分の時系列順の打刻をセッションにする。
func pairUser(punches []model.PunchRecord, res *Result) {
	var open *model.PunchRecord

	for i := range punches {
		p := &punches[i]
		switch p.Type {
		case model.PunchIn:
			if open != nil {
				res.Sessions = append(res.Sessions, openSession(*open))
			}
			open = p
		case model.PunchOut:
			if open == nil || p.TimestampMs <= open.TimestampMs {
				res.Unmatched = append(res.Unmatched, model.UnmatchedPunch{
					Kind:        model.PunchOut,
					RecordID:    p.ID,
					UserKey:     p.UserKey,
					TimestampMs: p.TimestampMs,
				})
				continue
			}
			res.Sessions = append(res.Sessions, completedSession(*open, *p, punches))
			open = nil
		}
	}

	if open != nil {
		res.Sessions = append(res.Sessions, openSession(*open))
	}
}

// openSession は退勤のない出勤打刻を未退勤セッションにする。
func openSession(in model.PunchRecord) model.Session {
	return model.Session{
		UserKey: in.UserKey,
		StartMs: in.TimestampMs,
		StartID: in.ID,
		Attrs: model.SessionAttrs{
			SiteID:          in.SiteID,
			SiteName:        in.SiteName,
			MachineID:       in.MachineID,
			MachineName:     in.MachineName,
			WorkDescription: strings.Join(in.WorkDescriptions, workDescriptionSeparator),
		},
	}
}

// completedSession は出勤と退勤の組を完了セッションにする。
// 呼び出し側で out.TimestampMs > in.TimestampMs が保証されている。
func completedSession(in, out model.PunchRecord, userPunches []model.PunchRecord) model.Session {
	endMs := out.TimestampMs
	endID := out.ID
	minutes := DurationMinutes(in.TimestampMs, out.TimestampMs)

	return model.Session{
		UserKey:         in.UserKey,
		StartMs:         in.TimestampMs,
		EndMs:           &endMs,
		StartID:         in.ID,
		EndID:           &endID,
		DurationMinutes: &minutes,
		Attrs: model.SessionAttrs{
			SiteID:          firstNonEmpty(in.SiteID, out.SiteID),
			SiteName:        firstNonNil(in.SiteName, out.SiteName),
			MachineID:       firstNonNil(in.MachineID, out.MachineID),
			MachineName:     firstNonNil(in.MachineName, out.MachineName),
			WorkDescription: resolveWorkDescription(userPunches, in.TimestampMs, out.TimestampMs, out),
		},
	}
}

// DurationMinutes は2時刻間の分数を四捨五入で返す。負にはならない。
func DurationMinutes(startMs, endMs int64) int {
	minutes := int(math.Floor(float64(endMs-startMs)/60000 + 0.5))
	if minutes < 0 {
		return 0
	}
	return minutes
}

// resolveWorkDescription は [startMs, endMs] に含まれる打刻を新しい順に調べ、
// 最初に見つかった空でない作業内容を返す。見つからない場合は退勤打刻の作業内容を使う。
func resolveWorkDescription(userPunches []model.PunchRecord, startMs, endMs int64, closing model.PunchRecord) string {
	for i := len(userPunches) - 1; i >= 0; i-- {
		p := userPunches[i]
		if p.TimestampMs < startMs || p.TimestampMs > endMs {
			continue
		}
		if len(p.WorkDescriptions) > 0 {
			return strings.Join(p.WorkDescriptions, workDescriptionSeparator)
		}
	}
	return strings.Join(closing.WorkDescriptions, workDescriptionSeparator)
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
