// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// PunchType は打刻種別（出勤/退勤）を表す。
type PunchType string

const (
	// PunchIn は出勤打刻。
	PunchIn PunchType = "IN"
	// PunchOut は退勤打刻。
	PunchOut PunchType = "OUT"
)

// PunchRecord は正規化済みの打刻レコード。
// 上流のフィールド名の揺れを吸収した後の唯一の表現で、集計処理はこの型だけを扱う。
type PunchRecord struct {
	ID          string
	Type        PunchType
	TimestampMs int64 // UTCのエポックミリ秒

	// UserKey は集計上のユーザー識別子。
	// 明示的なユーザーID、表示名、"unknown-user" の順で決まる。
	UserKey      string
	UserID       string
	UserName     string
	UserRecordID string

	SiteID      string
	SiteName    *string
	MachineID   *string
	MachineName *string

	// WorkDescriptions は重複を除いた作業内容（出現順）。
	WorkDescriptions []string
}

// Time はTimestampMsをUTCのtime.Timeとして返す。
func (p PunchRecord) Time() time.Time {
	return time.UnixMilli(p.TimestampMs).UTC()
}

// RawPunch はpunchesテーブルに保存された未正規化の打刻ペイロード。
type RawPunch struct {
	ID         string
	Payload    json.RawMessage
	WorkDate   string // JSTの暦日 "YYYY-MM-DD"
	RecordedAt time.Time
	CreatedAt  time.Time
}

// UnmatchedPunch は対応する打刻が見つからなかった打刻の警告。
// 手作業での突き合わせに必要な識別情報だけを保持する。
type UnmatchedPunch struct {
	Kind        PunchType
	RecordID    string
	UserKey     string
	TimestampMs int64
}
