// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// PunchRepository は未正規化の打刻ペイロードの永続化インターフェース。
type PunchRepository interface {
	// ListRawByWorkDate は fromDate <= work_date < toDate の打刻を返す。
	// 日付は "YYYY-MM-DD" の文字列で比較し、recorded_at、idの昇順に並べる。
	ListRawByWorkDate(ctx context.Context, fromDate, toDate string) ([]model.RawPunch, error)

	// Insert は打刻を同一トランザクションで保存する。
	Insert(ctx context.Context, punches []model.RawPunch) error

	// DeleteOlderThan はrecorded_atがbeforeより古い打刻を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// UserRepository は作業者マスタの参照インターフェース。
type UserRepository interface {
	// FindBreakPolicy はレコードID、数値ID、氏名の順に一致する作業者のポリシーを返す。
	// 見つからない場合はnilを返す。
	FindBreakPolicy(ctx context.Context, key string) (*model.BreakPolicy, error)

	// ListNames はレコードIDと数値IDから氏名を引くマップを返す。
	ListNames(ctx context.Context) (map[string]string, error)
}

// SiteRepository は現場マスタの永続化インターフェース。
type SiteRepository interface {
	// ListSites は現場IDをキーにした現場マスタを返す。
	ListSites(ctx context.Context) (map[string]model.Site, error)

	// Upsert は現場を一括でUPSERTし、反映件数を返す。
	Upsert(ctx context.Context, sites []model.Site) (int64, error)
}

// DailyReportRepository は日報の永続化インターフェース。
type DailyReportRepository interface {
	// ListByUserName は指定した氏名の日報を返す。
	ListByUserName(ctx context.Context, userName string) ([]model.DailyReportRecord, error)

	// Upsert は日報を同一トランザクションでUPSERTする。
	Upsert(ctx context.Context, records []model.DailyReportRecord) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
