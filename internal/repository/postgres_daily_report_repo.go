package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresDailyReportRepo はPostgreSQLを使用した日報リポジトリ。
type PostgresDailyReportRepo struct {
	db *sql.DB
}

// NewPostgresDailyReportRepo はPostgresDailyReportRepoを生成する。
func NewPostgresDailyReportRepo(db *sql.DB) *PostgresDailyReportRepo {
	return &PostgresDailyReportRepo{db: db}
}

// ListByUserName は指定した氏名の日報を返す。並び順は呼び出し側で決める。
func (r *PostgresDailyReportRepo) ListByUserName(ctx context.Context, userName string) ([]model.DailyReportRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_key, user_name, policy_key, year, month, day,
		        site_id, site_name, site_name_rollup, client_name, client_name_rollup,
		        clock_in_ms, clock_in_at, clock_out_ms, clock_out_at,
		        total_minutes, updated_at
		 FROM daily_reports
		 WHERE user_name = $1`,
		userName,
	)
	if err != nil {
		return nil, fmt.Errorf("日報の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []model.DailyReportRecord
	for rows.Next() {
		var rec model.DailyReportRecord
		var year, month, day sql.NullInt32
		var clockIn, clockOut sql.NullInt64
		if err := rows.Scan(
			&rec.ID, &rec.UserKey, &rec.UserName, &rec.PolicyKey, &year, &month, &day,
			&rec.SiteID, &rec.SiteName, &rec.SiteNameRollup, &rec.ClientName, &rec.ClientNameRollup,
			&clockIn, &rec.ClockInAt, &clockOut, &rec.ClockOutAt,
			&rec.TotalMinutes, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("日報のスキャンに失敗しました: %w", err)
		}
		rec.Year = nullIntPtr(year)
		rec.Month = nullIntPtr(month)
		rec.Day = nullIntPtr(day)
		rec.ClockInMs = nullInt64Ptr(clockIn)
		rec.ClockOutMs = nullInt64Ptr(clockOut)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日報の読み込み中にエラーが発生しました: %w", err)
	}

	return records, nil
}

// Upsert は日報を同一トランザクションでUPSERTする。
// 集約済みの現場名・取引先名は上書きせず、既存の値を維持する。
func (r *PostgresDailyReportRepo) Upsert(ctx context.Context, records []model.DailyReportRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO daily_reports (
		     id, user_key, user_name, policy_key, year, month, day,
		     site_id, site_name, client_name,
		     clock_in_ms, clock_in_at, clock_out_ms, clock_out_at,
		     total_minutes, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		 ON CONFLICT (id) DO UPDATE
		 SET user_name = EXCLUDED.user_name,
		     policy_key = EXCLUDED.policy_key,
		     site_id = EXCLUDED.site_id,
		     site_name = EXCLUDED.site_name,
		     client_name = EXCLUDED.client_name,
		     clock_in_ms = EXCLUDED.clock_in_ms,
		     clock_in_at = EXCLUDED.clock_in_at,
		     clock_out_ms = EXCLUDED.clock_out_ms,
		     clock_out_at = EXCLUDED.clock_out_at,
		     total_minutes = EXCLUDED.total_minutes,
		     updated_at = now()`,
	)
	if err != nil {
		return fmt.Errorf("日報UPSERT文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.UserKey, rec.UserName, rec.PolicyKey,
			intPtrValue(rec.Year), intPtrValue(rec.Month), intPtrValue(rec.Day),
			rec.SiteID, rec.SiteName, rec.ClientName,
			int64PtrValue(rec.ClockInMs), rec.ClockInAt, int64PtrValue(rec.ClockOutMs), rec.ClockOutAt,
			rec.TotalMinutes,
		); err != nil {
			return fmt.Errorf("日報の保存に失敗しました (id=%s): %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}
