package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresPunchRepo はPostgreSQLを使用した打刻リポジトリ。
type PostgresPunchRepo struct {
	db *sql.DB
}

// NewPostgresPunchRepo はPostgresPunchRepoを生成する。
func NewPostgresPunchRepo(db *sql.DB) *PostgresPunchRepo {
	return &PostgresPunchRepo{db: db}
}

// ListRawByWorkDate は fromDate <= work_date < toDate の打刻を recorded_at、id の昇順で返す。
func (r *PostgresPunchRepo) ListRawByWorkDate(ctx context.Context, fromDate, toDate string) ([]model.RawPunch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, payload, work_date, recorded_at, created_at
		 FROM punches
		 WHERE work_date >= $1 AND work_date < $2
		 ORDER BY recorded_at ASC, id ASC`,
		fromDate, toDate,
	)
	if err != nil {
		return nil, fmt.Errorf("打刻の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var punches []model.RawPunch
	for rows.Next() {
		var p model.RawPunch
		var payload []byte
		if err := rows.Scan(&p.ID, &payload, &p.WorkDate, &p.RecordedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("打刻のスキャンに失敗しました: %w", err)
		}
		p.Payload = payload
		punches = append(punches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("打刻の読み込み中にエラーが発生しました: %w", err)
	}

	return punches, nil
}

// Insert は打刻を同一トランザクションで保存する。IDが空の打刻にはUUIDを採番する。
func (r *PostgresPunchRepo) Insert(ctx context.Context, punches []model.RawPunch) error {
	if len(punches) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO punches (id, payload, work_date, recorded_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
	)
	if err != nil {
		return fmt.Errorf("打刻INSERT文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i := range punches {
		p := &punches[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, p.ID, []byte(p.Payload), p.WorkDate, p.RecordedAt, p.CreatedAt); err != nil {
			return fmt.Errorf("打刻の保存に失敗しました (id=%s): %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// DeleteOlderThan はrecorded_atがbeforeより古い打刻を削除し、削除件数を返す。
func (r *PostgresPunchRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM punches WHERE recorded_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("古い打刻の削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected, nil
}
