package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresWorkerRepo はPostgreSQLを使用した作業者マスタリポジトリ。
type PostgresWorkerRepo struct {
	db *sql.DB
}

// NewPostgresWorkerRepo はPostgresWorkerRepoを生成する。
func NewPostgresWorkerRepo(db *sql.DB) *PostgresWorkerRepo {
	return &PostgresWorkerRepo{db: db}
}

// FindBreakPolicy はレコードID、数値ID、氏名の順に一致する作業者のポリシーを返す。
// 見つからない場合はnilを返す。
func (r *PostgresWorkerRepo) FindBreakPolicy(ctx context.Context, key string) (*model.BreakPolicy, error) {
	var policy model.BreakPolicy
	err := r.db.QueryRowContext(ctx,
		`SELECT exclude_break_deduction
		 FROM workers
		 WHERE id = $1 OR numeric_id::text = $1 OR name = $1
		 ORDER BY CASE
		     WHEN id = $1 THEN 0
		     WHEN numeric_id::text = $1 THEN 1
		     ELSE 2
		 END, id
		 LIMIT 1`,
		key,
	).Scan(&policy.ExcludeBreakDeduction)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("休憩控除ポリシーの取得に失敗しました: %w", err)
	}
	return &policy, nil
}

// ListNames はレコードIDと数値IDから氏名を引くマップを返す。
func (r *PostgresWorkerRepo) ListNames(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, numeric_id, name FROM workers`)
	if err != nil {
		return nil, fmt.Errorf("作業者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		var numericID sql.NullInt64
		if err := rows.Scan(&id, &numericID, &name); err != nil {
			return nil, fmt.Errorf("作業者のスキャンに失敗しました: %w", err)
		}
		names[id] = name
		if numericID.Valid {
			names[strconv.FormatInt(numericID.Int64, 10)] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("作業者の読み込み中にエラーが発生しました: %w", err)
	}

	return names, nil
}
