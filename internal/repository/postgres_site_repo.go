package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresSiteRepo はPostgreSQLを使用した現場マスタリポジトリ。
type PostgresSiteRepo struct {
	db *sql.DB
}

// NewPostgresSiteRepo はPostgresSiteRepoを生成する。
func NewPostgresSiteRepo(db *sql.DB) *PostgresSiteRepo {
	return &PostgresSiteRepo{db: db}
}

// ListSites は現場IDをキーにした現場マスタを返す。
func (r *PostgresSiteRepo) ListSites(ctx context.Context) (map[string]model.Site, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, client_name, updated_at FROM sites`,
	)
	if err != nil {
		return nil, fmt.Errorf("現場マスタの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	sites := make(map[string]model.Site)
	for rows.Next() {
		var s model.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.ClientName, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("現場のスキャンに失敗しました: %w", err)
		}
		sites[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("現場マスタの読み込み中にエラーが発生しました: %w", err)
	}

	return sites, nil
}

// Upsert は現場を1文で一括UPSERTし、反映件数を返す。
func (r *PostgresSiteRepo) Upsert(ctx context.Context, sites []model.Site) (int64, error) {
	if len(sites) == 0 {
		return 0, nil
	}

	ids := make([]string, len(sites))
	names := make([]string, len(sites))
	clients := make([]string, len(sites))
	for i, s := range sites {
		ids[i] = s.ID
		names[i] = s.Name
		clients[i] = s.ClientName
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO sites (id, name, client_name, updated_at)
		 SELECT u.id, u.name, u.client_name, now()
		 FROM unnest($1::text[], $2::text[], $3::text[]) AS u(id, name, client_name)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     client_name = EXCLUDED.client_name,
		     updated_at = now()
		 WHERE sites.name IS DISTINCT FROM EXCLUDED.name
		    OR sites.client_name IS DISTINCT FROM EXCLUDED.client_name`,
		pq.Array(ids), pq.Array(names), pq.Array(clients),
	)
	if err != nil {
		return 0, fmt.Errorf("現場マスタのUPSERTに失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("反映件数の取得に失敗しました: %w", err)
	}
	return affected, nil
}
