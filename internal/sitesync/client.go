// Package sitesync は外部の現場マスタ（Airtable形式のJSON API）を取得し、
// sitesテーブルへ反映する同期ジョブを提供する。
package sitesync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/kintai/internal/model"
)

const (
	// maxResponseSize は1ページあたりのレスポンスボディの上限（バイト）。
	maxResponseSize = 5 << 20
	// maxPages は1回の同期で辿るページ数の上限。offsetが循環した場合の停止条件。
	maxPages = 100
)

// フィールド名の候補。先に見つかったものを使う。
var (
	nameFields   = []string{"name", "siteName", "現場名"}
	clientFields = []string{"clientName", "client", "取引先名"}
)

// listResponse は一覧APIのレスポンス。
type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset"`
}

type record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Client は現場マスタAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	token      string
}

// NewClient はClientの新しいインスタンスを生成する。
// tokenが空でない場合はBearerトークンとして送信する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, token string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		token:      token,
	}
}

// FetchSites は全ページを辿って現場マスタを取得する。
// 名前のないレコードは読み飛ばす。
func (c *Client) FetchSites(ctx context.Context) ([]model.Site, error) {
	var sites []model.Site
	offset := ""
	skipped := 0

	for page := 0; page < maxPages; page++ {
		resp, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}

		for _, rec := range resp.Records {
			site, ok := toSite(rec)
			if !ok {
				skipped++
				continue
			}
			sites = append(sites, site)
		}

		if resp.Offset == "" {
			if skipped > 0 {
				c.logger.Warn("名前のない現場レコードを読み飛ばしました", slog.Int("skipped", skipped))
			}
			return sites, nil
		}
		offset = resp.Offset
	}

	return nil, fmt.Errorf("現場マスタのページ数が上限 %d を超えました", maxPages)
}

func (c *Client) fetchPage(ctx context.Context, offset string) (*listResponse, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	if offset != "" {
		q := reqURL.Query()
		q.Set("offset", offset)
		reqURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "kintai-sitesync/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("現場マスタAPIの呼び出しに失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("現場マスタAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("現場マスタAPIがエラーステータスを返しました", slog.Int("http_status", resp.StatusCode))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("レスポンスが上限 %d バイトを超えました", maxResponseSize)
	}

	var out listResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.logger.Error("現場マスタAPIのレスポンスのパースに失敗しました", slog.String("error", err.Error()))
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &out, nil
}

// StatusError は現場マスタAPIが200以外を返した場合のエラー。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("現場マスタAPIがステータス %d を返しました", e.StatusCode)
}

func toSite(rec record) (model.Site, bool) {
	name := fieldString(rec.Fields, nameFields)
	if rec.ID == "" || name == "" {
		return model.Site{}, false
	}
	return model.Site{
		ID:         rec.ID,
		Name:       name,
		ClientName: fieldString(rec.Fields, clientFields),
	}, true
}

// fieldString は候補キーのうち最初に値が得られたものを文字列で返す。
// ルックアップ項目の配列は先頭の要素を使う。
func fieldString(fields map[string]any, keys []string) string {
	for _, key := range keys {
		if s := scalar(fields[key]); s != "" {
			return s
		}
	}
	return ""
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s := scalar(item); s != "" {
				return s
			}
		}
	}
	return ""
}
