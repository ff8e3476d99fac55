package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/kintai/internal/attendance"
	"github.com/hitoshi/kintai/internal/model"
)

// maxIngestBodySize は打刻取り込みリクエストボディの上限（バイト）。
const maxIngestBodySize = 1 << 20

// PunchIngesterInterface は打刻取り込みハンドラーが必要とするサービスインターフェース。
type PunchIngesterInterface interface {
	Ingest(ctx context.Context, payloads []json.RawMessage) (*attendance.IngestResult, error)
}

// PunchHandler は打刻取り込みのHTTPハンドラー。
type PunchHandler struct {
	service PunchIngesterInterface
}

// NewPunchHandler はPunchHandlerを生成する。
func NewPunchHandler(service PunchIngesterInterface) *PunchHandler {
	return &PunchHandler{service: service}
}

// Ingest は生の打刻ペイロードを受け付ける。
// ボディは打刻オブジェクト1件、またはその配列。
// POST /api/punches
func (h *PunchHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handleServiceError(w, r, model.NewInvalidRequestError("リクエストボディが大きすぎます"))
			return
		}
		handleServiceError(w, r, model.NewInvalidRequestError("リクエストボディを読み取れません"))
		return
	}

	payloads, err := splitPayloads(body)
	if err != nil {
		handleServiceError(w, r, model.NewInvalidRequestError(err.Error()))
		return
	}

	result, err := h.service.Ingest(r.Context(), payloads)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{
		Accepted: result.Accepted,
		Dropped:  result.Dropped,
	})
}

// splitPayloads はボディを打刻ごとのJSONに分割する。
func splitPayloads(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("空のリクエストボディです")
	}

	if trimmed[0] == '[' {
		var payloads []json.RawMessage
		if err := json.Unmarshal(trimmed, &payloads); err != nil {
			return nil, errors.New("打刻の配列として解析できません")
		}
		if len(payloads) == 0 {
			return nil, errors.New("打刻が1件も含まれていません")
		}
		return payloads, nil
	}

	if !json.Valid(trimmed) {
		return nil, errors.New("JSONとして解析できません")
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, nil
}
