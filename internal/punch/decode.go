package punch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/kintai/internal/model"
)

// Decode は保存済みのJSONペイロードをフィールドマップに復元する。
// 数値はjson.Numberのまま保持し、大きなIDの精度を落とさない。
func Decode(payload json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("打刻ペイロードの解析に失敗しました: %w", err)
	}
	return raw, nil
}

// DecodeRows は保存済みの打刻行をフィールドマップに復元する。
// 解析できない行は破棄件数に数える。
func DecodeRows(rows []model.RawPunch) ([]map[string]any, int) {
	out := make([]map[string]any, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		raw, err := Decode(row.Payload)
		if err != nil || raw == nil {
			dropped++
			continue
		}
		out = append(out, raw)
	}
	return out, dropped
}
