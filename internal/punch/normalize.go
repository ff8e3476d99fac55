// Package punch は上流システムから受け取った打刻ペイロードの正規化を提供する。
//
// 上流のデータはエクスポート元ごとにフィールド名の綴りや形（文字列、配列、
// 参照テーブルの集約値）が揃っていないため、論理フィールドごとに候補キーの
// 順序付きリストを持ち、最初に空でない値が得られたキーを採用する。
package punch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/security"
)

// unknownUserKey はユーザーIDも表示名も得られない打刻のUserKey。
const unknownUserKey = "unknown-user"

// 論理フィールドごとの候補キー（優先順）。typeとtimestampは揺れを許さず固定キーで読む。
var (
	idKeys           = []string{"id", "recordId", "record_id"}
	userIDKeys       = []string{"userId", "userid", "user_id", "userId (from user)", "userid (from user)"}
	userNameKeys     = []string{"userName", "username", "user_name", "name (from user)", "userName (from user)"}
	userRecordIDKeys = []string{"userRecordId", "user_record_id", "user"}
	siteIDKeys       = []string{"siteId", "siteid", "site_id", "site"}
	siteNameKeys     = []string{"siteName", "sitename", "site_name", "siteName (from site)", "name (from site)"}
	machineIDKeys    = []string{"machineId", "machineid", "machine_id", "machineId (from machine)", "machineid (from machine)"}
	machineNameKeys  = []string{"machineName", "machinename", "machine_name", "machineName (from machine)", "name (from machine)"}
	workKeys         = []string{"workDescriptions", "workDescription", "work_description", "workDescription (from work)", "description"}
)

// objectValueKeys は参照配列内の小さなオブジェクトから値を取り出す際のキー（優先順）。
var objectValueKeys = []string{"name", "value", "text", "id"}

// timestampLayouts はtimestampとして受け付ける書式。タイムゾーンのないものはUTCとみなす。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalizer は生の打刻ペイロードをPunchRecordに変換する。
type Normalizer struct {
	sanitizer security.TextSanitizerService
}

// NewNormalizer はNormalizerを生成する。
func NewNormalizer(sanitizer security.TextSanitizerService) *Normalizer {
	return &Normalizer{sanitizer: sanitizer}
}

var defaultNormalizer = NewNormalizer(security.NewTextSanitizer())

// Normalize はデフォルトのNormalizerで1件の打刻を正規化する。
func Normalize(raw map[string]any) (model.PunchRecord, bool) {
	return defaultNormalizer.Normalize(raw)
}

// NormalizeAll はデフォルトのNormalizerで複数の打刻を正規化する。
func NormalizeAll(rows []map[string]any) ([]model.PunchRecord, int) {
	return defaultNormalizer.NormalizeAll(rows)
}

// Normalize は1件の打刻を正規化する。
// typeが "IN"/"OUT" 以外、またはtimestampが文字列でないか解析できない場合は
// falseを返す（エラーにはしない）。
func (n *Normalizer) Normalize(raw map[string]any) (model.PunchRecord, bool) {
	typ, _ := raw["type"].(string)
	if typ != string(model.PunchIn) && typ != string(model.PunchOut) {
		return model.PunchRecord{}, false
	}

	tsRaw, ok := raw["timestamp"].(string)
	if !ok {
		return model.PunchRecord{}, false
	}
	ts, ok := parseTimestamp(tsRaw)
	if !ok {
		return model.PunchRecord{}, false
	}
	ms := ts.UnixMilli()

	rec := model.PunchRecord{
		Type:        model.PunchType(typ),
		TimestampMs: ms,
	}

	if id, ok := firstMatch(raw, idKeys, nil); ok {
		rec.ID = id
	} else {
		rec.ID = fmt.Sprintf("%d-%s", ms, typ)
	}

	rec.UserID, _ = firstMatch(raw, userIDKeys, nil)
	rec.UserName, _ = firstMatch(raw, userNameKeys, nil)
	rec.UserRecordID, _ = firstMatch(raw, userRecordIDKeys, nil)
	switch {
	case rec.UserID != "":
		rec.UserKey = rec.UserID
	case rec.UserName != "":
		rec.UserKey = rec.UserName
	default:
		rec.UserKey = unknownUserKey
	}

	rec.SiteID, _ = firstMatch(raw, siteIDKeys, nil)
	rec.SiteName = optional(firstMatch(raw, siteNameKeys, nil))
	rec.MachineID = optional(firstMatch(raw, machineIDKeys, unwrapMachineID))
	rec.MachineName = optional(firstMatch(raw, machineNameKeys, nil))
	rec.WorkDescriptions = n.workDescriptions(raw)

	return rec, true
}

// NormalizeAll は複数の打刻を正規化し、採用したレコードと破棄した件数を返す。
func (n *Normalizer) NormalizeAll(rows []map[string]any) ([]model.PunchRecord, int) {
	records := make([]model.PunchRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		rec, ok := n.Normalize(row)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

// workDescriptions は最初に空でない作業内容が得られた候補キーの値を平坦化して返す。
func (n *Normalizer) workDescriptions(raw map[string]any) []string {
	for _, key := range workKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		seen := make(map[string]bool)
		var out []string
		n.flatten(v, seen, &out)
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// flatten は任意の深さの配列を辿り、空でない文字列を重複なく出現順に集める。
func (n *Normalizer) flatten(v any, seen map[string]bool, out *[]string) {
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			n.flatten(e, seen, out)
		}
	case []string:
		for _, e := range x {
			n.flatten(e, seen, out)
		}
	default:
		s := n.sanitizer.Sanitize(scalarString(v))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		*out = append(*out, s)
	}
}

// firstMatch は候補キーを順に調べ、最初に空でない正規化値が得られたものを返す。
// transformが指定された場合は正規化後の値に適用してから空判定する。
func firstMatch(raw map[string]any, keys []string, transform func(string) string) (string, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		s := normalizeValue(v)
		if transform != nil {
			s = transform(s)
		}
		if s != "" {
			return s, true
		}
	}
	return "", false
}

// normalizeValue は値を前後の空白を除いた文字列にする。
// 配列の場合は要素を順に再帰し、最初に空でない文字列を返す。
func normalizeValue(v any) string {
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			if s := normalizeValue(e); s != "" {
				return s
			}
		}
		return ""
	case []string:
		for _, e := range x {
			if s := strings.TrimSpace(e); s != "" {
				return s
			}
		}
		return ""
	case map[string]any:
		for _, key := range objectValueKeys {
			if inner, ok := x[key]; ok {
				if s := normalizeValue(inner); s != "" {
					return s
				}
			}
		}
		return ""
	default:
		return scalarString(v)
	}
}

// scalarString はJSONのスカラー値を文字列にする。対応しない型は空文字列。
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

// unwrapMachineID は旧エクスポートの複数値形式の機械IDから先頭の1件を取り出す。
// "[...]" 形式ならJSON配列として解析して最初の有効な要素を採り、
// その後カンマで分割した先頭トークンを返す。
func unwrapMachineID(s string) string {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			s = normalizeValue(arr)
		}
	}
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// parseTimestamp はtimestamp文字列を解析する。
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
