package app

import (
	"fmt"
	"time"

	"github.com/hitoshi/kintai/internal/aggregate"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数なしの場合の既定値。
	CommandServe Command = "serve"
	// CommandWorker は日報更新・クリーンアップ・現場マスタ同期のワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandMaterialize は指定期間の日報を1回だけ作り直す。過去分の再集計に使う。
	CommandMaterialize Command = "materialize"
	// CommandHealthcheck はdistroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandMaterialize): CommandMaterialize,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// materializeRange はmaterializeサブコマンドの期間引数を解析する。
// 引数なしは直近lookbackDays日、1つなら [from, 翌日)、2つなら [from, to) とする。
func materializeRange(args []string, now time.Time, lookbackDays int) (from, to string, err error) {
	switch len(args) {
	case 0:
		from, to = aggregate.TrailingRange(now, lookbackDays)
		return from, to, nil
	case 1:
		return aggregate.DayRange(args[0])
	case 2:
		from, _, err = aggregate.DayRange(args[0])
		if err != nil {
			return "", "", err
		}
		to, _, err = aggregate.DayRange(args[1])
		if err != nil {
			return "", "", err
		}
		if to <= from {
			return "", "", fmt.Errorf("終了日は開始日より後を指定してください: %s - %s", from, to)
		}
		return from, to, nil
	default:
		return "", "", fmt.Errorf("引数が多すぎます: materialize [from] [to]")
	}
}
