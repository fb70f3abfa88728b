package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れタイマーのクリーンアップワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"

	// CommandWatch はAPIをポーリングしてカウントダウンを表示し続ける。
	CommandWatch Command = "watch"
	// CommandList はタイマー一覧を1回だけ表示する。
	CommandList Command = "list"
	// CommandAdd はタイマーを作成する。
	CommandAdd Command = "add"
	// CommandUpdate はタイマーを置き換える。
	CommandUpdate Command = "update"
	// CommandDelete はタイマーを削除する。
	CommandDelete Command = "delete"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "watch":
		return CommandWatch
	case "list", "ls":
		return CommandList
	case "add":
		return CommandAdd
	case "update":
		return CommandUpdate
	case "delete", "rm":
		return CommandDelete
	default:
		return CommandServe
	}
}

// IsClient はAPIサーバーに接続するクライアント側のコマンドかを返す。
// クライアント側のコマンドはDATABASE_URLを必要としない。
func (c Command) IsClient() bool {
	switch c {
	case CommandWatch, CommandList, CommandAdd, CommandUpdate, CommandDelete:
		return true
	default:
		return false
	}
}
