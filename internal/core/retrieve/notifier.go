package retrieve

import "context"

// Notifier はスタッフ呼び出しチャネルへの通知インターフェース
// fire-and-forget であり、通知の失敗は検索結果に影響しない
type Notifier interface {
	Notify(ctx context.Context, tableID, gameTitle, question, reason string)
}
