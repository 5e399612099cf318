// Package notify はスタッフ呼び出し通知を提供する
// 現状は構造化ログへの出力のみで、配送の失敗が検索を妨げることはない
package notify

import (
	"context"
	"log/slog"

	"github.com/merrymeeple/meeple-rag/internal/core/retrieve"
)

// LogNotifier は retrieve.Notifier を実装するログ通知器
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier は新しい LogNotifier を作成します
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

var _ retrieve.Notifier = (*LogNotifier)(nil)

// Notify はスタッフ向けの呼び出しを記録する
func (n *LogNotifier) Notify(ctx context.Context, tableID, gameTitle, question, reason string) {
	n.logger.InfoContext(ctx, "スタッフ呼び出しを通知します",
		slog.String("table_id", tableID),
		slog.String("game_title", gameTitle),
		slog.String("question", question),
		slog.String("reason", reason),
	)
}
