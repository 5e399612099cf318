package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/merrymeeple/meeple-rag/internal/core/retrieve"
)

// SearchAction は類似チャンク検索の結果をそのまま表示するコマンドのアクション
// 回答生成を伴わないデバッグ用途のコマンド
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	game := cmd.String("game")
	question := cmd.String("question")
	topK := cmd.Int("k")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	service := appCtx.NewRetrieveService()
	result, err := service.Retrieve(ctx, retrieve.Params{
		GameTitle: game,
		Question:  question,
		TopK:      topK,
	})
	if err != nil {
		return err
	}

	if result.BelowFloor {
		fmt.Println("関連するチャンクが見つかりませんでした")
		return nil
	}

	for i, chunk := range result.Chunks {
		fmt.Printf("--- #%d  score=%.4f  %s  pages=%v\n", i+1, chunk.Score, chunk.DocType, chunk.Pages)
		fmt.Println(chunk.Text)
		fmt.Println()
	}
	fmt.Printf("参照資料: %v  参照ページ: %v\n", result.SourcesUsed, result.SourcePages())
	return nil
}
