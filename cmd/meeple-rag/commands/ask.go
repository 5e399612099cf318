package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
	"github.com/merrymeeple/meeple-rag/internal/core/retrieve"
)

const fallbackAnswer = "I don't see that specific information in the rulebook. Let me check with staff for you."

// AskAction は質問に対する回答を生成して表示するコマンドのアクション
// 回答を組み立てられない場合はスタッフ呼び出しを通知する
func AskAction(ctx context.Context, cmd *cli.Command) error {
	game := cmd.String("game")
	question := cmd.String("question")
	tableID := cmd.String("table")
	topK := cmd.Int("k")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	service := appCtx.NewRetrieveService()
	notifier := appCtx.NewNotifier()

	result, err := service.Retrieve(ctx, retrieve.Params{
		GameTitle: game,
		Question:  question,
		TopK:      topK,
	})
	if err != nil {
		switch {
		case errors.Is(err, library.ErrGameNotFound):
			notifier.Notify(ctx, tableID, game, question, "game_not_found")
			fmt.Println("Sorry, I couldn't find the rulebook for this game in my library.")
			return nil
		case errors.Is(err, library.ErrNoContentAvailable):
			notifier.Notify(ctx, tableID, game, question, "no_content")
			fmt.Println(fallbackAnswer)
			return nil
		}
		return err
	}

	if result.BelowFloor {
		notifier.Notify(ctx, tableID, game, question, "below_relevance_floor")
		fmt.Println(fallbackAnswer)
		return nil
	}

	generator := appCtx.NewAnswerGenerator()
	answer, err := generator.GenerateAnswer(ctx, retrieve.NewAnswerRequest(question, result))
	if err != nil {
		notifier.Notify(ctx, tableID, game, question, "answer_generation_failed")
		return err
	}

	fmt.Println(answer.Text)
	fmt.Printf("\n参照資料: %v  参照ページ: %v\n", result.SourcesUsed, answer.SourcePages)
	return nil
}
