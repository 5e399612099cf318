package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
)

// LibraryListAction はライブラリ内の全ゲームの統計を表示するコマンドのアクション
func LibraryListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	stats, err := appCtx.Store.ListGames(ctx)
	if err != nil {
		return err
	}

	if len(stats) == 0 {
		fmt.Println("ライブラリは空です")
		return nil
	}

	fmt.Printf("%-30s %8s %8s %s\n", "TITLE", "PAGES", "CHUNKS", "CREATED")
	for _, st := range stats {
		fmt.Printf("%-30s %8d %8d %s\n", st.Title, st.PageCount, st.ChunkCount, st.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

// LibraryShowAction はゲーム1件の詳細を表示するコマンドのアクション
func LibraryShowAction(ctx context.Context, cmd *cli.Command) error {
	title := cmd.String("game")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	gameOpt, err := appCtx.Store.GetGameByTitle(ctx, title)
	if err != nil {
		return err
	}
	game, ok := gameOpt.Get()
	if !ok {
		return fmt.Errorf("%w: %s", library.ErrGameNotFound, title)
	}

	docs, err := appCtx.Store.ListDocumentsByGame(ctx, game.ID)
	if err != nil {
		return err
	}

	fmt.Printf("ゲーム: %s\n", game.Title)
	fmt.Printf("登録日: %s\n", game.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("文書数: %d\n\n", len(docs))
	fmt.Printf("%-40s %-12s %8s %s\n", "FILE", "TYPE", "PAGES", "INGESTED")
	for _, doc := range docs {
		fmt.Printf("%-40s %-12s %8d %s\n", doc.FileName, doc.DocType, doc.PageCount, doc.IngestedAt.Format("2006-01-02"))
	}
	return nil
}

// LibraryDeleteAction はゲームと配下の全データを削除するコマンドのアクション
func LibraryDeleteAction(ctx context.Context, cmd *cli.Command) error {
	title := cmd.String("game")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Store.DeleteGame(ctx, title); err != nil {
		if errors.Is(err, library.ErrGameNotFound) {
			return fmt.Errorf("%w: %s", library.ErrGameNotFound, title)
		}
		return err
	}

	slog.Info("ゲームを削除しました", "game", title)
	fmt.Printf("削除しました: %s\n", title)
	return nil
}
