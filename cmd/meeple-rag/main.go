package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/merrymeeple/meeple-rag/cmd/meeple-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "meeple-rag",
		Usage: "ボードゲームカフェ向けルールブックQAシステム",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "ルールブック取り込みコマンド",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "ディレクトリ内のPDFを一括取り込み",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "dir",
								Usage:    "PDFファイルのディレクトリ",
								Required: true,
							},
						},
						Action: commands.IngestRunAction,
					},
				},
			},
			{
				Name:  "library",
				Usage: "ライブラリ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "ゲーム一覧と統計を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.LibraryListAction,
					},
					{
						Name:  "show",
						Usage: "ゲームの文書一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "game",
								Usage:    "ゲームタイトル",
								Required: true,
							},
						},
						Action: commands.LibraryShowAction,
					},
					{
						Name:  "delete",
						Usage: "ゲームと配下の全データを削除",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "game",
								Usage:    "ゲームタイトル",
								Required: true,
							},
						},
						Action: commands.LibraryDeleteAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "類似チャンク検索（デバッグ用）",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "game",
						Usage:    "ゲームタイトル",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "question",
						Usage:    "質問文",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "取得件数（省略時はデフォルト）",
					},
				},
				Action: commands.SearchAction,
			},
			{
				Name:  "ask",
				Usage: "質問への回答を生成",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "game",
						Usage:    "ゲームタイトル",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "question",
						Usage:    "質問文",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "table",
						Usage: "テーブル番号（スタッフ呼び出し通知に使用）",
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "取得件数（省略時はデフォルト）",
					},
				},
				Action: commands.AskAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
