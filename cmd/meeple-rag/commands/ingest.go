package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/merrymeeple/meeple-rag/internal/core/ingest"
)

// IngestRunAction はディレクトリ内のPDFを一括で取り込むコマンドのアクション
func IngestRunAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	paths, err := collectPDFs(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("取り込み対象のPDFが見つかりません: %s\n", dir)
		return nil
	}

	slog.Info("取り込み処理を開始", "dir", dir, "files", len(paths))

	service, err := appCtx.NewIngestService()
	if err != nil {
		return err
	}

	report := service.IngestBatch(ctx, paths)
	printBatchReport(report)

	slog.Info("取り込み処理が完了しました",
		"created", report.Created,
		"merged", report.Merged,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return nil
}

// collectPDFs はディレクトリ直下のPDFファイルを列挙する
func collectPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ディレクトリの読み込みに失敗: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

func printBatchReport(report *ingest.BatchReport) {
	for _, file := range report.Files {
		switch file.Status {
		case ingest.StatusFailed:
			fmt.Printf("  %-40s %-12s %s\n", file.FileName, file.Status, file.Reason)
		case ingest.StatusSkipped:
			fmt.Printf("  %-40s %-12s (既に取り込み済み)\n", file.FileName, file.Status)
		default:
			fmt.Printf("  %-40s %-12s %s/%s (%d chunks)\n", file.FileName, file.Status, file.GameTitle, file.DocType, file.Chunks)
		}
	}
	fmt.Printf("合計: created=%d merged=%d skipped=%d failed=%d\n",
		report.Created, report.Merged, report.Skipped, report.Failed)
}
