// Package pdfext はPDFファイルからページ単位でテキストを抽出する
package pdfext

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/merrymeeple/meeple-rag/internal/core/ingest"
)

// Extractor は ingest.PageExtractor を実装するPDF抽出器
type Extractor struct{}

// NewExtractor は新しい Extractor を作成します
func NewExtractor() *Extractor {
	return &Extractor{}
}

var _ ingest.PageExtractor = (*Extractor)(nil)

// ExtractPages はPDFの全ページのテキストをページ番号付きで返す
// テキストを持たないページも空文字として結果に含める
func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]ingest.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	pages := make([]ingest.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, ingest.Page{Number: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}

		pages = append(pages, ingest.Page{
			Number: i,
			Text:   strings.TrimSpace(text),
		})
	}

	return pages, nil
}
