package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
)

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name      string
		fileName  string
		wantTitle string
		wantType  library.DocumentType
	}{
		{
			name:      "ハイフン区切り_ルールブック",
			fileName:  "wingspan-rulebook.pdf",
			wantTitle: "Wingspan",
			wantType:  library.DocumentTypeRulebook,
		},
		{
			name:      "空白付きハイフン区切り",
			fileName:  "Wingspan - Rulebook.pdf",
			wantTitle: "Wingspan",
			wantType:  library.DocumentTypeRulebook,
		},
		{
			name:      "アンダースコアは区切りではない",
			fileName:  "wingspan_rulebook.pdf",
			wantTitle: "Wingspan Rulebook",
			wantType:  library.DocumentTypeSupplement,
		},
		{
			name:      "複数語のグループ名",
			fileName:  "ticket_to_ride-rules.pdf",
			wantTitle: "Ticket To Ride",
			wantType:  library.DocumentTypeRulebook,
		},
		{
			name:      "FAQ",
			fileName:  "catan-faq.pdf",
			wantTitle: "Catan",
			wantType:  library.DocumentTypeFAQ,
		},
		{
			name:      "正誤表_バージョン付き",
			fileName:  "catan-errata-2021.pdf",
			wantTitle: "Catan",
			wantType:  library.DocumentTypeErrata,
		},
		{
			name:      "区切りなしは補足資料",
			fileName:  "azul.pdf",
			wantTitle: "Azul",
			wantType:  library.DocumentTypeSupplement,
		},
		{
			name:      "大文字のファイル名",
			fileName:  "CATAN-RULEBOOK.PDF",
			wantTitle: "Catan",
			wantType:  library.DocumentTypeRulebook,
		},
		{
			name:      "種別キーワードはグループ名に影響しない",
			fileName:  "dune_imperium-faq.pdf",
			wantTitle: "Dune Imperium",
			wantType:  library.DocumentTypeFAQ,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveIdentity(tt.fileName)
			assert.Equal(t, tt.wantTitle, got.GameTitle)
			assert.Equal(t, tt.wantType, got.DocType)
		})
	}
}

func TestResolveIdentity_PureAndCaseInsensitive(t *testing.T) {
	a := ResolveIdentity("wingspan-rulebook.pdf")
	b := ResolveIdentity("Wingspan - Rulebook.pdf")
	c := ResolveIdentity("wingspan_rulebook.pdf")

	assert.Equal(t, a, b)
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())

	// 同じ入力は常に同じ結果
	assert.Equal(t, a, ResolveIdentity("wingspan-rulebook.pdf"))
}
