package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
)

// Identity はファイル名から導出した正規化済みの文書識別情報
type Identity struct {
	// GameTitle は表示用のタイトル（タイトルケース・空白区切り）
	GameTitle string
	// DocType はファイル名から推定した資料種別
	DocType library.DocumentType
}

// Key は同一ゲーム判定に使う比較キーを返す
func (id Identity) Key() string {
	return strings.ToLower(id.GameTitle)
}

// groupSeparator は意味的な区切りとして扱うハイフン
// 前後の空白は区切りの一部とみなす。アンダースコアは区切りではない
var groupSeparator = regexp.MustCompile(`\s*-\s*`)

// typeKeywords は資料種別の推定キーワード。先頭から優先される
var typeKeywords = []struct {
	keyword string
	docType library.DocumentType
}{
	{"rulebook", library.DocumentTypeRulebook},
	{"rules", library.DocumentTypeRulebook},
	{"faq", library.DocumentTypeFAQ},
	{"errata", library.DocumentTypeErrata},
}

// ResolveIdentity はファイル名（パスなし・拡張子あり）から
// 正規化済みのゲームタイトルと資料種別を導出する
// 純関数であり、同じ入力は常に同じ結果を返す
func ResolveIdentity(fileName string) Identity {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	group := stem
	rest := ""
	if loc := groupSeparator.FindStringIndex(stem); loc != nil {
		group = stem[:loc[0]]
		rest = stem[loc[1]:]
	}

	return Identity{
		GameTitle: displayTitle(group),
		DocType:   inferDocType(rest),
	}
}

// displayTitle はグループ名を表示形に正規化する
// 空白とアンダースコアで語に分解し、各語をタイトルケースにして空白1個で結合する
func displayTitle(group string) string {
	words := strings.FieldsFunc(group, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

// inferDocType は区切り以降の文字列から資料種別を推定する
// 区切りが存在しないファイル名は全体がグループ名であり supplement になる
func inferDocType(rest string) library.DocumentType {
	lower := strings.ToLower(rest)
	for _, tk := range typeKeywords {
		if strings.Contains(lower, tk.keyword) {
			return tk.docType
		}
	}
	return library.DocumentTypeSupplement
}
