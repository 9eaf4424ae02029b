package prompt

import (
	"strings"
	"unicode/utf8"
)

const analysisHeader = `あなたは、指定されたWebページのコンテンツを分析し、P-MAX広告用の動画生成に必要な情報を抽出するAIアシスタントです。

以下の7つの要素を抽出・推測してください：

1. [商材/ブランド名]: h1タグ、titleタグ、またはロゴ周辺のテキストから最も適切な名称
2. [メインターゲット]: 「〜な方へ」「〜にお悩みでは？」などの記述からターゲット層を推測
3. [キャッチコピー]: ページのファーストビュー（FV）にある最も印象的で短いフレーズ
4. [ベネフィット1]: 商材が提供する最も重要な利点や特徴の1つ目
5. [ベネフィット2]: 商材が提供する2番目に重要な利点や特徴
6. [オファー]: 「無料トライアル」「限定割引」「キャンペーン中」などの行動喚起フレーズ。見つからない場合は「特に指定なし」
7. [CTAテキスト]: 「今すぐ購入」「資料請求」「無料で試す」など、ページ内の主要なボタンの文言

以下の形式で回答してください：

商材/ブランド名: [商材/ブランド名]
メインターゲット: [メインターゲット]
キャッチコピー: [キャッチコピー]
ベネフィット1: [ベネフィット1]
ベネフィット2: [ベネフィット2]
オファー: [オファー]
CTAテキスト: [CTAテキスト]

【ウェブページの内容】
`

// AnalysisPrompt builds the request sent to the page analysis model.
func AnalysisPrompt(pageText string) string {
	return analysisHeader + pageText
}

// lineMatchers is evaluated top to bottom; the first match claims the line.
var lineMatchers = []struct {
	field  Field
	labels []string
}{
	{FieldProductName, []string{"商材/ブランド名", "商材名"}},
	{FieldTargetAudience, []string{"メインターゲット"}},
	{FieldCatchphrase, []string{"キャッチコピー"}},
	{FieldBenefit1, []string{"ベネフィット1"}},
	{FieldBenefit2, []string{"ベネフィット2"}},
	{FieldOffer, []string{"オファー"}},
	{FieldCTAText, []string{"CTAテキスト", "CTA"}},
}

// ParseAnalysis extracts ProductInfo from "label: value" lines.
// Lines without a colon or without a known label are ignored; later lines overwrite earlier ones.
func ParseAnalysis(text string) ProductInfo {
	var info ProductInfo
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		for _, m := range lineMatchers {
			if containsAny(key, m.labels) {
				info = info.With(m.field, value)
				break
			}
		}
	}
	return info
}

func splitLabel(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, ":：")
	if idx < 0 {
		return "", "", false
	}
	key = strings.Trim(line[:idx], " \t*-#")
	_, width := utf8.DecodeRuneInString(line[idx:])
	value = strings.TrimSpace(line[idx+width:])
	value = strings.TrimSpace(strings.Trim(value, "*"))
	return key, value, key != ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
