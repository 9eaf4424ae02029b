package prompt

import (
	"strings"
	"testing"
)

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ProductInfo
	}{
		{
			name: "canonicalFormat",
			text: "商材/ブランド名: Acme\nメインターゲット: young pros\nキャッチコピー: Go Further\nベネフィット1: Fast\nベネフィット2: Cheap\nオファー: 特に指定なし\nCTAテキスト: Buy Now",
			want: ProductInfo{
				ProductName:    "Acme",
				TargetAudience: "young pros",
				Catchphrase:    "Go Further",
				Benefit1:       "Fast",
				Benefit2:       "Cheap",
				Offer:          "特に指定なし",
				CTAText:        "Buy Now",
			},
		},
		{
			name: "fullWidthColonAndMarkdown",
			text: "**商材名**：Acme Cloud\r\n- CTA: 無料で試す",
			want: ProductInfo{ProductName: "Acme Cloud", CTAText: "無料で試す"},
		},
		{
			name: "valueContainingColon",
			text: "キャッチコピー: 時間: 半分に",
			want: ProductInfo{Catchphrase: "時間: 半分に"},
		},
		{
			name: "labelInValueDoesNotMisroute",
			text: "キャッチコピー: 商材名より大切なこと",
			want: ProductInfo{Catchphrase: "商材名より大切なこと"},
		},
		{
			name: "noColonIgnored",
			text: "以下が分析結果です\nオファー",
			want: ProductInfo{},
		},
		{
			name: "empty",
			text: "",
			want: ProductInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAnalysis(tt.text); got != tt.want {
				t.Errorf("ParseAnalysis() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAnalysisPrompt(t *testing.T) {
	got := AnalysisPrompt("ページ本文")
	if !strings.HasSuffix(got, "【ウェブページの内容】\nページ本文") {
		t.Errorf("AnalysisPrompt() should end with page text, got tail %q", got[len(got)-40:])
	}
	for _, f := range Fields {
		if !strings.Contains(got, f.Label()+": "+f.Placeholder()) {
			t.Errorf("AnalysisPrompt() missing answer line for %s", f)
		}
	}
}
