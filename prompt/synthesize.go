package prompt

import "strings"

// Options tweaks the rendered document without changing its section layout.
type Options struct {
	// Square adds the 1:1 composition block that keeps text and action in the vertical center.
	Square bool
}

const squareInstruction = `【画面構成の重要指定】
正方形（1:1）のアスペクト比を想定し、すべての重要なテキストとキャラクターのアクションは、画面の「中央部分（縦方向の中間エリア）」に集中させてください。上下の余白には重要な要素を配置しないでください。

`

const videoTemplate = `【動画生成指示】
SNS広告向けの12秒のショート動画を作成してください。
メインターゲットは「{target_audience}」です。
トーン＆マナーは、モダンでスピーディー、かつ信頼感のある雰囲気です。
BGMはアップテンポなインストルメンタルのみで、音声やナレーションは含めません。

{square_instruction}【入力画像について】
提供された画像は「ブランドのマスコットキャラクター（イラスト）」です。このマスコットをアニメーションさせてください。

【タイムラインと詳細指示】

● 0-3秒：オープニング
背景はブランドカラーを基調とした明るくダイナミックな抽象アニメーションです。
マスコットキャラクターが元気にジャンプ、または手を振りながら登場し、視聴者の注意を引きます。
画面中央に、太字のゴシック体で以下のテキストを大きく明瞭に表示してください。
テキスト：「{catchphrase}」

● 4-6秒：ベネフィット提示1
キャラクターは画面の隅（左下など）に移動し、案内役として頷いたり指差しを行います。
画面中央に、「{benefit1}」を象徴するシンプルなアイコン（歯車やチェックマークなど）がポップアップします。
中央に見やすく以下のテキストを表示してください。
テキスト：「{benefit1}」

● 7-9秒：ベネフィット提示2
中央のアイコンが、「{benefit2}」や「{offer}」をイメージさせるアイコン（グラフやカレンダーなど）に素早く切り替わります。
キャラクターは驚きや喜びの表情を見せます。
以下のテキストに切り替えてください。
テキスト：「{benefit2}」または「{offer}」

● 10-12秒：エンディング（CTA）
背景が白、またはクリーンな単色に切り替わります。
中央にロゴのように大きく「{product_name}」と表示します。
その下にボタン風のデザインを配置し、以下のテキストを含めます。
ボタン内テキスト：「{cta_text}」
画面下部テキスト：「{product_name} で検索」

【テキスト表示のルール】
すべてのテキストは太字のゴシック体を使用し、背景とのコントラストを強くして可読性を最優先してください。文字崩れがないようにレンダリングしてください。`

// Synthesize renders the 12 second marketing video prompt for info.
// It is pure and total: blank fields become their placeholder tokens.
func Synthesize(info ProductInfo) string {
	return SynthesizeWithOptions(info, Options{})
}

// SynthesizeWithOptions is Synthesize with layout options applied.
func SynthesizeWithOptions(info ProductInfo, opts Options) string {
	square := ""
	if opts.Square {
		square = squareInstruction
	}

	// A single Replacer pass never re-expands tokens that appear inside field values.
	pairs := make([]string, 0, len(Fields)*2+2)
	for _, f := range Fields {
		pairs = append(pairs, "{"+string(f)+"}", info.Value(f))
	}
	pairs = append(pairs, "{square_instruction}", square)

	return strings.NewReplacer(pairs...).Replace(videoTemplate)
}
