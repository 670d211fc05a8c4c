package tokenizer

import "regexp"

var wordPiece = regexp.MustCompile(`^\s+|\S+\s*`)

// WordTokenizer 以空白分隔的单词作为 token，每个片段携带其后的空白。
// 无需下载编码数据，用于 tiktoken 不可用的环境与测试。
type WordTokenizer struct{}

func (WordTokenizer) CountTokens(text string) (int, error) {
	pieces, _ := WordTokenizer{}.Pieces(text)
	return len(pieces), nil
}

func (WordTokenizer) Pieces(text string) ([]string, error) {
	return wordPiece.FindAllString(text, -1), nil
}

func (WordTokenizer) Name() string { return "words" }
