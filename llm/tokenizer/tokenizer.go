package tokenizer

import (
	"fmt"
	"strings"
)

// Tokenizer 是统一的 token 切分接口。
// Pieces 返回的片段按顺序拼接后与原文逐字节一致。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Pieces 将文本切分为 token 片段.
	Pieces(text string) ([]string, error)

	// Name 返回分词器的名称.
	Name() string
}

// Truncate 保留前 maxTokens 个 token；maxTokens <= 0 表示不截断。
func Truncate(t Tokenizer, text string, maxTokens int) (string, error) {
	if maxTokens <= 0 || text == "" {
		return text, nil
	}
	pieces, err := t.Pieces(text)
	if err != nil {
		return "", err
	}
	if len(pieces) <= maxTokens {
		return text, nil
	}
	return strings.Join(pieces[:maxTokens], ""), nil
}

// Windows 按 size 个 token 的滑动窗口切分文本，相邻窗口重叠 overlap 个 token。
// 最后一个窗口覆盖到文本末尾。
func Windows(t Tokenizer, text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", size, overlap)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	pieces, err := t.Pieces(text)
	if err != nil {
		return nil, err
	}

	step := size - overlap
	var out []string
	for start := 0; start < len(pieces); start += step {
		end := start + size
		if end > len(pieces) {
			end = len(pieces)
		}
		out = append(out, strings.Join(pieces[start:end], ""))
		if end == len(pieces) {
			break
		}
	}
	return out, nil
}
