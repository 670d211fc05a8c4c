package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding 用于记忆截断与稀疏索引分块。
const DefaultEncoding = "cl100k_base"

// TiktokenTokenizer 基于 tiktoken 的 BPE 分词器。
type TiktokenTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// modelEncodings 将模型名称前缀映射到 tiktoken 编码。
var modelEncodings = map[string]string{
	"gpt-4o":                 "o200k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
}

// NewTiktokenTokenizer 按编码名创建分词器；空字符串使用 DefaultEncoding。
// 编码数据在首次使用时加载。
func NewTiktokenTokenizer(encoding string) *TiktokenTokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenTokenizer{encoding: encoding}
}

// ForModel 按模型名前缀选择编码，未知模型回落到 DefaultEncoding。
func ForModel(model string) *TiktokenTokenizer {
	best := ""
	for prefix := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	return NewTiktokenTokenizer(modelEncodings[best])
}

// init lazily 初始化 tiktoken 编码(可能在第一次使用时下载数据).
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// Pieces 逐个解码 token；单个片段可能是不完整的 UTF-8，但拼接结果与原文一致。
func (t *TiktokenTokenizer) Pieces(text string) ([]string, error) {
	if err := t.init(); err != nil {
		return nil, err
	}
	ids := t.enc.Encode(text, nil, nil)
	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i] = t.enc.Decode([]int{id})
	}
	return pieces, nil
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
