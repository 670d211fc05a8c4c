// Package tokenizer 提供统一的 token 切分接口，
// 支持 tiktoken 精确切分与无依赖的单词切分，用于记忆截断和稀疏索引分块。
package tokenizer
