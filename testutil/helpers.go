// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	cfg := testutil.TestConfig(t)
//	testutil.AssertMessagesEqual(t, expected, actual)
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/cortex/config"
	"github.com/BaSui01/cortex/types"
)

// =============================================================================
// 🎯 上下文与配置
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回指定超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// TestConfig 默认配置，存储根目录指向 t.TempDir()，全部使用内存后端
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Root = t.TempDir()
	cfg.Storage.Backend = "memory"
	cfg.Storage.VectorBackend = "memory"
	cfg.Redis.Addr = ""
	return cfg
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertMessagesEqual 按发送者、类型与内容比较消息，忽略 ID 与时间戳
func AssertMessagesEqual(t *testing.T, expected, actual []types.Message) {
	t.Helper()

	if len(expected) != len(actual) {
		t.Errorf("message count mismatch: expected %d, got %d", len(expected), len(actual))
		return
	}
	for i := range expected {
		if expected[i].Sender != actual[i].Sender {
			t.Errorf("message[%d] sender mismatch: expected %q, got %q", i, expected[i].Sender, actual[i].Sender)
		}
		if expected[i].Kind != actual[i].Kind {
			t.Errorf("message[%d] kind mismatch: expected %q, got %q", i, expected[i].Kind, actual[i].Kind)
		}
		if expected[i].Content != actual[i].Content {
			t.Errorf("message[%d] content mismatch: expected %q, got %q", i, expected[i].Content, actual[i].Content)
		}
	}
}
