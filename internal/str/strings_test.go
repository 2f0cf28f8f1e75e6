package str

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownEscape(t *testing.T) {
	assert.Equal(t, `wan2.2\_t2i \*plus\*`, MarkdownEscape("wan2.2_t2i *plus*"))
	assert.Equal(t, "正在使用 wan2.2-t2i-flash 模型", MarkdownEscape("正在使用 wan2.2-t2i-flash 模型"))
}

func TestMarkdownV2Escape(t *testing.T) {
	assert.Equal(t, `wan2\.2\-t2i \(plus\)\!`, MarkdownV2Escape("wan2.2-t2i (plus)!"))
	assert.Equal(t, `a\\b`, MarkdownV2Escape(`a\b`))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\_b`, Escape("Markdown", "a_b"))
	assert.Equal(t, `a\.b`, Escape("MarkdownV2", "a.b"))
	assert.Equal(t, "a_b", Escape("HTML", "a_b"))
	assert.Equal(t, "a_b", Escape("", "a_b"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "一只猫", Truncate("一只猫", 3))
	assert.Equal(t, "一只…", Truncate("一只可爱的猫", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
