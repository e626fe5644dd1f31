package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBasicStructure(t *testing.T) {
	r := NewMarkdownRenderer()

	nodes := r.Render("# 吴门医派\n\n温病学说的发源地。\n\n- 叶桂\n- 薛雪\n")

	require.NotEmpty(t, nodes)
	assert.Equal(t, "heading", nodes[0].Type)
	assert.Equal(t, 1, nodes[0].Level)
	assert.Equal(t, "吴门医派", nodes[0].Text)

	var types []string
	for _, n := range nodes {
		types = append(types, n.Type)
	}
	assert.Equal(t, []string{"heading", "paragraph", "list_item", "list_item"}, types)
}

func TestRenderCodeBlock(t *testing.T) {
	r := NewMarkdownRenderer()

	nodes := r.Render("```\n一行\n两行\n```")

	require.Len(t, nodes, 1)
	assert.Equal(t, "code_block", nodes[0].Type)
	assert.Equal(t, "一行\n两行", nodes[0].Text)
}

func TestRenderEmptyInput(t *testing.T) {
	r := NewMarkdownRenderer()

	assert.Nil(t, r.Render(""))
	assert.Nil(t, r.Render("   \n\t  "))
}

// 渲染永不失败：怪异输入最多得到空节点，不 panic 不报错
func TestRenderNeverFails(t *testing.T) {
	r := NewMarkdownRenderer()

	inputs := []string{
		"[broken](link",
		strings.Repeat("#", 100),
		"<<<>>>\x00",
		strings.Repeat("- 嵌套\n  - 再嵌套\n", 200),
	}

	for _, input := range inputs {
		assert.NotPanics(t, func() {
			_ = r.Render(input)
		})
	}
}

func TestRenderCached(t *testing.T) {
	r := NewMarkdownRenderer()

	first := r.Render("缓存命中检查")
	second := r.Render("缓存命中检查")

	assert.Equal(t, first, second)
	_, ok := r.cache.Get("缓存命中检查")
	assert.True(t, ok)
}
