package render

import (
	"strings"
	"time"

	"wumen-backend/internal/model"
	"wumen-backend/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Renderer 把助手消息的 Markdown 文本转成展示节点。
// 渲染绝不报错：解析失败时返回空节点列表，前端降级为纯文本。
type Renderer interface {
	Render(markdown string) []model.RenderNode
}

type MarkdownRenderer struct {
	md    goldmark.Markdown
	cache *gocache.Cache
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(),
		// 流式阶段同一段前缀会反复渲染，短 TTL 缓存足够
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (r *MarkdownRenderer) Render(markdown string) (nodes []model.RenderNode) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warnf("markdown render panic recovered: %v", rec)
			nodes = nil
		}
	}()

	trimmed := strings.TrimSpace(markdown)
	if trimmed == "" {
		return nil
	}

	if cached, ok := r.cache.Get(trimmed); ok {
		return cached.([]model.RenderNode)
	}

	src := []byte(trimmed)
	doc := r.md.Parser().Parse(text.NewReader(src))

	nodes = flatten(doc, src)
	r.cache.Set(trimmed, nodes, gocache.DefaultExpiration)

	return nodes
}

// flatten 把 AST 压平成顺序节点列表，嵌套结构只保留层级信息
func flatten(doc ast.Node, src []byte) []model.RenderNode {
	var nodes []model.RenderNode

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.Heading:
			nodes = append(nodes, model.RenderNode{
				Type:  "heading",
				Level: v.Level,
				Text:  string(v.Text(src)),
			})
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			nodes = append(nodes, model.RenderNode{
				Type:  "list_item",
				Level: listDepth(v),
				Text:  string(v.Text(src)),
			})
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			nodes = append(nodes, model.RenderNode{
				Type: "code_block",
				Text: blockLines(v, src),
			})
			return ast.WalkSkipChildren, nil

		case *ast.CodeBlock:
			nodes = append(nodes, model.RenderNode{
				Type: "code_block",
				Text: blockLines(v, src),
			})
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			nodes = append(nodes, model.RenderNode{
				Type: "paragraph",
				Text: string(v.Text(src)),
			})
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})

	return nodes
}

func listDepth(item *ast.ListItem) int {
	depth := 0
	for p := item.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.List); ok {
			depth++
		}
	}
	return depth
}

func blockLines(n interface {
	Lines() *text.Segments
}, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}
