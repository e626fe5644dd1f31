package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wumen-backend/internal/utils"
)

var ErrGraphUnavailable = errors.New("graph service unavailable")

// 实体类型归一化：未识别的类型一律归入 OTHER
var typeLabels = map[string]string{
	"PERSON":       "人物",
	"ORGANIZATION": "机构",
	"EVENT":        "事件",
	"PLACE":        "地点",
	"WORK":         "著作",
	"OTHER":        "其他",
}

var typeColors = map[string]string{
	"PERSON":       "#E86A5A",
	"ORGANIZATION": "#4D89F7",
	"EVENT":        "#F6B23E",
	"PLACE":        "#60C07C",
	"WORK":         "#9D7BF7",
	"OTHER":        "#9AA0A6",
}

// defaultNotice 查无此节点时的非致命提示，前端展示默认图
const defaultNotice = "未找到该节点，显示默认图"

func NormalizeType(t string) string {
	up := strings.ToUpper(strings.TrimSpace(t))
	if _, ok := typeLabels[up]; ok {
		return up
	}
	return "OTHER"
}

type Entity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type Relation struct {
	Description  string `json:"description"`
	TargetEntity Entity `json:"target_entity"`
}

type queryResponse struct {
	Found   *bool      `json:"found"`
	Source  Entity     `json:"source"`
	Targets []Relation `json:"targets"`
}

type Category struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Color string `json:"color"`
}

type Node struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	Size        int    `json:"size"`
	Description string `json:"description"`
}

type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// View 图谱的展示模型。布局由前端计算，这里只给结构
type View struct {
	Nodes      []Node     `json:"nodes"`
	Edges      []Edge     `json:"edges"`
	Categories []Category `json:"categories"`
	Notice     string     `json:"notice,omitempty"`
}

type Service struct {
	baseURL string
	client  *http.Client
}

func NewService(baseURL string, timeout time.Duration) *Service {
	return &Service{
		baseURL: baseURL,
		client:  utils.NewHTTPClient(timeout),
	}
}

// QueryNode 查询某个实体的一跳邻接图。
// 上游明确返回 found=false 不算失败：照常出默认图，带一条非致命提示。
func (s *Service) QueryNode(ctx context.Context, name string) (*View, error) {
	if name == "" {
		name = "any"
	}

	endpoint := fmt.Sprintf("%s/query-node?name=%s", s.baseURL, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrGraphUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	}

	var qr queryResponse
	if err := json.Unmarshal(raw, &qr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	}

	view := buildView(&qr)
	if qr.Found != nil && !*qr.Found {
		view.Notice = defaultNotice
	}

	return view, nil
}

// buildView 把一跳查询结果整理成节点/边/分类。
// 节点大小按度数走，同名实体去重。
func buildView(qr *queryResponse) *View {
	view := &View{}

	seen := make(map[string]bool)
	degree := make(map[string]int)

	for _, rel := range qr.Targets {
		degree[qr.Source.Name]++
		degree[rel.TargetEntity.Name]++
	}

	addNode := func(e Entity) {
		if e.Name == "" || seen[e.Name] {
			return
		}
		seen[e.Name] = true

		ty := NormalizeType(e.Type)
		deg := degree[e.Name]
		if deg < 1 {
			deg = 1
		}
		size := 12 + deg*6
		if size < 20 {
			size = 20
		}
		if size > 60 {
			size = 60
		}

		view.Nodes = append(view.Nodes, Node{
			ID:          e.Name,
			Name:        e.Name,
			Category:    ty,
			Color:       typeColors[ty],
			Size:        size,
			Description: e.Description,
		})
	}

	addNode(qr.Source)
	for _, rel := range qr.Targets {
		addNode(rel.TargetEntity)

		view.Edges = append(view.Edges, Edge{
			Source: qr.Source.Name,
			Target: rel.TargetEntity.Name,
			Label:  rel.Description,
		})
	}

	// 分类只列实际出现过的类型
	listed := make(map[string]bool)
	for _, n := range view.Nodes {
		if listed[n.Category] {
			continue
		}
		listed[n.Category] = true
		view.Categories = append(view.Categories, Category{
			Type:  n.Category,
			Label: typeLabels[n.Category],
			Color: typeColors[n.Category],
		})
	}

	return view
}
