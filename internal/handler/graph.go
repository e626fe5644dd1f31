package handler

import (
	"net/http"

	"wumen-backend/internal/graph"
	"wumen-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type GraphHandler struct {
	graphService *graph.Service
}

func NewGraphHandler(graphService *graph.Service) *GraphHandler {
	return &GraphHandler{
		graphService: graphService,
	}
}

// QueryNode 查询实体的一跳图谱。
// 节点不存在不算错误（默认图 + notice）；服务真挂了才报错。
func (h *GraphHandler) QueryNode(c *gin.Context) {
	name := c.Query("name")

	view, err := h.graphService.QueryNode(c.Request.Context(), name)
	if err != nil {
		logger.Errorf("Graph query failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "图谱服务不可用"})
		return
	}

	c.JSON(http.StatusOK, view)
}
