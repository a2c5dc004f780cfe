package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/techgangboss/agentstore-sub000/internal/logic"
	"gorm.io/gorm"
)

// EarnHandler 收益分配查询处理器
type EarnHandler struct {
	earnLogic *logic.EarnLogic
}

// NewEarnHandler 创建收益分配处理器
func NewEarnHandler(earnLogic *logic.EarnLogic) *EarnHandler {
	return &EarnHandler{earnLogic: earnLogic}
}

// GetDistribution 按期查询分配记录，period格式为2006-01
func (h *EarnHandler) GetDistribution(c *gin.Context) {
	period, err := time.ParseInLocation("2006-01", c.Param("period"), time.UTC)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的分配期格式，应为YYYY-MM")
		return
	}

	distribution, shares, err := h.earnLogic.GetDistribution(period)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ErrorResponse(c, http.StatusNotFound, "该分配期不存在")
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取分配记录成功", DistributionResponse{
		Distribution: distribution,
		Shares:       shares,
	})
}
