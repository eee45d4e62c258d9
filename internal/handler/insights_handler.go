package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/features"
)

// GetInsights 返回热力图与个人风险模型。数据不足时 risk 为 null，状态码仍为 200。
func (a *API) GetInsights(c *gin.Context) {
	insights, err := a.insights.GetInsights(sessionFrom(c))
	if err != nil {
		a.handleServiceError(c, err, "生成洞察失败")
		return
	}
	c.JSON(http.StatusOK, insights)
}

// GetPopulationInsights 返回基于全部用户记录的整体模型
func (a *API) GetPopulationInsights(c *gin.Context) {
	insights, err := a.insights.GetPopulationInsights(sessionFrom(c))
	if err != nil {
		a.handleServiceError(c, err, "生成洞察失败")
		return
	}
	c.JSON(http.StatusOK, insights)
}

// QueryRisk 查询指定时刻的漏服概率，day 支持 0-6（周一为 0）或星期名称
func (a *API) QueryRisk(c *gin.Context) {
	hour, err := strconv.Atoi(strings.TrimSpace(c.Query("hour")))
	if err != nil {
		respondError(c, http.StatusBadRequest, "hour 必须是 0-23 的整数")
		return
	}

	day, ok := parseDayQuery(c.Query("day"))
	if !ok {
		respondError(c, http.StatusBadRequest, "day 必须是 0-6 或星期名称")
		return
	}

	handle := c.Param("handle")
	slot := c.Query("slot")
	probability, err := a.insights.QueryRisk(sessionFrom(c), handle, hour, day, slot)
	if err != nil {
		a.handleServiceError(c, err, "风险查询失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"handle":      handle,
		"hour":        hour,
		"day":         features.DayName(day),
		"day_index":   day,
		"slot":        features.NormalizeSlot(slot),
		"probability": probability,
	})
}

// parseDayQuery 数字越界时按未知类别处理，由模型给出全 0 编码
func parseDayQuery(raw string) (int, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, false
	}
	if day, err := strconv.Atoi(value); err == nil {
		return day, true
	}
	return features.ParseDay(value)
}
