package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/db"
)

type doseRequest struct {
	MedicationID uint   `json:"medication_id"`
	Status       string `json:"status"`
	OccurredAt   string `json:"occurred_at"`
}

type dosePayload struct {
	ID           uint          `json:"id"`
	MedicationID uint          `json:"medication_id"`
	OccurredAt   time.Time     `json:"occurred_at"`
	Status       db.DoseStatus `json:"status"`
}

func doseToPayload(event db.DoseEvent) dosePayload {
	return dosePayload{
		ID:           event.ID,
		MedicationID: event.MedicationID,
		OccurredAt:   event.OccurredAt,
		Status:       event.Status,
	}
}

// ListDoses 返回当前用户的全部服药记录
func (a *API) ListDoses(c *gin.Context) {
	events, err := a.doses.ListByUser(sessionFrom(c))
	if err != nil {
		a.handleServiceError(c, err, "获取服药记录失败")
		return
	}

	items := make([]dosePayload, 0, len(events))
	for _, event := range events {
		items = append(items, doseToPayload(event))
	}
	c.JSON(http.StatusOK, gin.H{"doses": items})
}

// LogDose 记录一次服药结果。occurred_at 省略时使用服务端当前时间，补录时需为 RFC3339 格式。
func (a *API) LogDose(c *gin.Context) {
	var payload doseRequest
	if !bindJSON(c, &payload, "请选择用药和服药状态") {
		return
	}

	status, err := db.ParseDoseStatus(payload.Status)
	if err != nil {
		respondError(c, http.StatusBadRequest, "服药状态只能是 Taken 或 Missed")
		return
	}

	sess := sessionFrom(c)
	var event *db.DoseEvent
	if raw := strings.TrimSpace(payload.OccurredAt); raw != "" {
		occurredAt, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			respondError(c, http.StatusBadRequest, "时间格式应为 RFC3339")
			return
		}
		event, err = a.doses.Append(sess, payload.MedicationID, occurredAt, status)
	} else {
		event, err = a.doses.LogDose(sess, payload.MedicationID, status)
	}
	if err != nil {
		a.handleServiceError(c, err, "记录服药失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"dose": doseToPayload(*event)})
}
