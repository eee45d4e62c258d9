package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/db"
	"github.com/medipredict/internal/service"
	"go.uber.org/zap"
)

type medicationRequest struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Schedule     string `json:"schedule"`
	Instructions string `json:"instructions"`
}

type medicationPayload struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name"`
	Dosage           string    `json:"dosage"`
	Schedule         string    `json:"schedule"`
	Instructions     string    `json:"instructions"`
	InstructionsHTML string    `json:"instructions_html,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type dueMedicationPayload struct {
	Medication  medicationPayload `json:"medication"`
	ScheduledAt time.Time         `json:"scheduled_at"`
}

func medicationToPayload(medication db.Medication) medicationPayload {
	return medicationPayload{
		ID:           medication.ID,
		Name:         medication.Name,
		Dosage:       medication.Dosage,
		Schedule:     medication.Schedule,
		Instructions: medication.Instructions,
		CreatedAt:    medication.CreatedAt,
	}
}

// ListMedications 返回当前用户的用药列表
func (a *API) ListMedications(c *gin.Context) {
	medications, err := a.medications.List(sessionFrom(c))
	if err != nil {
		a.handleServiceError(c, err, "获取用药列表失败")
		return
	}

	items := make([]medicationPayload, 0, len(medications))
	for _, medication := range medications {
		items = append(items, medicationToPayload(medication))
	}
	c.JSON(http.StatusOK, gin.H{"medications": items})
}

// CreateMedication 新增用药
func (a *API) CreateMedication(c *gin.Context) {
	var payload medicationRequest
	if !bindJSON(c, &payload, "请填写用药信息") {
		return
	}

	medication, err := a.medications.Create(sessionFrom(c), service.MedicationInput{
		Name:         payload.Name,
		Dosage:       payload.Dosage,
		Schedule:     payload.Schedule,
		Instructions: payload.Instructions,
	})
	if err != nil {
		a.handleServiceError(c, err, "创建用药失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"medication": medicationToPayload(*medication)})
}

// GetMedication 返回单个用药，附带渲染后的服用说明
func (a *API) GetMedication(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用药ID")
		return
	}

	medication, err := a.medications.Get(sessionFrom(c), id)
	if err != nil {
		a.handleServiceError(c, err, "获取用药失败")
		return
	}

	payload := medicationToPayload(*medication)
	rendered, err := renderMarkdown(medication.Instructions)
	if err != nil {
		a.logger.Warn("render instructions", zap.Uint("medication_id", medication.ID), zap.Error(err))
	} else {
		payload.InstructionsHTML = rendered
	}

	c.JSON(http.StatusOK, gin.H{"medication": payload})
}

// DueMedications 返回提醒窗口内需要服用的用药
func (a *API) DueMedications(c *gin.Context) {
	now := a.currentTime()
	due, err := a.medications.DueAt(sessionFrom(c), now, a.reminderWindow)
	if err != nil {
		a.handleServiceError(c, err, "获取提醒失败")
		return
	}

	items := make([]dueMedicationPayload, 0, len(due))
	for _, item := range due {
		items = append(items, dueMedicationPayload{
			Medication:  medicationToPayload(item.Medication),
			ScheduledAt: item.ScheduledAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"due":            items,
		"now":            now,
		"window_minutes": int(a.reminderWindow / time.Minute),
	})
}
