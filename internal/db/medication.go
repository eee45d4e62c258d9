package db

import "time"

// Medication 定义了用药模型
// Schedule 为时段标签（Morning/Evening 等）或具体时间 15:04，作为分类特征使用
// Instructions 为医嘱，Markdown 格式，展示时渲染并清洗
// 目前不提供修改/删除路径，保证历史服药记录引用的时段不变
type Medication struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	User         User   `gorm:"constraint:OnDelete:RESTRICT"`
	Name         string `gorm:"not null"`
	Dosage       string
	Schedule     string
	Instructions string
	CreatedAt    time.Time
}
