package models

import (
	"time"
)

// TaskStatus 定义了任务的几种可能状态
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
)

// AskRecord 代表一次 /ask 请求的持久化记录
type AskRecord struct {
	ID          string     `bson:"_id" json:"id"`                      // 请求ID，同时作为日志的 trace_id
	UserID      string     `bson:"user_id" json:"user_id,omitempty"`   // 鉴权开启时的用户
	Status      TaskStatus `bson:"status" json:"status"`               // 当前状态
	Message     string     `bson:"message" json:"message"`             // 用户输入
	Response    string     `bson:"response" json:"response,omitempty"` // 编排器的回答
	Error       string     `bson:"error" json:"error,omitempty"`       // 失败原因
	SubmittedAt time.Time  `bson:"submitted_at" json:"submitted_at"`   // 提交时间
	CompletedAt time.Time  `bson:"completed_at" json:"completed_at"`   // 完成时间
}
