package queue

import (
	"encoding/json"

	"github.com/musicfy-storefront/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentConfirm 支付确认任务
	TaskPaymentConfirm = constants.TaskPaymentConfirm
	// TaskOrderStatusUpdate 订单状态回写任务
	TaskOrderStatusUpdate = constants.TaskOrderStatusUpdate
)

// PaymentConfirmPayload 支付确认任务载荷
type PaymentConfirmPayload struct {
	OrderID   uint64 `json:"order_id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	EventID   string `json:"event_id,omitempty"`
}

// OrderStatusUpdatePayload 订单状态回写任务载荷
type OrderStatusUpdatePayload struct {
	OrderID uint64 `json:"order_id"`
	Status  string `json:"status"`
}

// NewPaymentConfirmTask 创建支付确认任务
func NewPaymentConfirmTask(payload PaymentConfirmPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentConfirm, body), nil
}

// NewOrderStatusUpdateTask 创建订单状态回写任务
func NewOrderStatusUpdateTask(payload OrderStatusUpdatePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderStatusUpdate, body), nil
}
