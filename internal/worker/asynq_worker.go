package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/provider"
	"github.com/musicfy-storefront/internal/queue"
	"github.com/musicfy-storefront/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentConfirm, c.handlePaymentConfirm)
	mux.HandleFunc(queue.TaskOrderStatusUpdate, c.handleOrderStatusUpdate)
}

func (c *Consumer) handlePaymentConfirm(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_payment_confirm_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentConfirmPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_confirm_unmarshal_failed", "error", err)
		return errors.Join(err, asynq.SkipRetry)
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_payment_confirm_skip_invalid_payload", "session_id", payload.SessionID)
		return nil
	}
	if c.CheckoutService == nil {
		logger.Warnw("worker_payment_confirm_skip_checkout_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.CheckoutService.ConfirmPayment(ctx, payload); err != nil {
		logger.Warnw("worker_payment_confirm_failed",
			"order_id", payload.OrderID,
			"session_id", payload.SessionID,
			"status", payload.Status,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderStatusUpdate(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_order_status_update_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderStatusUpdatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_status_update_unmarshal_failed", "error", err)
		return errors.Join(err, asynq.SkipRetry)
	}
	if payload.OrderID == 0 || !service.IsKnownOrderStatus(payload.Status) {
		logger.Debugw("worker_order_status_update_skip_invalid_payload", "order_id", payload.OrderID, "status", payload.Status)
		return nil
	}
	if c.CheckoutService == nil {
		logger.Warnw("worker_order_status_update_skip_checkout_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.CheckoutService.ApplyOrderStatus(ctx, payload); err != nil {
		logger.Warnw("worker_order_status_update_failed", "order_id", payload.OrderID, "status", payload.Status, "error", err)
		return err
	}
	return nil
}
