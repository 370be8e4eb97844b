// Package messaging 订单事件 outbox：事务内落库，后台投递到 Kafka
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/mq"
	"github.com/wyfcoding/ecommerce/pkg/utils"
	"gorm.io/gorm"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	// StatusParked 超过最大投递次数，需人工排查后重置为 pending
	StatusParked = "parked"
)

// OutboxMessage 待投递消息
type OutboxMessage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	EventType string    `gorm:"type:varchar(100);index;not null"`
	EventKey  string    `gorm:"type:varchar(64)"`
	Payload   string    `gorm:"type:text;not null"`
	Status    string    `gorm:"type:varchar(20);index;not null"`
	Attempts  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "order_outbox_messages"
}

// AutoMigrate 迁移 outbox 表
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&OutboxMessage{})
}

// OutboxEventPublisher 将事件写入 outbox 表，随业务事务一起提交
type OutboxEventPublisher struct {
	db *gorm.DB
}

// NewOutboxEventPublisher 创建 outbox 事件发布器
func NewOutboxEventPublisher(gdb *gorm.DB) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: gdb}
}

// Publish 序列化事件并写入 outbox，ctx 中有事务时复用事务
func (p *OutboxEventPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", eventType, err)
	}
	msg := OutboxMessage{
		ID:        uuid.NewString(),
		EventType: eventType,
		EventKey:  key,
		Payload:   string(data),
		Status:    StatusPending,
	}
	if err := db.Conn(ctx, p.db).Create(&msg).Error; err != nil {
		logger.Error(ctx, "outbox.publish failed", "event_type", eventType, "error", err)
		return fmt.Errorf("failed to write outbox message: %w", err)
	}
	return nil
}

// Sender 消息发送端口，由 mq.KafkaProducer 实现
type Sender interface {
	Send(ctx context.Context, messages ...mq.Message) error
}

// RelayConfig 投递配置
type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	MaxAttempts int
}

// Relay 轮询 outbox 并投递
type Relay struct {
	db      *gorm.DB
	sender  Sender
	cfg     RelayConfig
	metrics *metrics.Metrics
}

// NewRelay 创建投递器
func NewRelay(gdb *gorm.DB, sender Sender, cfg RelayConfig, m *metrics.Metrics) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Relay{db: gdb, sender: sender, cfg: cfg, metrics: m}
}

// Topic 事件类型对应的 Kafka topic
func (r *Relay) Topic(eventType string) string {
	if r.cfg.TopicPrefix == "" {
		return eventType
	}
	return r.cfg.TopicPrefix + "." + eventType
}

// Run 周期投递直到 ctx 取消
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	logger.Info(ctx, "outbox relay started", "interval", r.cfg.Interval.String(), "batch_size", r.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessOnce(ctx); err != nil {
				logger.Warn(ctx, "outbox relay batch failed", "error", err)
			}
		}
	}
}

// ProcessOnce 投递一批待发送消息，返回成功条数
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	var batch []OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at asc").
		Limit(r.cfg.BatchSize).
		Find(&batch).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load outbox messages: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	msgs := make([]mq.Message, len(batch))
	ids := make([]string, len(batch))
	for i, m := range batch {
		ids[i] = m.ID
		msgs[i] = mq.Message{
			Topic:   r.Topic(m.EventType),
			Key:     m.EventKey,
			Value:   []byte(m.Payload),
			Headers: map[string]string{"event_id": m.ID, "event_type": m.EventType},
		}
	}

	err = utils.RetryWithBackoff(ctx, 3, 100*time.Millisecond, time.Second, func() error {
		return r.sender.Send(ctx, msgs...)
	})
	if err != nil {
		r.metrics.RecordOutbox("failed", len(batch))
		if perr := r.recordFailure(ctx, ids); perr != nil {
			return 0, fmt.Errorf("failed to send outbox batch: %w (bookkeeping: %w)", err, perr)
		}
		return 0, fmt.Errorf("failed to send outbox batch: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("id IN ?", ids).
		Update("status", StatusSent).Error; err != nil {
		return 0, fmt.Errorf("failed to mark outbox messages sent: %w", err)
	}
	r.metrics.RecordOutbox("sent", len(batch))
	return len(batch), nil
}

// recordFailure 累加投递次数，达到上限的消息转为 parked，不再阻塞后续消息
func (r *Relay) recordFailure(ctx context.Context, ids []string) error {
	if err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("id IN ?", ids).
		Update("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return fmt.Errorf("failed to increment outbox attempts: %w", err)
	}
	res := r.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("id IN ? AND attempts >= ?", ids, r.cfg.MaxAttempts).
		Update("status", StatusParked)
	if res.Error != nil {
		return fmt.Errorf("failed to park outbox messages: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.metrics.RecordOutbox("parked", int(res.RowsAffected))
		logger.Error(ctx, "outbox messages parked after max attempts",
			"count", res.RowsAffected, "max_attempts", r.cfg.MaxAttempts)
	}
	return nil
}

// Cleanup 删除 before 之前已投递的消息
func (r *Relay) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("status = ? AND updated_at < ?", StatusSent, before).Delete(&OutboxMessage{})
	return res.RowsAffected, res.Error
}
