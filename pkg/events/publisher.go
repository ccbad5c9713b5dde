package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"learnpath_backend/pkg/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AssociationEvent 结构关联变更事件，供下游服务做缓存失效。
// 至少一次投递，投递失败只记录日志，不向调用方传播。
type AssociationEvent struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"` // e.g. "section.created", "stage.reordered"
	CourseID   uint      `json:"courseId,omitempty"`
	ChapterID  uint      `json:"chapterId,omitempty"`
	SectionID  uint      `json:"sectionId,omitempty"`
	StageID    uint      `json:"stageId,omitempty"`
	ContentIDs []uint    `json:"contentIds,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Notifier 进程启动时构造一次，按引用注入到需要它的边界组件
type Notifier interface {
	Publish(event AssociationEvent)
	Close() error
}

type RabbitNotifier struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	enabled      bool
}

func NewRabbitNotifier(uri, exchange string) (*RabbitNotifier, error) {
	if uri == "" {
		logger.Log.Warn("RabbitMQ URI is empty, association events are disabled")
		return &RabbitNotifier{enabled: false}, nil
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if exchange == "" {
		exchange = "learnpath.events"
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitNotifier{
		conn:         conn,
		channel:      channel,
		exchangeName: exchange,
		enabled:      true,
	}, nil
}

// Publish fire-and-forget 发布。失败记录日志后返回，调用方不感知。
func (n *RabbitNotifier) Publish(event AssociationEvent) {
	if !n.enabled {
		return
	}

	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("failed to marshal association event",
			zap.String("event_type", event.EventType), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = n.channel.PublishWithContext(
		ctx,
		n.exchangeName,  // exchange
		event.EventType, // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		logger.Log.Error("failed to publish association event",
			zap.String("event_type", event.EventType), zap.Error(err))
		return
	}

	logger.Log.Debug("association event published", zap.String("event_type", event.EventType))
}

func (n *RabbitNotifier) Close() error {
	if !n.enabled {
		return nil
	}
	if err := n.channel.Close(); err != nil {
		return err
	}
	return n.conn.Close()
}

// NoopNotifier 测试及事件被关闭时使用
type NoopNotifier struct{}

func (NoopNotifier) Publish(event AssociationEvent) {}
func (NoopNotifier) Close() error                   { return nil }
