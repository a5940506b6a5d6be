package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-bookworks/internal/logger"
	"ms-bookworks/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Topics Topics
	Logger *logger.Logger
}

type Topics struct {
	OrderStatus string
	OpsAlerts   string
}

func NewProducer(brokers []string, topics Topics, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish writes one message to the given topic.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

type statusEvent struct {
	OrderID    string             `json:"order_id"`
	FromStatus models.OrderStatus `json:"from_status"`
	ToStatus   models.OrderStatus `json:"to_status"`
	Runner     string             `json:"runner"`
	Timestamp  time.Time          `json:"timestamp"`
}

// PublishStatusChanged streams a pipeline transition event.
func (p *Producer) PublishStatusChanged(order *models.Order, from models.OrderStatus, runner string) error {
	event := statusEvent{
		OrderID:    order.OrderID,
		FromStatus: from,
		ToStatus:   order.Status,
		Runner:     runner,
		Timestamp:  time.Now(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if p.Logger != nil {
		p.Logger.LogKafka("publish", p.Topics.OrderStatus,
			fmt.Sprintf("order %s: %s -> %s", order.OrderID, from, order.Status))
	}
	return p.Publish(p.Topics.OrderStatus, order.OrderID, value)
}

type opsAlert struct {
	OrderID   string    `json:"order_id"`
	PageIndex int       `json:"page_index"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishOpsAlert pushes an operational alert with enough context to
// reproduce the failure (order id, page index, stage).
func (p *Producer) PublishOpsAlert(orderID string, pageIndex int, stage, message string) error {
	alert := opsAlert{
		OrderID:   orderID,
		PageIndex: pageIndex,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now(),
	}
	value, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	if p.Logger != nil {
		p.Logger.LogKafka("alert", p.Topics.OpsAlerts, fmt.Sprintf("order %s: %s", orderID, message))
	}
	return p.Publish(p.Topics.OpsAlerts, orderID, value)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
