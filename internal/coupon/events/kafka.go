package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"couponhub/internal/coupon"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const EventTypeIssued = "coupon.issued"

// IssuedEvent - сообщение о выданном купоне.
type IssuedEvent struct {
	Type       string    `json:"type"`
	IssuanceID int64     `json:"issuance_id"`
	CouponID   int64     `json:"coupon_id"`
	UserID     int64     `json:"user_id"`
	IssuedAt   time.Time `json:"issued_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher публикует события выдачи; ключ сообщения - coupon_id,
// так что события одного купона идут в одну партицию.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishIssued(ctx context.Context, iss *coupon.Issuance) error {
	body, err := json.Marshal(IssuedEvent{
		Type:       EventTypeIssued,
		IssuanceID: iss.ID,
		CouponID:   iss.CouponID,
		UserID:     iss.UserID,
		IssuedAt:   iss.IssuedAt,
	})
	if err != nil {
		return errors.Wrap(err, "marshal issued event")
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(iss.CouponID, 10)),
		Value: body,
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	return errors.Wrap(p.writer.WriteMessages(ctx, msg), "write issued event")
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier адаптирует заголовки kafka к propagation.TextMapCarrier.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
