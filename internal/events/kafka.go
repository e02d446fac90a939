package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"agenda-backend/internal/appointments"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TypeCreated       = "appointment.created.v1"
	TypeStatusChanged = "appointment.status_changed.v1"
	TypeReminder      = "appointment.reminder.v1"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON payload of every appointment event. It never carries the
// cancellation token.
type Event struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	AppointmentID  string    `json:"appointment_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Service        string    `json:"service"`
	Date           string    `json:"date"`
	TimeSlot       string    `json:"time_slot"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
}

// KafkaPublisher publishes appointment lifecycle events, one topic per event
// type, keyed by appointment id so a given appointment stays ordered.
type KafkaPublisher struct {
	writer      MessageWriter
	topicPrefix string
	now         func() time.Time
}

func NewKafkaPublisher(brokers []string, topicPrefix string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return NewPublisherWithWriter(writer, topicPrefix), nil
}

func NewPublisherWithWriter(writer MessageWriter, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topicPrefix: topicPrefix, now: time.Now}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) AppointmentCreated(ctx context.Context, appt appointments.Appointment) error {
	return p.publish(ctx, TypeCreated, appt, "")
}

func (p *KafkaPublisher) AppointmentStatusChanged(ctx context.Context, appt appointments.Appointment, previous string) error {
	return p.publish(ctx, TypeStatusChanged, appt, previous)
}

func (p *KafkaPublisher) AppointmentReminder(ctx context.Context, appt appointments.Appointment) error {
	return p.publish(ctx, TypeReminder, appt, "")
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, appt appointments.Appointment, previous string) error {
	evt := Event{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		OccurredAt:     p.now().UTC(),
		AppointmentID:  appt.ID,
		Status:         appt.Status,
		PreviousStatus: previous,
		Service:        appt.Service,
		Date:           appt.Date,
		TimeSlot:       appt.TimeSlot,
		Name:           appt.Name,
		Email:          appt.Email,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topicPrefix + eventType,
		Key:   []byte(appt.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(evt.EventID)},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	return p.writer.WriteMessages(ctx, msg)
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
