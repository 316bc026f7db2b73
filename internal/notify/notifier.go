package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const Channel = "appointments.events"

const (
	KindBooked    = "appointment.booked"
	KindConfirmed = "appointment.confirmed"
	KindCanceled  = "appointment.canceled"
	KindCompleted = "appointment.completed"
)

// Event is the wire shape consumed by the messaging/notification side.
type Event struct {
	Kind          string         `json:"kind"`
	AppointmentID uuid.UUID      `json:"appointment_id"`
	ActorID       *uuid.UUID     `json:"actor_id,omitempty"`
	At            time.Time      `json:"at"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Notifier delivers events best-effort. Callers must never treat a
// delivery failure as a failed transition.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// LogNotifier just logs events. Used in dev when Redis pub/sub has no
// consumer wired up.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Publish(_ context.Context, ev Event) error {
	n.log.Info().
		Str("kind", ev.Kind).
		Str("appointment_id", ev.AppointmentID.String()).
		Msg("notification event")
	return nil
}
