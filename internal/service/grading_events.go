package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GradingEvent is published after every grading mutation.
type GradingEvent struct {
	Source    string    `json:"source"`
	Action    string    `json:"action"`
	ExamID    uint      `json:"exam_id"`
	StudentID *uint     `json:"student_id,omitempty"`
	Affected  int64     `json:"affected"`
	ActorID   uint      `json:"actor_id"`
	SentAt    time.Time `json:"sent_at"`
}

// GradingEventPublisher fans grading events out to downstream consumers.
type GradingEventPublisher interface {
	Publish(ctx context.Context, event GradingEvent)
}

type gradingEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewGradingEventPublisher publishes to Redis pub/sub and NATS when each is
// configured. channelBase "gema:exams" yields channel "gema:exams:grading" and
// subject "gema.exams.grading".
func NewGradingEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) GradingEventPublisher {
	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":grading"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".grading"
	}

	return &gradingEventPublisher{
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "grading_events").Logger(),
	}
}

// Publish is fire-and-forget: a failed publish never fails the grading write.
func (p *gradingEventPublisher) Publish(ctx context.Context, event GradingEvent) {
	event.Source = p.nodeID
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode grading event")
		return
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Str("action", event.Action).Msg("failed to publish grading event to redis")
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn().Err(err).Str("action", event.Action).Msg("failed to publish grading event to nats")
		}
	}
}
