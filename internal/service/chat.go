package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
)

const chatHistoryLimit = 10

// ChatReply is the assistant's answer to one chat turn.
type ChatReply struct {
	Reply         string `json:"reply"`
	SessionEnding bool   `json:"sessionEnding"`
}

// ChatService answers chat turns and schedules the stages that follow them.
type ChatService struct {
	store    Store
	model    *llm.Model
	signals  *SignalAggregator
	enqueuer Enqueuer
	detector SessionEndDetector
	metrics  *metrics.Collector
}

// NewChatService creates a new chat service.
func NewChatService(store Store, model *llm.Model, signals *SignalAggregator, enqueuer Enqueuer, detector SessionEndDetector, mc *metrics.Collector) *ChatService {
	return &ChatService{
		store:    store,
		model:    model,
		signals:  signals,
		enqueuer: enqueuer,
		detector: detector,
		metrics:  mc,
	}
}

type completeFunc func(ctx context.Context, systemPrompt, userPrompt string, opts ...llm.CallOption) (string, error)

// Reply answers one chat turn.
func (s *ChatService) Reply(ctx context.Context, userID, message string) (*ChatReply, error) {
	return s.turn(ctx, userID, message, s.model.Complete)
}

// ReplyStream answers one chat turn over the provider's streaming transport.
func (s *ChatService) ReplyStream(ctx context.Context, userID, message string) (*ChatReply, error) {
	return s.turn(ctx, userID, message, s.model.CompleteStream)
}

func (s *ChatService) turn(ctx context.Context, userID, message string, complete completeFunc) (reply *ChatReply, err error) {
	start := time.Now()
	defer func() { observe(s.metrics, metrics.OpChat, start, err) }()

	message = strings.TrimSpace(message)
	if err := requireField("userId", userID); err != nil {
		return nil, err
	}
	if err := requireField("message", message); err != nil {
		return nil, err
	}

	bundle := s.signals.GatherEach(ctx, userID, map[SignalKind]int{
		KindMemory:   1,
		KindMessages: chatHistoryLimit,
	})
	prompt := joinSections(
		section("حافظه درمانی", bundle.Render(KindMemory)),
		section("گفتگوی اخیر", bundle.Render(KindMessages)),
		section("پیام جدید کاربر", Truncate(message, MaxFieldRunes*4)),
	)

	text, err := complete(ctx, chatSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat reply: %w", err)
	}
	text = strings.TrimSpace(text)

	s.persistTurn(ctx, userID, message, text)

	reply = &ChatReply{Reply: text, SessionEnding: s.detector.IsSessionEnding(message)}
	s.schedule(userID, reply.SessionEnding)
	return reply, nil
}

// persistTurn stores both sides of the turn. Failures are logged so the
// reply still reaches the user.
func (s *ChatService) persistTurn(ctx context.Context, userID, message, reply string) {
	now := models.Now()
	msgs := []models.ChatMessage{
		{ID: models.NewID(), UserID: userID, Role: models.RoleUser, Content: message, CreatedAt: now},
		{ID: models.NewID(), UserID: userID, Role: models.RoleAssistant, Content: reply, CreatedAt: now.Add(time.Microsecond)},
	}
	for _, m := range msgs {
		if err := s.store.CreateChatMessage(ctx, m); err != nil {
			slog.Error("failed to persist chat message", "user_id", userID, "role", m.Role, "error", err)
		}
	}
}

func (s *ChatService) schedule(userID string, sessionEnding bool) {
	if s.enqueuer == nil {
		return
	}
	s.enqueuer.Enqueue(Task{Stage: StageConsolidateMemory, UserID: userID})
	if sessionEnding {
		s.enqueuer.Enqueue(Task{Stage: StageGeneratePlan, UserID: userID})
	}
}
