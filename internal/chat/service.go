package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

const (
	maxMessageLength = 1000

	// FallbackReply is returned whenever the completion API cannot answer.
	FallbackReply = "I'm here to help! You can ask me about products, orders, or any questions about shopping at GroceryMart."

	systemPromptTemplate = "You are a helpful customer support assistant for GroceryMart, an online grocery store. " +
		"Help customers with product queries, order tracking, and general questions. " +
		"Be friendly, concise, and helpful. Available products include: %s"
)

// Completer is the slice of the OpenAI client the assistant needs.
type Completer interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type productSnapshotter interface {
	Snapshot(ctx context.Context, limit int) ([]models.Product, error)
}

// Reply is the assistant answer returned to the storefront.
type Reply struct {
	Message  string `json:"message"`
	Fallback bool   `json:"fallback"`
}

// Service answers shopper questions. No conversation state is kept between calls.
type Service interface {
	Reply(ctx context.Context, userID uuid.UUID, message string) (*Reply, error)
}

type service struct {
	completer Completer
	products  productSnapshotter
	limiter   redis.RateLimiter
	cfg       config.ChatConfig
	logg      *logger.Logger
}

// NewClient builds the OpenAI client from config; it returns nil without an API key.
func NewClient(cfg config.ChatConfig) *openai.Client {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// NewService wires the assistant. A nil completer always answers with the fallback.
func NewService(completer Completer, products productSnapshotter, limiter redis.RateLimiter, cfg config.ChatConfig, logg *logger.Logger) (Service, error) {
	if products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = 20
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &service{completer: completer, products: products, limiter: limiter, cfg: cfg, logg: logg}, nil
}

func (s *service) Reply(ctx context.Context, userID uuid.UUID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "message must be at most %d characters", maxMessageLength)
	}
	ctx = s.logg.WithField(ctx, "user_id", userID.String())

	if err := s.allow(ctx, userID); err != nil {
		return nil, err
	}
	if s.completer == nil {
		return &Reply{Message: FallbackReply, Fallback: true}, nil
	}

	prompt, err := s.systemPrompt(ctx)
	if err != nil {
		s.logg.Error(ctx, "chat product context failed", err)
		return &Reply{Message: FallbackReply, Fallback: true}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	resp, err := s.completer.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		s.logg.Error(ctx, "chat completion failed", err)
		return &Reply{Message: FallbackReply, Fallback: true}, nil
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		s.logg.Warn(ctx, "chat completion returned no content")
		return &Reply{Message: FallbackReply, Fallback: true}, nil
	}
	return &Reply{Message: resp.Choices[0].Message.Content}, nil
}

func (s *service) allow(ctx context.Context, userID uuid.UUID) error {
	if s.limiter == nil || s.cfg.RateLimit <= 0 {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "chat:"+userID.String(), int64(s.cfg.RateLimit), s.cfg.RateWindow)
	if err != nil {
		s.logg.Error(ctx, "chat rate limiter unavailable", err)
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many chat messages, try again shortly")
	}
	return nil
}

type productContext struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    string `json:"price"`
	InStock  bool   `json:"in_stock"`
}

func (s *service) systemPrompt(ctx context.Context) (string, error) {
	rows, err := s.products.Snapshot(ctx, s.cfg.ContextLimit)
	if err != nil {
		return "", err
	}
	snapshot := make([]productContext, 0, len(rows))
	for _, p := range rows {
		snapshot = append(snapshot, productContext{
			Name:     p.Name,
			Category: p.Category,
			Price:    types.Money(p.EffectivePriceCents()).String(),
			InStock:  p.InStock(),
		})
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(systemPromptTemplate, raw), nil
}
