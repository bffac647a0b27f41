package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

type fakeCompleter struct {
	requests []openai.ChatCompletionRequest
	reply    string
	err      error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}}},
	}, nil
}

type fakeProducts struct {
	rows  []models.Product
	limit int
}

func (f *fakeProducts) Snapshot(_ context.Context, limit int) ([]models.Product, error) {
	f.limit = limit
	return f.rows, nil
}

func newLimiter(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return redis.NewFromRaw(raw)
}

func newService(t *testing.T, completer Completer, products *fakeProducts, limiter redis.RateLimiter, cfg config.ChatConfig) Service {
	t.Helper()
	svc, err := NewService(completer, products, limiter, cfg, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc
}

func TestReplyBuildsPromptFromCatalogSnapshot(t *testing.T) {
	sale := int64(299)
	products := &fakeProducts{rows: []models.Product{
		{Name: "Bananas", Category: "Produce", PriceCents: 399, SalePriceCents: &sale, Stock: 4},
		{Name: "Saffron", Category: "Spices", PriceCents: 1299, Stock: 0},
	}}
	completer := &fakeCompleter{reply: "Bananas are on sale!"}
	svc := newService(t, completer, products, nil, config.ChatConfig{})

	reply, err := svc.Reply(context.Background(), uuid.New(), "  anything on sale?  ")
	require.NoError(t, err)
	assert.Equal(t, "Bananas are on sale!", reply.Message)
	assert.False(t, reply.Fallback)
	assert.Equal(t, 20, products.limit)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, openai.GPT4oMini, req.Model)
	assert.Equal(t, 300, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.True(t, strings.HasPrefix(req.Messages[0].Content, "You are a helpful customer support assistant for GroceryMart"))
	assert.Contains(t, req.Messages[0].Content, `{"name":"Bananas","category":"Produce","price":"2.99","in_stock":true}`)
	assert.Contains(t, req.Messages[0].Content, `"in_stock":false`)
	assert.Equal(t, "anything on sale?", req.Messages[1].Content)
}

func TestReplyFallsBackOnUpstreamFailure(t *testing.T) {
	svc := newService(t, &fakeCompleter{err: errors.New("503")}, &fakeProducts{}, nil, config.ChatConfig{})
	reply, err := svc.Reply(context.Background(), uuid.New(), "hello")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Equal(t, FallbackReply, reply.Message)

	empty := newService(t, &fakeCompleter{reply: "  "}, &fakeProducts{}, nil, config.ChatConfig{})
	reply, err = empty.Reply(context.Background(), uuid.New(), "hello")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)

	unconfigured := newService(t, nil, &fakeProducts{}, nil, config.ChatConfig{})
	reply, err = unconfigured.Reply(context.Background(), uuid.New(), "hello")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
}

func TestReplyValidatesMessage(t *testing.T) {
	svc := newService(t, &fakeCompleter{reply: "ok"}, &fakeProducts{}, nil, config.ChatConfig{})

	_, err := svc.Reply(context.Background(), uuid.New(), "   ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Reply(context.Background(), uuid.New(), strings.Repeat("a", 1001))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Reply(context.Background(), uuid.New(), strings.Repeat("é", 1000))
	assert.NoError(t, err)
}

func TestReplyIsRateLimitedPerUser(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc := newService(t, completer, &fakeProducts{}, newLimiter(t), config.ChatConfig{RateLimit: 2, RateWindow: time.Minute})
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := svc.Reply(ctx, user, "hi")
		require.NoError(t, err)
	}
	_, err := svc.Reply(ctx, user, "hi")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit))

	_, err = svc.Reply(ctx, uuid.New(), "hi")
	assert.NoError(t, err, "limit is per user")
	assert.Len(t, completer.requests, 3)
}
