package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"copilot-chat-go/internal/model"
	"copilot-chat-go/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeting = "Hello, I am your copilot. How can I help?"

func newTestService(t *testing.T) (*chatHistoryService, repository.ChatSessionRepository, repository.ChatMessageRepository) {
	t.Helper()
	sessions := repository.NewMemoryChatSessionRepository()
	messages := repository.NewMemoryChatMessageRepository()
	svc := NewChatHistoryService(sessions, messages, ChatHistoryConfig{
		GuestUserID:       "guest-user-id",
		InitialBotMessage: greeting,
	}).(*chatHistoryService)

	// 每次调用前进一秒的确定性时钟
	var mu sync.Mutex
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, sessions, messages
}

func TestGetOrCreateGuestSessionScenario(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, created, err := svc.GetOrCreateGuestSession(ctx, "u1", "My Chat")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultGuestSessionID, first.ID)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "My Chat", first.Title)

	msgs, err := svc.ListMessages(ctx, first.ID, 0, -1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.AuthorRoleBot, msgs[0].AuthorRole)
	assert.Equal(t, greeting, msgs[0].Content)
	assert.Equal(t, first.ID, msgs[0].ChatID)

	second, created, err := svc.GetOrCreateGuestSession(ctx, "u2", "Another title")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	msgs, err = svc.ListMessages(ctx, first.ID, 0, -1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "second create must not seed another greeting")
}

func TestGetOrCreateGuestSessionDefaultsUserID(t *testing.T) {
	svc, _, _ := newTestService(t)

	session, _, err := svc.GetOrCreateGuestSession(context.Background(), "", "Title")
	require.NoError(t, err)
	assert.Equal(t, "guest-user-id", session.UserID)
}

func TestGetOrCreateGuestSessionRequiresTitle(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.GetOrCreateGuestSession(context.Background(), "u1", "  ")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
}

func TestGetOrCreateGuestSessionConcurrent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	ids := make([]string, callers)
	createdCount := 0
	var mu sync.Mutex
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, created, err := svc.GetOrCreateGuestSession(ctx, fmt.Sprintf("u%d", i), "title")
			assert.NoError(t, err)
			ids[i] = s.ID
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	for _, id := range ids {
		assert.Equal(t, DefaultGuestSessionID, id)
	}
	msgs, err := svc.ListMessages(ctx, DefaultGuestSessionID, 0, -1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

// racingSessionRepository 模拟另一个实例在本次查找与创建之间抢先创建了会话。
type racingSessionRepository struct {
	repository.ChatSessionRepository
	once   sync.Once
	winner model.ChatSession
}

func (r *racingSessionRepository) FindByID(ctx context.Context, id string) (model.ChatSession, error) {
	raced := false
	r.once.Do(func() {
		raced = true
		_ = r.ChatSessionRepository.Create(ctx, r.winner)
	})
	if raced {
		return model.ChatSession{}, repository.ErrNotFound
	}
	return r.ChatSessionRepository.FindByID(ctx, id)
}

func TestGetOrCreateGuestSessionRecoversDuplicateKey(t *testing.T) {
	winner := model.ChatSession{ID: DefaultGuestSessionID, UserID: "other", Title: "Winner"}
	sessions := &racingSessionRepository{ChatSessionRepository: repository.NewMemoryChatSessionRepository(), winner: winner}
	messages := repository.NewMemoryChatMessageRepository()
	svc := NewChatHistoryService(sessions, messages, ChatHistoryConfig{InitialBotMessage: greeting})

	got, created, err := svc.GetOrCreateGuestSession(context.Background(), "u1", "Loser")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner, got)

	msgs, err := messages.FindByChatID(context.Background(), DefaultGuestSessionID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "the losing caller must not seed a greeting")
}

// flakyMessageRepository 让第一次 Create 失败，之后恢复正常。
type flakyMessageRepository struct {
	repository.ChatMessageRepository
	failed bool
}

func (r *flakyMessageRepository) Create(ctx context.Context, message model.ChatMessage) error {
	if !r.failed {
		r.failed = true
		return errors.New("transient")
	}
	return r.ChatMessageRepository.Create(ctx, message)
}

func TestGetOrCreateGuestSessionReseedsMissingGreeting(t *testing.T) {
	messages := &flakyMessageRepository{ChatMessageRepository: repository.NewMemoryChatMessageRepository()}
	svc := NewChatHistoryService(repository.NewMemoryChatSessionRepository(), messages, ChatHistoryConfig{InitialBotMessage: greeting})
	ctx := context.Background()

	_, _, err := svc.GetOrCreateGuestSession(ctx, "u1", "My Chat")
	require.Error(t, err)

	session, created, err := svc.GetOrCreateGuestSession(ctx, "u2", "Other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u1", session.UserID)

	msgs, err := svc.ListMessages(ctx, session.ID, 0, -1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, greeting, msgs[0].Content)
	assert.Equal(t, model.AuthorRoleBot, msgs[0].AuthorRole)

	_, _, err = svc.GetOrCreateGuestSession(ctx, "u3", "Third")
	require.NoError(t, err)
	msgs, err = svc.ListMessages(ctx, session.ID, 0, -1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

type failingSessionRepository struct {
	repository.ChatSessionRepository
	err error
}

func (r failingSessionRepository) FindByID(context.Context, string) (model.ChatSession, error) {
	return model.ChatSession{}, r.err
}

func TestGetOrCreateGuestSessionPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewChatHistoryService(failingSessionRepository{err: boom}, repository.NewMemoryChatMessageRepository(), ChatHistoryConfig{})

	_, _, err := svc.GetOrCreateGuestSession(context.Background(), "u1", "title")
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNotFound(err))
}

func TestGetSessionNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "missing")
}

func TestEditSessionTitle(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	ctx := context.Background()
	original, _, err := svc.GetOrCreateGuestSession(ctx, "u1", "My Chat")
	require.NoError(t, err)

	edited, err := svc.EditSessionTitle(ctx, original.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", edited.Title)
	assert.Equal(t, original.ID, edited.ID)
	assert.Equal(t, original.UserID, edited.UserID)

	stored, err := sessions.FindByID(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, edited, stored)
}

func TestEditSessionTitleErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EditSessionTitle(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrChatNotFound)

	_, err = svc.EditSessionTitle(ctx, "missing", "")
	assert.True(t, IsValidation(err))
}

func TestAppendMessageThenList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	session, _, err := svc.GetOrCreateGuestSession(ctx, "u1", "My Chat")
	require.NoError(t, err)

	appended, err := svc.AppendMessage(ctx, session.ID, model.AuthorRoleUser, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, appended.ID)

	msgs, err := svc.ListMessages(ctx, session.ID, 0, -1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, model.AuthorRoleUser, msgs[0].AuthorRole)
	assert.Equal(t, session.ID, msgs[0].ChatID)
	assert.Equal(t, greeting, msgs[1].Content)
	assert.Equal(t, appended, msgs[0])
}

func TestAppendMessageValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, DefaultGuestSessionID, model.AuthorRole("participant"), "hi")
	assert.True(t, IsValidation(err))

	_, err = svc.AppendMessage(ctx, DefaultGuestSessionID, model.AuthorRoleUser, "")
	assert.True(t, IsValidation(err))

	_, err = svc.AppendMessage(ctx, "missing", model.AuthorRoleUser, "hi")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestListMessagesUnknownVersusEmpty(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListMessages(ctx, "unknown", 0, -1)
	assert.ErrorIs(t, err, ErrChatNotFound)

	require.NoError(t, sessions.Create(ctx, model.ChatSession{ID: "empty", UserID: "u", Title: "t"}))
	_, err = svc.ListMessages(ctx, "empty", 0, -1)
	assert.ErrorIs(t, err, ErrNoMessages)
	assert.True(t, IsNotFound(err))
}

func TestListMessagesPaginationBounds(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	session, _, err := svc.GetOrCreateGuestSession(ctx, "u1", "My Chat")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := svc.AppendMessage(ctx, session.ID, model.AuthorRoleUser, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	const total = 5

	for n := 0; n <= total+2; n++ {
		msgs, err := svc.ListMessages(ctx, session.ID, n, -1)
		require.NoError(t, err)
		assert.Len(t, msgs, max(0, total-n), "startIndex=%d", n)
	}
	for k := 0; k <= total+2; k++ {
		msgs, err := svc.ListMessages(ctx, session.ID, 0, k)
		require.NoError(t, err)
		assert.Len(t, msgs, min(k, total), "count=%d", k)
	}

	msgs, err := svc.ListMessages(ctx, session.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m1", msgs[1].Content)

	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp))
	}
}
