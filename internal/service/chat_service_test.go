package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/repository"
)

func newTestChatService() (*ChatService, *mockChatRepo, *mockSkillRepo, *mockProfileRepo, *recordingNotifier) {
	chats := new(mockChatRepo)
	skills := new(mockSkillRepo)
	profiles := new(mockProfileRepo)
	n := &recordingNotifier{}
	return NewChatService(chats, skills, profiles, n), chats, skills, profiles, n
}

func TestChatService_Open(t *testing.T) {
	svc, chats, skills, profiles, _ := newTestChatService()
	client, master := uuid.New(), uuid.New()
	skill := &models.Skill{ID: uuid.New(), OwnerID: master}
	chat := &models.Chat{ID: uuid.New(), ClientID: client, MasterID: master, SkillID: &skill.ID}

	profiles.On("GetProfile", mock.Anything, master).Return(&models.Profile{}, nil)
	skills.On("GetByID", mock.Anything, skill.ID).Return(skill, nil)
	chats.On("GetOrCreate", mock.Anything, client, master, &skill.ID).Return(chat, true, nil)

	res, err := svc.Open(context.Background(), client, master, &skill.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, chat.ID, res.Chat.ID)
}

func TestChatService_OpenRejections(t *testing.T) {
	svc, _, skills, profiles, _ := newTestChatService()
	client, master, stranger := uuid.New(), uuid.New(), uuid.New()
	foreign := &models.Skill{ID: uuid.New(), OwnerID: stranger}

	profiles.On("GetProfile", mock.Anything, master).Return(&models.Profile{}, nil)
	profiles.On("GetProfile", mock.Anything, stranger).Return(nil, repository.ErrUserNotFound)
	skills.On("GetByID", mock.Anything, foreign.ID).Return(foreign, nil)
	ctx := context.Background()

	_, err := svc.Open(ctx, client, client, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Open(ctx, client, stranger, nil)
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.Open(ctx, client, master, &foreign.ID)
	assert.True(t, apperror.IsValidation(err))
}

func TestChatService_SendNotifiesCounterpart(t *testing.T) {
	svc, chats, _, _, n := newTestChatService()
	client, master := uuid.New(), uuid.New()
	chat := &models.Chat{ID: uuid.New(), ClientID: client, MasterID: master}

	chats.On("GetByID", mock.Anything, chat.ID).Return(chat, nil)
	chats.On("CreateMessage", mock.Anything, mock.AnythingOfType("*models.Message")).Return(nil)

	msg, err := svc.Send(context.Background(), chat.ID, master, "  Добрый день!  ")
	require.NoError(t, err)
	assert.Equal(t, "Добрый день!", msg.Content)
	assert.Equal(t, models.MessageKindText, msg.Kind)
	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, []uuid.UUID{client}, n.users)
	assert.Equal(t, []string{EventChatMessage}, n.events)
}

func TestChatService_SendValidation(t *testing.T) {
	svc, chats, _, _, n := newTestChatService()
	chat := &models.Chat{ID: uuid.New(), ClientID: uuid.New(), MasterID: uuid.New()}
	chats.On("GetByID", mock.Anything, chat.ID).Return(chat, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, chat.ID, chat.ClientID, "   ")
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Send(ctx, chat.ID, chat.ClientID, strings.Repeat("а", 4001))
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Send(ctx, chat.ID, uuid.New(), "привет")
	assert.True(t, apperror.IsForbidden(err))

	assert.Empty(t, n.events)
	chats.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestChatService_MessagesAndRead(t *testing.T) {
	svc, chats, _, _, _ := newTestChatService()
	chat := &models.Chat{ID: uuid.New(), ClientID: uuid.New(), MasterID: uuid.New()}
	chats.On("GetByID", mock.Anything, chat.ID).Return(chat, nil)
	chats.On("ListMessages", mock.Anything, chat.ID, 100, 0).Return([]models.Message{{Content: "a"}}, 1, nil)
	chats.On("MarkRead", mock.Anything, chat.ID, chat.MasterID).Return(int64(3), nil)
	ctx := context.Background()

	msgs, total, err := svc.Messages(ctx, chat.ID, chat.ClientID, 500, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, msgs, 1)

	read, err := svc.Read(ctx, chat.ID, chat.MasterID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), read)

	_, _, err = svc.Messages(ctx, chat.ID, uuid.New(), 10, 0)
	assert.True(t, apperror.IsForbidden(err))
}

func TestChatService_Complete(t *testing.T) {
	svc, chats, _, _, n := newTestChatService()
	chat := &models.Chat{ID: uuid.New(), ClientID: uuid.New(), MasterID: uuid.New()}
	done := *chat
	done.IsCompleted = true

	chats.On("GetByID", mock.Anything, chat.ID).Return(chat, nil).Once()
	chats.On("Complete", mock.Anything, chat.ID, chatCompletedText).Return(&done, nil)

	got, err := svc.Complete(context.Background(), chat.ID, chat.MasterID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.Equal(t, []uuid.UUID{chat.ClientID}, n.users)

	chats.On("GetByID", mock.Anything, chat.ID).Return(&done, nil)
	_, err = svc.Complete(context.Background(), chat.ID, chat.ClientID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
}

func TestChatService_CompleteRaceReportsConflict(t *testing.T) {
	svc, chats, _, _, n := newTestChatService()
	chat := &models.Chat{ID: uuid.New(), ClientID: uuid.New(), MasterID: uuid.New()}

	// оба участника прочитали незавершённый чат, второй упирается в условие UPDATE
	chats.On("GetByID", mock.Anything, chat.ID).Return(chat, nil)
	chats.On("Complete", mock.Anything, chat.ID, chatCompletedText).Return(nil, repository.ErrChatAlreadyCompleted)

	_, err := svc.Complete(context.Background(), chat.ID, chat.ClientID)
	assert.ErrorIs(t, err, apperror.ErrChatAlreadyCompleted)
	assert.Empty(t, n.events, "второе системное сообщение не рассылается")
}
