package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yuchen-w/CampusMarketBack/internal/models"
)

type stubUserReader struct {
	user *models.User
	err  error
}

func (r *stubUserReader) GetByID(_ context.Context, _ int64) (*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.user, nil
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	service := NewChatService(nil, nil, nil, &stubUserReader{})

	for _, body := range []string{"", "   ", "\n\t "} {
		_, err := service.SendMessage(context.Background(), 1, 5, body)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("body %q: expected ErrInvalidInput, got %v", body, err)
		}
	}
}

func TestSendMessageRejectsInvalidConversationID(t *testing.T) {
	service := NewChatService(nil, nil, nil, &stubUserReader{})

	_, err := service.SendMessage(context.Background(), 1, 0, "hello")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateDirectConversationRejectsSelfPeer(t *testing.T) {
	service := NewChatService(nil, nil, nil, &stubUserReader{})

	_, err := service.CreateDirectConversation(context.Background(), 42, 42)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self peer, got %v", err)
	}

	_, err = service.CreateDirectConversation(context.Background(), 42, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero peer, got %v", err)
	}
}

func TestCreateDirectConversationUnknownPeer(t *testing.T) {
	service := NewChatService(nil, nil, nil, &stubUserReader{err: pgx.ErrNoRows})

	_, err := service.CreateDirectConversation(context.Background(), 42, 7)
	if !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("expected ErrPeerNotFound, got %v", err)
	}
}

func TestListMessagesValidatesArguments(t *testing.T) {
	service := NewChatService(nil, nil, nil, &stubUserReader{})

	if _, err := service.ListMessages(context.Background(), 1, 0, time.Time{}, 10); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad conversation id, got %v", err)
	}
	if _, err := service.ListMessages(context.Background(), 1, 5, time.Time{}, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad limit, got %v", err)
	}
}

func TestMarkReadValidatesArguments(t *testing.T) {
	service := NewChatService(nil, nil, nil, &stubUserReader{})

	if err := service.MarkRead(context.Background(), 1, 0, 3); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad conversation id, got %v", err)
	}
	if err := service.MarkRead(context.Background(), 1, 5, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad message id, got %v", err)
	}
}

func TestFormatChatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	formatted := FormatChatTimestamp(ts)
	if formatted != "2026-03-01T14:30:00Z" {
		t.Fatalf("expected UTC RFC3339, got %q", formatted)
	}
}
