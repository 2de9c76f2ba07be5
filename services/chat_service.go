//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"

	"soulconnect/domain"
	"soulconnect/runtime"
	"soulconnect/search"
)

type IChatService interface {
	FindOrCreatePrivateRoom(ctx context.Context, requesterID, counterpartID string) (domain.Room, error)
	CreateGroupRoom(requesterID string, participantIDs []string) (domain.Room, error)
	RoomsFor(identityID string) ([]domain.Room, error)
	History(cmd domain.HistoryCommand) ([]domain.Message, error)
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	Search(ctx context.Context, requesterID string, roomID domain.RoomID, query string, limit int) ([]search.Hit, error)
}

// ChatService is the REST-facing surface over the engine. The realtime
// gateway talks to the engine directly because it owns connections; REST
// callers have none, so sends from here reach members through their live
// connections only.
type ChatService struct {
	engine *runtime.Engine
	index  search.IMessageIndex
}

func NewChatService(engine *runtime.Engine, index search.IMessageIndex) *ChatService {
	return &ChatService{engine: engine, index: index}
}

func (s *ChatService) FindOrCreatePrivateRoom(ctx context.Context, requesterID, counterpartID string) (domain.Room, error) {
	return s.engine.FindOrCreatePrivateRoom(ctx, requesterID, counterpartID)
}

func (s *ChatService) CreateGroupRoom(requesterID string, participantIDs []string) (domain.Room, error) {
	return s.engine.CreateGroupRoom(requesterID, participantIDs)
}

func (s *ChatService) RoomsFor(identityID string) ([]domain.Room, error) {
	return s.engine.RoomsFor(identityID)
}

func (s *ChatService) History(cmd domain.HistoryCommand) ([]domain.Message, error) {
	return s.engine.History(cmd)
}

func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.engine.SendMessage(ctx, cmd)
}

// Search runs a full text query over one room's messages. Membership is
// enforced the same way History enforces it, by asking the engine first.
func (s *ChatService) Search(ctx context.Context, requesterID string, roomID domain.RoomID, query string, limit int) ([]search.Hit, error) {
	// An empty history read proves membership before touching the index.
	if _, err := s.engine.History(domain.HistoryCommand{
		Room:        roomID,
		RequesterID: requesterID,
		Page:        1,
		Limit:       1,
	}); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, roomID, query, limit)
}
