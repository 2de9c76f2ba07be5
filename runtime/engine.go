package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"soulconnect/contract"
	"soulconnect/domain"
	"soulconnect/domain/event"
	"soulconnect/errors"
	"soulconnect/observability"
	"soulconnect/repositories"
)

const personaReplyTimeout = 15 * time.Second

// Engine drives the connection lifecycle and the message send flow
// (Draft -> Persisted -> Delivered). One transport read loop calls into
// the engine per connection, which is what gives per-connection ordering:
// a disconnect is only processed after the sends that preceded it.
type Engine struct {
	log        *slog.Logger
	registry   contract.IRegistry
	router     contract.IRouter
	identities repositories.IIdentityRepository
	rooms      repositories.IRoomRepository
	messages   repositories.IMessageRepository
	selector   contract.IResponseSelector
	metrics    *observability.Metrics
}

func NewEngine(log *slog.Logger, registry contract.IRegistry, router contract.IRouter,
	identities repositories.IIdentityRepository, rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository, selector contract.IResponseSelector,
	metrics *observability.Metrics) *Engine {
	return &Engine{
		log:        log,
		registry:   registry,
		router:     router,
		identities: identities,
		rooms:      rooms,
		messages:   messages,
		selector:   selector,
		metrics:    metrics,
	}
}

// Connect registers a live connection and promotes the identity to
// online, notifying its rooms if that is a presence transition.
func (e *Engine) Connect(ctx context.Context, connectionID, identityID, displayName string, sink contract.EventSink) error {
	if err := e.registry.Register(connectionID, identityID, displayName, sink); err != nil {
		return err
	}
	e.metrics.ActiveConnections.Inc()
	e.Touch(ctx, identityID)
	return nil
}

// Disconnect tears a connection down exactly once. When it was the
// identity's last connection, the identity is marked offline in the
// durable record and its rooms are notified.
func (e *Engine) Disconnect(ctx context.Context, connectionID string) {
	conn, found := e.registry.Unregister(connectionID)
	if !found {
		return
	}
	e.metrics.ActiveConnections.Dec()

	if e.registry.ConnectionsForIdentity(conn.IdentityID) > 0 {
		return
	}
	now := time.Now().UTC()
	if err := e.identities.UpdateLastActive(conn.IdentityID, now, false); err != nil {
		e.log.Warn("Failed to persist offline state", "identity_id", conn.IdentityID, "error", err)
	}
	e.metrics.PresenceTransitions.WithLabelValues(string(domain.PresenceOffline)).Inc()
	e.notifyRooms(ctx, conn.IdentityID, conn.DisplayName, domain.PresenceOffline, now)
}

func (e *Engine) JoinRoom(connectionID string, roomID domain.RoomID) error {
	return e.router.Join(connectionID, roomID)
}

func (e *Engine) LeaveRoom(connectionID string, roomID domain.RoomID) {
	e.router.Leave(connectionID, roomID)
}

// SendMessage runs the full send flow. The room membership snapshot is
// taken before persisting and no room state is locked across the store
// call, so a slow disk never stalls other members' fan-out.
func (e *Engine) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	// Draft
	if strings.TrimSpace(cmd.Content) == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}
	room, err := e.rooms.Get(cmd.Room)
	if err != nil {
		return domain.Message{}, err
	}
	if !room.HasParticipant(cmd.SenderID) {
		return domain.Message{}, errors.ErrNotAMember
	}
	kind := cmd.Kind
	if kind == "" {
		kind = domain.MessageText
	}

	// Persisted: on failure the send is reported to the sender only,
	// nothing is broadcast.
	msg, err := e.messages.Append(domain.Message{
		Room:       cmd.Room,
		SenderID:   cmd.SenderID,
		SenderName: cmd.SenderName,
		Content:    cmd.Content,
		Kind:       kind,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	if err := e.rooms.TouchActivity(cmd.Room, msg.SentAt); err != nil {
		e.log.Warn("Failed to touch room activity", "room_id", cmd.Room, "error", err)
	}

	// Delivered
	e.router.Broadcast(ctx, event.MessageDelivered{
		ID:         msg.ID,
		Room:       msg.Room,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Kind:       msg.Kind,
		At:         msg.SentAt,
	})
	e.metrics.MessagesSent.Inc()
	e.Touch(ctx, cmd.SenderID)

	e.triggerPersonas(room, msg)
	return msg, nil
}

// Typing fans the indicator out to everyone but the typist's own
// connection. Indicators are ephemeral and never persisted.
func (e *Engine) Typing(ctx context.Context, cmd domain.TypingCommand) {
	e.router.BroadcastExcept(ctx, event.Typing{
		Room:        cmd.Room,
		IdentityID:  cmd.IdentityID,
		DisplayName: cmd.DisplayName,
		Typing:      cmd.Typing,
	}, cmd.ConnectionID)
	e.Touch(ctx, cmd.IdentityID)
}

// Touch refreshes the identity's durable activity timestamp. When the
// identity was offline before the touch, the transition back to online
// is broadcast to its rooms.
func (e *Engine) Touch(ctx context.Context, identityID string) {
	now := time.Now().UTC()
	identity, err := e.identities.Get(identityID)
	if err != nil {
		e.log.Warn("Touch on unknown identity", "identity_id", identityID, "error", err)
		return
	}
	wasOffline := identity.Presence(now) == domain.PresenceOffline
	if err := e.identities.UpdateLastActive(identityID, now, true); err != nil {
		e.log.Warn("Failed to persist activity", "identity_id", identityID, "error", err)
		return
	}
	if wasOffline {
		e.metrics.PresenceTransitions.WithLabelValues(string(domain.PresenceOnline)).Inc()
		e.notifyRooms(ctx, identityID, identity.DisplayName, domain.PresenceOnline, now)
	}
}

// CurrentPresence computes the live classification from the durable
// record; it is never read from a cached flag.
func (e *Engine) CurrentPresence(identityID string) (domain.Presence, error) {
	identity, err := e.identities.Get(identityID)
	if err != nil {
		return domain.PresenceOffline, err
	}
	return identity.Presence(time.Now().UTC()), nil
}

// History returns one page of room history, oldest-to-newest, after
// checking the requester belongs to the room.
func (e *Engine) History(cmd domain.HistoryCommand) ([]domain.Message, error) {
	room, err := e.rooms.Get(cmd.Room)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(cmd.RequesterID) {
		return nil, errors.ErrNotAMember
	}
	return e.messages.GetPage(cmd.Room, cmd.Page, cmd.Limit)
}

func (e *Engine) RoomsFor(identityID string) ([]domain.Room, error) {
	return e.rooms.ForIdentity(identityID)
}

func (e *Engine) FindOrCreatePrivateRoom(ctx context.Context, idA, idB string) (domain.Room, error) {
	return e.router.FindOrCreatePrivateRoom(ctx, idA, idB)
}

// CreateGroupRoom opens a room for the requester and at least two other
// participants. Unlike private rooms, every call creates a fresh room;
// the same set of people can hold several group conversations.
func (e *Engine) CreateGroupRoom(requesterID string, participantIDs []string) (domain.Room, error) {
	seen := map[string]bool{requesterID: true}
	members := []string{requesterID}
	for _, id := range participantIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	if len(members) < 3 {
		return domain.Room{}, errors.ErrTooFewParticipants
	}
	for _, id := range members {
		if _, err := e.identities.Get(id); err != nil {
			return domain.Room{}, err
		}
	}
	return e.rooms.CreateGroup(members, time.Now().UTC())
}

// triggerPersonas invokes the response selector for every synthetic
// participant other than the sender. Replies re-enter SendMessage, so
// they are persisted and fanned out like any other message. Synthetic
// senders never trigger replies; that guard is what terminates the
// recursion when two personas share a room.
func (e *Engine) triggerPersonas(room domain.Room, msg domain.Message) {
	sender, err := e.identities.Get(msg.SenderID)
	if err == nil && sender.Synthetic {
		return
	}
	for _, participantID := range room.Participants {
		if participantID == msg.SenderID {
			continue
		}
		participant, err := e.identities.Get(participantID)
		if err != nil || !participant.Synthetic {
			continue
		}
		go e.personaReply(participant, msg)
	}
}

func (e *Engine) personaReply(persona domain.Identity, trigger domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), personaReplyTimeout)
	defer cancel()

	history, err := e.messages.GetPage(trigger.Room, 1, 2)
	if err != nil {
		e.log.Warn("Persona reply skipped, history unavailable", "room_id", trigger.Room, "error", err)
		return
	}
	reply, err := e.selector.SelectReply(persona.ID, contract.Conversation{
		Room:          trigger.Room,
		SenderID:      trigger.SenderID,
		Content:       trigger.Content,
		FirstExchange: len(history) <= 1,
	})
	if err != nil {
		e.log.Warn("Persona reply selection failed", "persona_id", persona.ID, "error", err)
		return
	}
	if _, err := e.SendMessage(ctx, domain.SendMessageCommand{
		Room:       trigger.Room,
		SenderID:   persona.ID,
		SenderName: persona.DisplayName,
		Content:    reply,
		Kind:       domain.MessageText,
	}); err != nil {
		e.log.Warn("Persona reply failed to send", "persona_id", persona.ID, "error", err)
	}
}

// notifyRooms emits one presence-change event per room the identity
// participates in. Store unavailability downgrades to a log line; the
// notification is best effort.
func (e *Engine) notifyRooms(ctx context.Context, identityID, displayName string, presence domain.Presence, at time.Time) {
	rooms, err := e.rooms.ForIdentity(identityID)
	if err != nil {
		e.log.Warn("Presence notification skipped", "identity_id", identityID, "error", err)
		return
	}
	for _, room := range rooms {
		e.router.Broadcast(ctx, event.PresenceChanged{
			Room:        room.ID,
			IdentityID:  identityID,
			DisplayName: displayName,
			Presence:    presence,
			At:          at,
		})
	}
}
