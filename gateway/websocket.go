package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"soulconnect/auth"
	"soulconnect/domain"
	"soulconnect/runtime"
)

const readTimeout = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundFrame is a client command on the realtime channel.
type inboundFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId,omitempty"`
	Content string `json:"content,omitempty"`
	Typing  bool   `json:"typing,omitempty"`
}

type ackFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Status string `json:"status,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// SocketGateway upgrades HTTP connections and runs one read loop per
// session. The read loop is the only caller into the engine for its
// connection, which is what makes disconnects ordered after the sends
// that preceded them.
type SocketGateway struct {
	log        *slog.Logger
	engine     *runtime.Engine
	tokens     *auth.Tokens
	bufferSize int
}

func NewSocketGateway(log *slog.Logger, engine *runtime.Engine, tokens *auth.Tokens, bufferSize int) *SocketGateway {
	return &SocketGateway{
		log:        log,
		engine:     engine,
		tokens:     tokens,
		bufferSize: bufferSize,
	}
}

// Handle authenticates via the token query parameter, upgrades, and
// processes frames until the client disconnects.
func (g *SocketGateway) Handle(w http.ResponseWriter, r *http.Request) {
	claims, err := g.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response; just log and return.
		g.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	session := NewSession(uuid.NewString(), claims.UserID, claims.DisplayName, ws, g.bufferSize)
	session.Start()

	ctx := r.Context()
	if err := g.engine.Connect(ctx, session.ID, session.IdentityID, session.DisplayName, session); err != nil {
		g.log.Warn("connect rejected", "identity_id", session.IdentityID, "error", err)
		session.Close(websocket.ClosePolicyViolation, "connect rejected")
		return
	}
	defer func() {
		g.engine.Disconnect(context.Background(), session.ID)
		session.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(1 << 20)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	g.sendAck(session, ackFrame{Type: "connected"})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				g.log.Debug("websocket read failed", "identity_id", session.IdentityID, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.replyError(session, "bad_request", "invalid payload")
			continue
		}

		switch frame.Type {
		case "joinRoom":
			g.handleJoin(session, frame)
		case "leaveRoom":
			g.handleLeave(session, frame)
		case "sendMessage":
			g.handleSend(ctx, session, frame)
		case "typing":
			g.handleTyping(ctx, session, frame)
		case "updateStatus":
			g.handleStatus(ctx, session)
		default:
			g.replyError(session, "unsupported_type", "unknown frame type")
		}
	}
}

func (g *SocketGateway) handleStatus(ctx context.Context, session *Session) {
	g.engine.Touch(ctx, session.IdentityID)
	presence, err := g.engine.CurrentPresence(session.IdentityID)
	if err != nil {
		g.replyError(session, "status_failed", err.Error())
		return
	}
	g.sendAck(session, ackFrame{Type: "status", Status: string(presence)})
}

func (g *SocketGateway) handleJoin(session *Session, frame inboundFrame) {
	if frame.RoomID == "" {
		g.replyError(session, "bad_request", "roomId is required")
		return
	}
	if err := g.engine.JoinRoom(session.ID, domain.RoomID(frame.RoomID)); err != nil {
		g.replyError(session, "join_rejected", err.Error())
		return
	}
	g.sendAck(session, ackFrame{Type: "joined", RoomID: frame.RoomID})
}

func (g *SocketGateway) handleLeave(session *Session, frame inboundFrame) {
	if frame.RoomID == "" {
		g.replyError(session, "bad_request", "roomId is required")
		return
	}
	g.engine.LeaveRoom(session.ID, domain.RoomID(frame.RoomID))
	g.sendAck(session, ackFrame{Type: "left", RoomID: frame.RoomID})
}

func (g *SocketGateway) handleSend(ctx context.Context, session *Session, frame inboundFrame) {
	if frame.RoomID == "" {
		g.replyError(session, "bad_request", "roomId is required")
		return
	}
	_, err := g.engine.SendMessage(ctx, domain.SendMessageCommand{
		Room:       domain.RoomID(frame.RoomID),
		SenderID:   session.IdentityID,
		SenderName: session.DisplayName,
		Content:    frame.Content,
		Kind:       domain.MessageText,
	})
	if err != nil {
		g.replyError(session, "send_rejected", err.Error())
	}
}

func (g *SocketGateway) handleTyping(ctx context.Context, session *Session, frame inboundFrame) {
	if frame.RoomID == "" {
		return
	}
	g.engine.Typing(ctx, domain.TypingCommand{
		Room:         domain.RoomID(frame.RoomID),
		ConnectionID: session.ID,
		IdentityID:   session.IdentityID,
		DisplayName:  session.DisplayName,
		Typing:       frame.Typing,
	})
}

func (g *SocketGateway) sendAck(session *Session, ack ackFrame) {
	if payload, err := json.Marshal(ack); err == nil {
		_ = session.Send(payload)
	}
}

func (g *SocketGateway) replyError(session *Session, code, message string) {
	payload, err := json.Marshal(errorFrame{Type: "error", Code: code, Error: message})
	if err != nil {
		return
	}
	_ = session.Send(payload)
}
