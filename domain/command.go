package domain

type Command interface {
	RoomID() RoomID
}

// SendMessageCommand is the inbound intent to post a message in a room.
// Validation and timestamp assignment happen inside the engine, not here.
type SendMessageCommand struct {
	Room       RoomID
	SenderID   string
	SenderName string
	Content    string
	Kind       MessageKind
}

func (c SendMessageCommand) RoomID() RoomID { return c.Room }

// TypingCommand signals a typing indicator. It is never persisted and is
// fanned out to everyone in the room except the typist's own connection.
type TypingCommand struct {
	Room         RoomID
	ConnectionID string
	IdentityID   string
	DisplayName  string
	Typing       bool
}

func (c TypingCommand) RoomID() RoomID { return c.Room }

// HistoryCommand asks for one page of room history. Pages are 1-based;
// results come back oldest-to-newest.
type HistoryCommand struct {
	Room        RoomID
	RequesterID string
	Page        int
	Limit       int
}

func (c HistoryCommand) RoomID() RoomID { return c.Room }
