// Package runtime coordinates live connections, room fan-out, and the
// message send flow. It contains no transport or storage specifics.
package runtime

import (
	"sync"

	"soulconnect/contract"
	"soulconnect/domain"
	"soulconnect/errors"
)

type Set map[string]struct{}

// Registry is the source of truth for "who is connected right now".
// It owns every Connection record; a connection is created on register
// and destroyed on unregister, never shared outside a snapshot copy.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*connectionState    // connection id -> state
	roomMembers map[domain.RoomID]Set          // room id -> connection ids
	byIdentity  map[string]Set                 // identity id -> connection ids
}

type connectionState struct {
	id          string
	identityID  string
	displayName string
	rooms       map[domain.RoomID]struct{}
	sink        contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*connectionState),
		roomMembers: make(map[domain.RoomID]Set),
		byIdentity:  make(map[string]Set),
	}
}

// Register records a new live connection. Registering an id twice is a
// protocol violation and fails with ErrDuplicateConnection.
func (r *Registry) Register(connectionID, identityID, displayName string, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[connectionID]; exists {
		return errors.ErrDuplicateConnection
	}
	r.connections[connectionID] = &connectionState{
		id:          connectionID,
		identityID:  identityID,
		displayName: displayName,
		rooms:       make(map[domain.RoomID]struct{}),
		sink:        sink,
	}
	if _, ok := r.byIdentity[identityID]; !ok {
		r.byIdentity[identityID] = make(Set)
	}
	r.byIdentity[identityID][connectionID] = struct{}{}
	return nil
}

// Unregister removes a connection and all its room memberships. It is
// idempotent: unknown ids are a no-op reporting found=false.
func (r *Registry) Unregister(connectionID string) (contract.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.connections[connectionID]
	if !ok {
		return contract.Connection{}, false
	}
	delete(r.connections, connectionID)
	for roomID := range state.rooms {
		r.dropMember(roomID, connectionID)
	}
	if ids, ok := r.byIdentity[state.identityID]; ok {
		delete(ids, connectionID)
		if len(ids) == 0 {
			delete(r.byIdentity, state.identityID)
		}
	}
	return snapshot(state), true
}

func (r *Registry) Get(connectionID string) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.connections[connectionID]
	if !ok {
		return contract.Connection{}, false
	}
	return snapshot(state), true
}

// JoinRoom adds the connection to the room's live fan-out set.
// Membership policy is the router's concern, not the registry's.
func (r *Registry) JoinRoom(connectionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.connections[connectionID]
	if !ok {
		return
	}
	state.rooms[roomID] = struct{}{}
	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][connectionID] = struct{}{}
}

// LeaveRoom removes the connection from the room; no-op if absent.
// Empty sets are cleaned up to avoid leaking room entries over time.
func (r *Registry) LeaveRoom(connectionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.connections[connectionID]; ok {
		delete(state.rooms, roomID)
	}
	r.dropMember(roomID, connectionID)
}

// SinksForRoom snapshots the sinks of every connection currently joined
// to the room. The snapshot is taken under the read lock so broadcasting
// never holds registry state while sinks consume.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	return r.SinksForRoomExcept(roomID, "")
}

func (r *Registry) SinksForRoomExcept(roomID domain.RoomID, exceptConnectionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connectionID := range members {
		if connectionID == exceptConnectionID {
			continue
		}
		if state, exists := r.connections[connectionID]; exists {
			sinks = append(sinks, state.sink)
		}
	}
	return sinks
}

// ConnectionsForIdentity reports how many live connections an identity
// has. Used to decide whether a disconnect really means "went away".
func (r *Registry) ConnectionsForIdentity(identityID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identityID])
}

func (r *Registry) dropMember(roomID domain.RoomID, connectionID string) {
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
}

func snapshot(state *connectionState) contract.Connection {
	rooms := make([]domain.RoomID, 0, len(state.rooms))
	for roomID := range state.rooms {
		rooms = append(rooms, roomID)
	}
	return contract.Connection{
		ID:          state.id,
		IdentityID:  state.identityID,
		DisplayName: state.displayName,
		Rooms:       rooms,
		Sink:        state.sink,
	}
}
