package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection is one live socket of one authenticated user. A user may hold
// several connections (one per device); each joins rooms independently.
type Connection struct {
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[uuid.UUID]struct{}
	userID uuid.UUID

	// mu guards closed so Send never writes to a closed channel. Commands
	// travel on independent channels, so a broadcast can still hold a
	// reference to a connection that unregistered moments earlier.
	mu     sync.Mutex
	closed bool
}

func (c *Connection) UserID() uuid.UUID { return c.userID }

type subscribeCmd struct {
	c               *Connection
	conversationIDs []uuid.UUID
}

type unsubscribeCmd struct {
	c              *Connection
	conversationID uuid.UUID
}

type broadcastCmd struct {
	conversationID uuid.UUID
	payload        []byte
	excludeUser    uuid.UUID
}

type toUserCmd struct {
	userID  uuid.UUID
	payload []byte
}

// Hub owns all room and user membership state. A single Run goroutine
// serializes every mutation, so no locks guard the maps.
type Hub struct {
	register     chan *Connection
	unregister   chan *Connection
	subscribe    chan subscribeCmd
	unsubscribe  chan unsubscribeCmd
	broadcast    chan broadcastCmd
	toUser       chan toUserCmd
	broadcastAll chan []byte

	rooms map[uuid.UUID]map[*Connection]struct{}
	users map[uuid.UUID]map[*Connection]struct{}
}

func NewConnection(conn *websocket.Conn, userID uuid.UUID) *Connection {
	return &Connection{
		conn:   conn,
		send:   make(chan []byte, 128),
		rooms:  make(map[uuid.UUID]struct{}),
		userID: userID,
	}
}

func NewHub() *Hub {
	return &Hub{
		register:     make(chan *Connection, 64),
		unregister:   make(chan *Connection, 64),
		subscribe:    make(chan subscribeCmd, 64),
		unsubscribe:  make(chan unsubscribeCmd, 64),
		broadcast:    make(chan broadcastCmd, 256),
		toUser:       make(chan toUserCmd, 256),
		broadcastAll: make(chan []byte, 64),
		rooms:        make(map[uuid.UUID]map[*Connection]struct{}),
		users:        make(map[uuid.UUID]map[*Connection]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			conns := h.users[c.userID]
			if conns == nil {
				conns = make(map[*Connection]struct{})
				h.users[c.userID] = conns
			}
			conns[c] = struct{}{}

		case c := <-h.unregister:
			for conversationID := range c.rooms {
				room := h.rooms[conversationID]
				if room == nil {
					continue
				}
				delete(room, c)
				if len(room) == 0 {
					delete(h.rooms, conversationID)
				}
			}
			if conns := h.users[c.userID]; conns != nil {
				delete(conns, c)
				if len(conns) == 0 {
					delete(h.users, c.userID)
				}
			}
			c.CloseSend()

		case cmd := <-h.subscribe:
			// A subscribe can arrive after the connection's unregister was
			// already processed; joining then would leak a dead connection
			// into the room.
			if _, registered := h.users[cmd.c.userID][cmd.c]; !registered {
				continue
			}
			for _, conversationID := range cmd.conversationIDs {
				room := h.rooms[conversationID]
				if room == nil {
					room = make(map[*Connection]struct{})
					h.rooms[conversationID] = room
				}
				room[cmd.c] = struct{}{}
				cmd.c.rooms[conversationID] = struct{}{}
			}

		case cmd := <-h.unsubscribe:
			if room := h.rooms[cmd.conversationID]; room != nil {
				delete(room, cmd.c)
				if len(room) == 0 {
					delete(h.rooms, cmd.conversationID)
				}
			}
			delete(cmd.c.rooms, cmd.conversationID)

		case b := <-h.broadcast:
			room := h.rooms[b.conversationID]
			if room == nil {
				continue
			}
			for c := range room {
				if b.excludeUser != uuid.Nil && c.userID == b.excludeUser {
					continue
				}
				c.Send(b.payload)
			}

		case cmd := <-h.toUser:
			for c := range h.users[cmd.userID] {
				c.Send(cmd.payload)
			}

		case payload := <-h.broadcastAll:
			for _, conns := range h.users {
				for c := range conns {
					c.Send(payload)
				}
			}
		}
	}
}

func (h *Hub) Register(c *Connection) {
	h.register <- c
}

func (h *Hub) Unregister(c *Connection) {
	h.unregister <- c
}

func (h *Hub) Subscribe(c *Connection, conversationIDs []uuid.UUID) {
	h.subscribe <- subscribeCmd{c: c, conversationIDs: conversationIDs}
}

func (h *Hub) Unsubscribe(c *Connection, conversationID uuid.UUID) {
	h.unsubscribe <- unsubscribeCmd{c: c, conversationID: conversationID}
}

// ToConversation delivers to sockets currently joined to the room.
func (h *Hub) ToConversation(conversationID uuid.UUID, payload []byte) {
	h.broadcast <- broadcastCmd{conversationID: conversationID, payload: payload}
}

// ToConversationExcept is ToConversation minus one user's sockets, used for
// typing signals so the typer never sees their own indicator.
func (h *Hub) ToConversationExcept(conversationID uuid.UUID, payload []byte, excludeUserID uuid.UUID) {
	h.broadcast <- broadcastCmd{conversationID: conversationID, payload: payload, excludeUser: excludeUserID}
}

// ToUser delivers to every socket of one user, joined to the room or not.
// Badge counters on other screens depend on this path.
func (h *Hub) ToUser(userID uuid.UUID, payload []byte) {
	h.toUser <- toUserCmd{userID: userID, payload: payload}
}

// ToAll delivers to every connected socket. Presence-style updates only.
func (h *Hub) ToAll(payload []byte) {
	h.broadcastAll <- payload
}

// Send enqueues without blocking; a slow consumer loses the event, and a
// closed connection swallows it. The live channel promises at-most-once
// best-effort delivery, nothing more.
func (c *Connection) Send(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- b:
	default:
	}
}

func (c *Connection) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
