package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Papun1111/pagesmith/internal/database"
	"github.com/Papun1111/pagesmith/internal/types"
)

const (
	idleRoomTimeout = 30 * time.Second
	storeOpTimeout  = 5 * time.Second
)

// Room is the in-memory set of sessions collaborating on one document.
// A single goroutine owns the membership and serializes all broadcasts,
// so edits fan out in the order they were processed.
type Room struct {
	documentId    string
	cs            *CollabServer
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	clients       map[*Client]struct{}
	clientLock    sync.RWMutex
	log           *log.Logger
	// killTimer unloads the room once it has been empty for a while
	killTimer *time.Timer
	exit      chan struct{}
	done      chan struct{}
}

func newRoom(documentId string, cs *CollabServer) *Room {
	return &Room{
		documentId:    documentId,
		cs:            cs,
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		clientMsgChan: make(chan *ClientMessage, 256),
		clients:       make(map[*Client]struct{}),
		log:           cs.log,
		exit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.documentId)
	r.killTimer = time.NewTimer(idleRoomTimeout)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.clientMsgChan:
			if msg.Edit != nil {
				r.handleEdit(msg)
			} else if msg.Cursor != nil {
				r.handleCursor(msg)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case <-r.exit:
			r.handleRoomExit()
			close(r.done)
			return
		}
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.documentId)
	select {
	case r.cs.unloadRoomChan <- r.documentId:
	default:
		// the server is busy, try again next interval
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit() {
	r.log.Printf("room %q is exiting", r.documentId)

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.documentId)
	}
	clear(r.clients)
	r.clientLock.Unlock()
}

func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	doc, err := r.cs.db.GetDocumentById(ctx, r.documentId)
	if err != nil {
		if len(r.clients) == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		}
		if errors.Is(err, database.ErrNotFound) {
			c.queueMessage(ErrDocumentNotFound(join.Id))
		} else {
			r.log.Println("GetDocumentById:", err)
			c.queueMessage(ErrInternalError(join.Id))
		}
		return
	}

	r.addClient(c)

	// acknowledge the join with a current snapshot of the document
	c.queueMessage(NoErrOK(join.Id, types.Document{
		Id:            doc.Id,
		OwnerId:       doc.OwnerId,
		Title:         doc.Title,
		Content:       doc.Content,
		Collaborators: collaborators(doc),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}))
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	r.removeClient(leaveMsg.client)
}

// handleEdit authorizes the edit against the document's current permission
// state and rebroadcasts the content to everyone else in the room. The
// broadcast is fire and forget: persistence is the explicit save path over
// HTTP, not a side effect of collaboration traffic.
func (r *Room) handleEdit(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	doc, err := r.cs.db.GetDocumentById(ctx, r.documentId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			msg.client.queueMessage(ErrDocumentNotFound(msg.Id))
		} else {
			r.log.Println("GetDocumentById:", err)
			msg.client.queueMessage(ErrInternalError(msg.Id))
		}
		return
	}

	typedDoc := types.Document{OwnerId: doc.OwnerId, Collaborators: collaborators(doc)}
	if !typedDoc.CanWrite(msg.identity) {
		r.log.Printf("denied edit on %q from %q", r.documentId, msg.identity)
		msg.client.queueMessage(ErrPermissionDenied(msg.Id))
		return
	}

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: msg.Timestamp,
		},
		DocumentUpdated: &DocumentUpdated{
			DocumentId: r.documentId,
			Content:    msg.Edit.Content,
			UserId:     msg.identity,
		},
		SkipClient: msg.client,
	})

	r.cs.stats.Incr(metricEditsBroadcast)
}

// handleCursor relays a presence update to the other room members. Cursor
// positions mutate nothing, so there is no permission check.
func (r *Room) handleCursor(msg *ClientMessage) {
	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: msg.Timestamp,
		},
		CursorMoved: &CursorMoved{
			DocumentId: r.documentId,
			UserId:     msg.identity,
			Position:   msg.Cursor.Position,
		},
		SkipClient: msg.client,
	})
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	c.addRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.delRoom(r.documentId)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.documentId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) broadcast(msg *ServerMessage) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}

func collaborators(doc database.Document) []types.Collaborator {
	collabs := make([]types.Collaborator, len(doc.Collaborators))
	for i, c := range doc.Collaborators {
		collabs[i] = types.Collaborator{
			UserId: c.UserId,
			Access: types.AccessLevel(c.Access),
		}
	}
	return collabs
}
