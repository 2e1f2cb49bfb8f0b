package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/Papun1111/pagesmith/internal/database"
	"github.com/Papun1111/pagesmith/internal/stats"
)

const (
	metricActiveConnections = "ActiveConnections"
	metricActiveRooms       = "ActiveRooms"
	metricEditsBroadcast    = "EditsBroadcast"
)

// CollabServer owns the room map and connection registry. All room
// lifecycle changes flow through its single event loop.
type CollabServer struct {
	log            *log.Logger
	db             database.PagesmithRepository
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *ClientMessage
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan string
	rooms          map[string]*Room
	stop           chan struct{}
	done           chan struct{}
}

func NewCollabServer(logger *log.Logger, db database.PagesmithRepository, su stats.StatsProvider) (*CollabServer, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}

	su.RegisterMetric(metricActiveConnections)
	su.RegisterMetric(metricActiveRooms)
	su.RegisterMetric(metricEditsBroadcast)

	return &CollabServer{
		log:            logger,
		db:             db,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage, 256),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadRoomChan: make(chan string, 16),
		rooms:          make(map[string]*Room),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (cs *CollabServer) Run() {
	for {
		select {
		case joinMsg := <-cs.joinChan:
			cs.handleJoin(joinMsg)
		case client := <-cs.RegisterChan:
			cs.log.Printf("adding connection for %q", client.identity)
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection for %q", client.identity)
			cs.removeClient(client)
		case id := <-cs.unloadRoomChan:
			cs.unloadRoom(id)
		case <-cs.stop:
			cs.log.Println("shutting down rooms")
			for _, r := range cs.rooms {
				close(r.exit)
				<-r.done
			}

			close(cs.done)
			return
		}
	}
}

func (cs *CollabServer) handleJoin(joinMsg *ClientMessage) {
	documentId := joinMsg.Join.DocumentId

	room, ok := cs.rooms[documentId]
	if !ok {
		room = newRoom(documentId, cs)
		cs.rooms[documentId] = room
		cs.stats.Incr(metricActiveRooms)
		go room.start()
	}

	select {
	case room.joinChan <- joinMsg:
	default:
		cs.log.Printf("join channel full on room %q", room.documentId)
		joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
	}
}

func (cs *CollabServer) unloadRoom(documentId string) {
	r, ok := cs.rooms[documentId]
	if !ok {
		return
	}

	cs.log.Printf("removing room %q", r.documentId)
	delete(cs.rooms, documentId)
	cs.stats.Decr(metricActiveRooms)

	close(r.exit)
	<-r.done
}

// UnloadRoom evicts the room for a document, disconnecting it from all
// joined sessions. Called when the document itself is deleted.
func (cs *CollabServer) UnloadRoom(ctx context.Context, documentId string) error {
	select {
	case cs.unloadRoomChan <- documentId:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *CollabServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
	cs.stats.Incr(metricActiveConnections)
}

func (cs *CollabServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(metricActiveConnections)
}

func (cs *CollabServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
