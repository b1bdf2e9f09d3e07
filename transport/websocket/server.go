package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hypergrid-games/hypergrid-backend/internal/entity"
	"github.com/hypergrid-games/hypergrid-backend/internal/room"
)

const (
	actionJoinRoom   = "room:join"
	actionRoomUpdate = "room:update"
	actionAssignRole = "room:assign"

	actionStartGame   = "game:start"
	actionResetGame   = "game:reset"
	actionMakeMove    = "game:turn"
	actionSelectBoard = "game:select"
	actionGameUpdate  = "game:update"

	actionRollDice        = "poly:roll"
	actionConfirmPurchase = "poly:buy"
	actionConfirmUpgrade  = "poly:upgrade"
	actionDrawChance      = "poly:chance"
	actionSkipAction      = "poly:skip"
)

type registry interface {
	Join(ctx context.Context, roomID, kind string, member *entity.Member) (*room.Update, error)
	Leave(ctx context.Context, roomID, memberID string) (*room.Update, error)

	AssignRole(ctx context.Context, roomID, callerID, targetID, role string) (*room.Update, error)
	StartGame(ctx context.Context, roomID, callerID string) (*room.Update, error)
	ResetGame(ctx context.Context, roomID, callerID string) (*room.Update, error)

	MakeMove(ctx context.Context, roomID, callerID string, board, cell int) (*room.Update, error)
	SelectBoard(ctx context.Context, roomID, callerID string, board int) (*room.Update, error)

	RollDice(ctx context.Context, roomID, callerID string) (*room.Update, error)
	ConfirmPurchase(ctx context.Context, roomID, callerID string) (*room.Update, error)
	ConfirmUpgrade(ctx context.Context, roomID, callerID string) (*room.Update, error)
	DrawChance(ctx context.Context, roomID, callerID string) (*room.Update, error)
	SkipAction(ctx context.Context, roomID, callerID string) (*room.Update, error)
}

// client is one live connection. gorilla allows a single concurrent
// writer, hence the write mutex.
type client struct {
	id     string
	name   string
	roomID string

	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (that *client) send(msg *Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

type Server struct {
	logger   *slog.Logger
	rooms    registry
	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, caller *client, msg *Message) error

	// intentMutex admits one intent at a time, multicast included, so a
	// snapshot can never be delivered after one built from later state.
	intentMutex sync.Mutex

	clients      map[string]*client
	clientsMutex sync.RWMutex
}

func New(logger *slog.Logger, rooms registry) *Server {
	server := &Server{
		logger: logger,
		rooms:  rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		handlers: make(map[string]func(context.Context, *client, *Message) error),
		clients:  make(map[string]*client),
	}

	server.handlers[actionJoinRoom] = server.handleJoinRoom
	server.handlers[actionAssignRole] = server.handleAssignRole
	server.handlers[actionStartGame] = server.handleStartGame
	server.handlers[actionResetGame] = server.handleResetGame
	server.handlers[actionMakeMove] = server.handleMakeMove
	server.handlers[actionSelectBoard] = server.handleSelectBoard
	server.handlers[actionRollDice] = server.handleRollDice
	server.handlers[actionConfirmPurchase] = server.handleConfirmPurchase
	server.handlers[actionConfirmUpgrade] = server.handleConfirmUpgrade
	server.handlers[actionDrawChance] = server.handleDrawChance
	server.handlers[actionSkipAction] = server.handleSkipAction

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	caller := &client{
		id:   uuid.NewString(),
		conn: conn,
	}

	that.clientsMutex.Lock()
	that.clients[caller.id] = caller
	that.clientsMutex.Unlock()

	log.Info("connection established", "memberID", caller.id)

	that.readMessages(ctx, caller)
	that.handleDisconnect(ctx, caller)
}

// readMessages - processes messages from the client until it leaves.
func (that *Server) readMessages(ctx context.Context, caller *client) {
	log := that.logger.With("method", "readMessages", "memberID", caller.id)

	for {
		_, data, err := caller.conn.ReadMessage()
		if err != nil {
			log.Info("connection closed", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		// rejected intents leave state untouched and stay silent on the
		// wire; the reason is only logged
		if err = that.runIntent(ctx, handler, caller, &message); err != nil {
			log.Debug("intent rejected", "action", message.Action, "reason", err)
		}
	}
}

// handleDisconnect - membership removal is processed like any other
// intent; remaining members get a fresh membership snapshot.
func (that *Server) handleDisconnect(ctx context.Context, caller *client) {
	log := that.logger.With("method", "handleDisconnect", "memberID", caller.id)

	that.clientsMutex.Lock()
	delete(that.clients, caller.id)
	that.clientsMutex.Unlock()

	if caller.roomID != "" {
		that.intentMutex.Lock()
		update, err := that.rooms.Leave(ctx, caller.roomID, caller.id)
		if err != nil {
			log.Error("failed to leave room", "roomID", caller.roomID, "error", err)
		} else {
			that.broadcast(update)
		}
		that.intentMutex.Unlock()
	}

	if err := caller.conn.Close(); err != nil {
		log.Debug("failed to close connection", "error", err)
	}

	log.Info("member disconnected")
}

// broadcast multicasts the update's snapshots to every room member.
func (that *Server) broadcast(update *room.Update) {
	log := that.logger.With("method", "broadcast", "roomID", update.RoomID)

	for _, memberID := range update.Members {
		that.clientsMutex.RLock()
		member, ok := that.clients[memberID]
		that.clientsMutex.RUnlock()

		if !ok {
			log.Warn("connection not found for member", "memberID", memberID)
			continue
		}

		if update.Room != nil {
			msg := &Message{Action: actionRoomUpdate, Payload: mustMarshal(Payload{Room: update.Room})}
			if err := member.send(msg); err != nil {
				log.Error("failed to send room update", "memberID", memberID, "error", err)
			}
		}

		if update.Game != nil {
			msg := &Message{Action: actionGameUpdate, Payload: mustMarshal(Payload{Game: update.Game})}
			if err := member.send(msg); err != nil {
				log.Error("failed to send game update", "memberID", memberID, "error", err)
			}
		}
	}
}

// runIntent processes one intent to completion: state mutation and the
// resulting multicast happen before the next intent is admitted.
func (that *Server) runIntent(ctx context.Context, handler func(context.Context, *client, *Message) error, caller *client, msg *Message) error {
	that.intentMutex.Lock()
	defer that.intentMutex.Unlock()

	return handler(ctx, caller, msg)
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
