package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hypergrid-games/hypergrid-backend/internal/entity"
	"github.com/hypergrid-games/hypergrid-backend/internal/room"
)

var errBadPayload = fmt.Errorf("payload is missing required fields")

func (that *Server) handleJoinRoom(ctx context.Context, caller *client, msg *Message) error {
	log := that.logger.With("method", "handleJoinRoom", "memberID", caller.id)

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.RoomID == "" || payload.Username == "" {
		return errBadPayload
	}

	member := &entity.Member{
		ID:   caller.id,
		Name: payload.Username,
	}

	update, err := that.rooms.Join(ctx, payload.RoomID, payload.Kind, member)
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	caller.roomID = payload.RoomID
	caller.name = payload.Username

	// tell the joiner who they are before the room-wide snapshots land
	if err = caller.send(&Message{Action: msg.Action, Payload: mustMarshal(Payload{Member: member})}); err != nil {
		return fmt.Errorf("failed to send join response: %w", err)
	}

	that.broadcast(update)

	log.Info("member joined room", "roomID", payload.RoomID, "username", payload.Username)

	return nil
}

func (that *Server) handleAssignRole(ctx context.Context, caller *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.TargetID == "" || payload.Role == "" {
		return errBadPayload
	}

	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.AssignRole(ctx, roomID, caller.id, payload.TargetID, payload.Role)
	})
}

func (that *Server) handleStartGame(ctx context.Context, caller *client, _ *Message) error {
	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.StartGame(ctx, roomID, caller.id)
	})
}

func (that *Server) handleResetGame(ctx context.Context, caller *client, _ *Message) error {
	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.ResetGame(ctx, roomID, caller.id)
	})
}

func (that *Server) handleMakeMove(ctx context.Context, caller *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Board == nil || payload.Cell == nil {
		return errBadPayload
	}

	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.MakeMove(ctx, roomID, caller.id, *payload.Board, *payload.Cell)
	})
}

func (that *Server) handleSelectBoard(ctx context.Context, caller *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Board == nil {
		return errBadPayload
	}

	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.SelectBoard(ctx, roomID, caller.id, *payload.Board)
	})
}

func (that *Server) handleRollDice(ctx context.Context, caller *client, _ *Message) error {
	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.RollDice(ctx, roomID, caller.id)
	})
}

func (that *Server) handleConfirmPurchase(ctx context.Context, caller *client, _ *Message) error {
	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.ConfirmPurchase(ctx, roomID, caller.id)
	})
}

func (that *Server) handleConfirmUpgrade(ctx context.Context, caller *client, _ *Message) error {
	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.ConfirmUpgrade(ctx, roomID, caller.id)
	})
}

func (that *Server) handleDrawChance(ctx context.Context, caller *client, _ *Message) error {
	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.DrawChance(ctx, roomID, caller.id)
	})
}

func (that *Server) handleSkipAction(ctx context.Context, caller *client, _ *Message) error {
	return that.roomOp(caller, func(roomID string) (*room.Update, error) {
		return that.rooms.SkipAction(ctx, roomID, caller.id)
	})
}

// roomOp routes an intent through the caller's room and multicasts the
// resulting snapshots on success.
func (that *Server) roomOp(caller *client, op func(roomID string) (*room.Update, error)) error {
	if caller.roomID == "" {
		return errBadPayload
	}

	update, err := op(caller.roomID)
	if err != nil {
		return err
	}

	that.broadcast(update)

	return nil
}

func decodePayload(msg *Message) (*Payload, error) {
	var payload Payload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &payload, nil
}
