package relay

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clockroom/clockroom/go/internal/clock"
	"github.com/clockroom/clockroom/go/internal/store"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// RoomTransport is the delivery capability the relay needs from the
// socket layer: subscribe a socket to a room, deliver an event to every
// room member except one, or deliver to a single socket.
type RoomTransport interface {
	Join(socketID, roomID string)
	ToRoom(roomID, exceptSocketID, event string, data []byte)
	ToSocket(socketID, event string, data []byte)
}

// DeltaPublisher fans accepted deltas out to other server processes.
type DeltaPublisher interface {
	PublishDelta(roomID string, data []byte) error
}

// Config bounds relay behavior.
type Config struct {
	// MaxFieldBytes is the per-field size bound; oversized fields are
	// skipped rather than failing the whole update.
	MaxFieldBytes int
	// RoomTTL refreshes the room key's expiry on every persisted write.
	// Zero disables the refresh.
	RoomTTL time.Duration
	// StoreTimeout bounds each store operation issued by the relay.
	StoreTimeout time.Duration
}

// DefaultConfig returns the relay bounds used when nothing is
// configured.
func DefaultConfig() Config {
	return Config{
		MaxFieldBytes: 1024,
		RoomTTL:       24 * time.Hour,
		StoreTimeout:  2 * time.Second,
	}
}

// Relay bridges per-socket events to room-scoped broadcast and to the
// persistence store. Persistence failures never stall a broadcast:
// live synchronization degrades to lost durability, not lost
// availability.
type Relay struct {
	cfg       Config
	store     store.Store
	transport RoomTransport
	publisher DeltaPublisher

	rooms *bindings
}

// New creates a relay. publisher may be nil for single-process
// deployments.
func New(cfg Config, st store.Store, transport RoomTransport, publisher DeltaPublisher) *Relay {
	return &Relay{
		cfg:       cfg,
		store:     st,
		transport: transport,
		publisher: publisher,
		rooms:     newBindings(),
	}
}

// HandleMessage dispatches one raw client message. Invalid messages are
// answered with an error event; the connection stays open.
func (r *Relay) HandleMessage(ctx context.Context, socketID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.sendError(socketID, "malformed message")
		return
	}

	switch env.Event {
	case EventEnterRoom:
		var roomID string
		if err := json.Unmarshal(env.Data, &roomID); err != nil {
			r.sendError(socketID, "malformed room id")
			return
		}
		r.onJoin(ctx, socketID, roomID)
	case EventSend:
		var params map[string]any
		if err := json.Unmarshal(env.Data, &params); err != nil {
			r.sendError(socketID, "malformed payload")
			return
		}
		r.onUpdate(ctx, socketID, params, env.Data)
	default:
		r.sendError(socketID, "unknown event: "+env.Event)
	}
}

// HandleDisconnect drops the socket's room binding. The transport layer
// removes the socket from its room pool itself.
func (r *Relay) HandleDisconnect(socketID string) {
	r.rooms.unbind(socketID)
}

// RebroadcastRemote delivers a delta received from another server
// process to every local member of the room.
func (r *Relay) RebroadcastRemote(roomID string, data []byte) {
	r.transport.ToRoom(roomID, "", EventUpdate, data)
}

// onJoin subscribes the socket to the room and reconciles it with the
// room's persisted state. The snapshot goes to the joining socket only;
// a fetch failure degrades to an empty snapshot rather than failing the
// join.
func (r *Relay) onJoin(ctx context.Context, socketID, roomID string) {
	if !roomIDPattern.MatchString(roomID) {
		r.sendError(socketID, "invalid room id")
		return
	}
	r.rooms.bind(socketID, roomID)
	r.transport.Join(socketID, roomID)

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	fields, err := r.store.GetFields(fetchCtx, store.RoomKey(roomID), clock.FieldNames)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("snapshot fetch failed, reconciling with empty state")
		fields = map[string]string{}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to marshal snapshot")
		return
	}
	r.transport.ToSocket(socketID, EventUpdate, data)

	log.Debug().
		Str("socket_id", socketID).
		Str("room_id", roomID).
		Int("fields", len(fields)).
		Msg("socket joined room")
}

// onUpdate validates and persists an incoming delta, then re-broadcasts
// the original payload verbatim to the rest of the room.
func (r *Relay) onUpdate(ctx context.Context, socketID string, params map[string]any, raw []byte) {
	roomID, bound := r.rooms.room(socketID)
	if !bound {
		// Late binding: an update may carry the room id itself.
		lateID, _ := params["roomId"].(string)
		if !roomIDPattern.MatchString(lateID) {
			r.sendError(socketID, "invalid room id")
			return
		}
		roomID = lateID
		r.rooms.bind(socketID, roomID)
		r.transport.Join(socketID, roomID)
	}

	fields := clock.NormalizeParams(params)
	for name, value := range fields {
		if len(value) > r.cfg.MaxFieldBytes {
			log.Warn().
				Str("room_id", roomID).
				Str("field", name).
				Int("size", len(value)).
				Msg("skipping oversized field")
			delete(fields, name)
		}
	}
	if _, err := clock.ParseDelta(fields); err != nil {
		r.sendError(socketID, "malformed payload: "+err.Error())
		return
	}

	if len(fields) > 0 {
		r.persist(ctx, roomID, fields)
	}

	r.transport.ToRoom(roomID, socketID, EventUpdate, raw)

	if r.publisher != nil {
		if err := r.publisher.PublishDelta(roomID, raw); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("failed to publish delta to peers")
		}
	}
}

// persist writes the accepted fields as one batch and refreshes the
// room's expiry. Store errors are logged and swallowed: the broadcast
// must not stall on store unavailability.
func (r *Relay) persist(ctx context.Context, roomID string, fields map[string]string) {
	writeCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	key := store.RoomKey(roomID)
	if err := r.store.SetFields(writeCtx, key, fields); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to persist update")
		return
	}
	if r.cfg.RoomTTL > 0 {
		if err := r.store.Expire(writeCtx, key, r.cfg.RoomTTL); err != nil {
			log.Debug().Err(err).Str("room_id", roomID).Msg("failed to refresh room expiry")
		}
	}
}

func (r *Relay) sendError(socketID, message string) {
	r.transport.ToSocket(socketID, EventError, encodeError(message))
}
