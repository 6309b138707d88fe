package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// BridgeConfig holds NATS settings for cross-process delta fan-out.
type BridgeConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultBridgeConfig returns the NATS settings used when nothing is
// configured.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "clock.room",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Bridge relays accepted deltas between server processes over NATS, so
// sockets connected to different processes observe the same room.
// Each delta is published on <prefix>.<roomID> tagged with the sending
// instance; a subscriber skips its own messages and rebroadcasts the
// rest to local room members.
type Bridge struct {
	cfg        BridgeConfig
	instanceID string
	nc         *nats.Conn
	sub        *nats.Subscription
	relay      *Relay
}

type bridgeEnvelope struct {
	InstanceID string          `json:"instanceId"`
	RoomID     string          `json:"roomId"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// NewBridge connects to NATS. Unlike the store, a broken bridge is a
// hard error: operators enabling multi-process mode should know it is
// not working.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Bridge{
		cfg:        cfg,
		instanceID: uuid.New().String(),
		nc:         nc,
	}, nil
}

// Start subscribes to peer deltas and begins rebroadcasting them
// through the given relay.
func (b *Bridge) Start(r *Relay) error {
	b.relay = r

	sub, err := b.nc.Subscribe(b.cfg.SubjectPrefix+".>", b.handlePeerDelta)
	if err != nil {
		return fmt.Errorf("subscribe to peer deltas: %w", err)
	}
	b.sub = sub

	log.Info().
		Str("subject", b.cfg.SubjectPrefix+".>").
		Str("instance_id", b.instanceID).
		Msg("bridge subscribed to peer deltas")
	return nil
}

// PublishDelta sends an accepted delta to peer processes. Implements
// DeltaPublisher.
func (b *Bridge) PublishDelta(roomID string, data []byte) error {
	envelope := bridgeEnvelope{
		InstanceID: b.instanceID,
		RoomID:     roomID,
		Timestamp:  time.Now(),
		Payload:    data,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal bridge envelope: %w", err)
	}
	// Room ids are validated to [A-Za-z0-9_-], so they are always
	// token-safe in a NATS subject.
	return b.nc.Publish(b.cfg.SubjectPrefix+"."+roomID, raw)
}

func (b *Bridge) handlePeerDelta(msg *nats.Msg) {
	var envelope bridgeEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("malformed bridge envelope")
		return
	}
	if envelope.InstanceID == b.instanceID {
		return
	}

	b.relay.RebroadcastRemote(envelope.RoomID, envelope.Payload)

	log.Debug().
		Str("room_id", envelope.RoomID).
		Str("peer", envelope.InstanceID).
		Msg("rebroadcast peer delta")
}

// Stop unsubscribes and closes the NATS connection.
func (b *Bridge) Stop() {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe bridge")
		}
	}
	if b.nc != nil {
		b.nc.Close()
	}
}
