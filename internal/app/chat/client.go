/*
Package chat contains the core logic of the anonymous chat coordinator.

This file defines the Client struct, the gateway side of one websocket connection. It owns the
read and write loops: inbound frames are parsed into commands and routed to the Manager, and
frames queued on the Channel are written out with periodic pings.
*/
package chat

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"campuschat/internal/pkg/errs"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// DefaultMaxMalformedFrames is the consecutive malformed frame limit.
	DefaultMaxMalformedFrames = 5
)

// ClientOptions tunes the per-connection abuse guards.
type ClientOptions struct {
	// MaxMalformedFrames consecutive malformed frames close the connection with 1008.
	MaxMalformedFrames int

	// MessageRate and MessageBurst bound message commands per channel. A zero rate disables the limit.
	MessageRate  float64
	MessageBurst int
}

// Client struct represents an active WebSocket connection bound to a Channel.
type Client struct {
	manager *Manager
	ch      *Channel

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// limiter throttles message commands.
	limiter *rate.Limiter

	maxMalformed int
	malformed    int

	// structured logger with channel context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(m *Manager, ch *Channel, wsConn *websocket.Conn, opts ClientOptions) *Client {
	if opts.MaxMalformedFrames <= 0 {
		opts.MaxMalformedFrames = DefaultMaxMalformedFrames
	}

	limit := rate.Inf
	if opts.MessageRate > 0 {
		limit = rate.Limit(opts.MessageRate)
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = 1
	}

	return &Client{
		manager:      m,
		ch:           ch,
		conn:         wsConn,
		limiter:      rate.NewLimiter(limit, opts.MessageBurst),
		maxMalformed: opts.MaxMalformedFrames,
		logger:       ch.logger,
	}
}

// ReadPump handles reading frames from the WebSocket connection until it fails or the
// channel asks to leave. The channel is released when it returns.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		if !c.processInboundMessage(frame) {
			break
		}
	}
}

// cleanupOnDisconnect releases the channel, which closes its outbound buffer and stops WritePump.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.manager.Release(c.ch)
}

// processInboundMessage handles one frame. It returns false when the read loop should stop.
func (c *Client) processInboundMessage(frame []byte) bool {
	cmd, protoErr := ParseCommand(frame)
	if protoErr != nil {
		return c.handleMalformed(frame, protoErr)
	}

	c.malformed = 0

	switch cmd.Type {
	case TypeMessage:
		if !c.limiter.Allow() {
			c.manager.SendError(c.ch, errs.NewError(errs.ErrRateLimitExceeded))
			return true
		}

		if err := c.manager.Post(c.ch, cmd.Body); err != nil {
			c.logger.Debug().Err(err).Msg("Message command rejected")
			// Blank messages are dropped without a reply.
			if !errs.Is(err, errs.ErrEmptyBody) {
				c.manager.SendError(c.ch, err)
			}
		}

	case TypeDisconnect:
		c.logger.Info().Msg("Client requested disconnect")
		c.manager.Leave(c.ch)
		return false
	}

	return true
}

func (c *Client) handleMalformed(frame []byte, protoErr *errs.CustomError) bool {
	c.malformed++
	c.manager.metrics.ProtocolErrors.Inc()

	c.logger.Warn().
		Int("malformed_count", c.malformed).
		Int("frame_len", len(frame)).
		Msg("Client sent malformed frame")

	if c.malformed < c.maxMalformed {
		c.manager.SendError(c.ch, protoErr)
		return true
	}

	c.logger.Warn().Int("limit", c.maxMalformed).Msg("Malformed frame limit reached, closing connection.")

	closeMessage := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many malformed frames")
	if err := c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send WS 1008 Close Message.")
	}

	return false
}

// WritePump handles writing frames from the Channel's outbound buffer to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	outbound := c.ch.Outbound()

	for {
		select {
		case frame, ok := <-outbound:
			if !c.writeQueuedMessage(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame pulled from the outbound buffer.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		c.manager.Release(c.ch)
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		c.manager.Release(c.ch)
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		c.manager.Release(c.ch)
		return false
	}

	return true
}
