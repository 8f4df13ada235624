package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/louisbranch/tutoring.space/internal/services/coordinator/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

// transport accepts WebSocket connections and feeds their frames to the
// coordinator one at a time per connection.
type transport struct {
	coordinator  *coordinator
	tracer       trace.Tracer
	nextConn     atomic.Uint64
	outboxSize   int
	writeTimeout time.Duration
}

func (t *transport) handler() websocket.Handler {
	return websocket.Handler(t.handleWSConn)
}

func (t *transport) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}

	peer := newWSPeer(domain.ConnID(t.nextConn.Add(1)), t.outboxSize, t.writeTimeout)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		peer.writeLoop(conn)
		// A failed write leaves the reader blocked; closing the socket ends
		// it so the connection is disconnected.
		_ = conn.Close()
	}()

	state := t.coordinator.connect(peer)
	defer func() {
		t.coordinator.disconnect(context.WithoutCancel(ctx), state)
		peer.close()
		<-writerDone
	}()

	decoder := json.NewDecoder(conn)
	limiter := rate.NewLimiter(rate.Limit(maxFramesPerSecond), maxFramesPerSecond)
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			select {
			case <-peer.done:
				return
			default:
			}
			decodeErrors++
			t.coordinator.hub.private(ctx, peer, errorFrame("", codeInvalidArgument, "invalid frame payload", false))
			if decodeErrors >= maxDecodeErrorsPerConn {
				log.Printf("coordinator: closing conn=%d after %d decode errors", peer.id, decodeErrors)
				return
			}
			// The decoder keeps its error after a syntax failure.
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			t.coordinator.hub.private(ctx, peer, errorFrame(frame.RequestID, codeInvalidArgument, "payload too large", false))
			continue
		}
		if !limiter.Allow() {
			t.coordinator.hub.private(ctx, peer, errorFrame(frame.RequestID, codeResourceExhausted, "rate limit exceeded", true))
			continue
		}

		t.dispatch(ctx, state, frame)
	}
}

func (t *transport) dispatch(ctx context.Context, state *connState, frame wsFrame) {
	ctx, span := t.tracer.Start(ctx, "ws."+frame.Type,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ws.frame.type", frame.Type),
			attribute.Int64("ws.conn.id", int64(state.peer.id)),
		),
	)
	defer span.End()

	c := t.coordinator
	switch frame.Type {
	case frameRegister:
		var payload registerPayload
		if !decodePayload(ctx, c, state, frame, &payload, span) {
			return
		}
		c.register(ctx, state, frame.RequestID, payload)
	case frameMessageSend:
		var payload sendPayload
		if !decodePayload(ctx, c, state, frame, &payload, span) {
			return
		}
		c.sendMessage(ctx, state, frame.RequestID, payload)
	case frameSessionCreate:
		var payload createSessionPayload
		if !decodePayload(ctx, c, state, frame, &payload, span) {
			return
		}
		c.createSession(ctx, state, frame.RequestID, payload)
	case frameSessionJoin:
		var payload joinSessionPayload
		if !decodePayload(ctx, c, state, frame, &payload, span) {
			return
		}
		c.joinSession(ctx, state, frame.RequestID, payload)
	default:
		span.SetStatus(codes.Error, "unsupported frame type")
		c.hub.private(ctx, state.peer, errorFrame(frame.RequestID, codeInvalidArgument, "unsupported frame type", false))
	}
}

func decodePayload(ctx context.Context, c *coordinator, state *connState, frame wsFrame, target any, span trace.Span) bool {
	if len(frame.Payload) == 0 {
		frame.Payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(frame.Payload, target); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		c.hub.private(ctx, state.peer, errorFrame(frame.RequestID, codeInvalidArgument, "invalid "+frame.Type+" payload", false))
		return false
	}
	return true
}
