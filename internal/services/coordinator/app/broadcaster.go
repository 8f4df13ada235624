package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/tutoring.space/internal/services/coordinator/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultOutboxSize = 64

// frameWriter is the write side of one physical connection.
type frameWriter interface {
	Write(p []byte) (int, error)
	SetWriteDeadline(t time.Time) error
}

// wsPeer owns the ordered outbox of one connection. A single writer goroutine
// drains it so frames reach the socket in enqueue order.
type wsPeer struct {
	id           domain.ConnID
	outbox       chan wsFrame
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newWSPeer(id domain.ConnID, outboxSize int, writeTimeout time.Duration) *wsPeer {
	if outboxSize <= 0 {
		outboxSize = defaultOutboxSize
	}
	return &wsPeer{
		id:           id,
		outbox:       make(chan wsFrame, outboxSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// enqueue never blocks. It reports false when the peer is closed or its
// outbox is full.
func (p *wsPeer) enqueue(frame wsFrame) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.outbox <- frame:
		return true
	default:
		return false
	}
}

func (p *wsPeer) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// writeLoop sends queued frames until the peer closes or a write fails.
// Frames already queued at close are flushed before it returns.
func (p *wsPeer) writeLoop(w frameWriter) {
	encoder := json.NewEncoder(w)
	for {
		select {
		case <-p.done:
			for {
				select {
				case frame := <-p.outbox:
					if !p.write(w, encoder, frame) {
						return
					}
				default:
					return
				}
			}
		case frame := <-p.outbox:
			if !p.write(w, encoder, frame) {
				p.close()
				return
			}
		}
	}
}

func (p *wsPeer) write(w frameWriter, encoder *json.Encoder, frame wsFrame) bool {
	if p.writeTimeout > 0 {
		_ = w.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	if err := encoder.Encode(frame); err != nil {
		log.Printf("coordinator: write frame failed conn=%d type=%q err=%v", p.id, frame.Type, err)
		return false
	}
	return true
}

// broadcaster fans frames out to live connections. Every call takes its
// audience snapshot at call time; peers gone by delivery are skipped.
type broadcaster struct {
	mu       sync.RWMutex
	peers    map[domain.ConnID]*wsPeer
	channels map[string]map[domain.ConnID]*wsPeer
	seq      int64

	delivered metric.Int64Counter
	dropped   metric.Int64Counter
}

func newBroadcaster(meter metric.Meter) *broadcaster {
	b := &broadcaster{
		peers:    make(map[domain.ConnID]*wsPeer),
		channels: make(map[string]map[domain.ConnID]*wsPeer),
	}
	var err error
	if b.delivered, err = meter.Int64Counter(
		"coordinator.frames.delivered",
		metric.WithDescription("Frames queued to a connection outbox."),
	); err != nil {
		log.Printf("coordinator: create delivered counter: %v", err)
	}
	if b.dropped, err = meter.Int64Counter(
		"coordinator.frames.dropped",
		metric.WithDescription("Frames dropped because the target outbox was full or closed."),
	); err != nil {
		log.Printf("coordinator: create dropped counter: %v", err)
	}
	return b
}

func (b *broadcaster) add(peer *wsPeer) {
	b.mu.Lock()
	b.peers[peer.id] = peer
	b.mu.Unlock()
}

// remove detaches peer from the global audience and every session channel.
func (b *broadcaster) remove(peer *wsPeer) {
	b.mu.Lock()
	delete(b.peers, peer.id)
	for name, members := range b.channels {
		delete(members, peer.id)
		if len(members) == 0 {
			delete(b.channels, name)
		}
	}
	b.mu.Unlock()
}

// subscribe adds peer to the channel of sessionID.
func (b *broadcaster) subscribe(sessionID string, peer *wsPeer) {
	name := sessionChannel(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, live := b.peers[peer.id]; !live {
		return
	}
	members, ok := b.channels[name]
	if !ok {
		members = make(map[domain.ConnID]*wsPeer)
		b.channels[name] = members
	}
	members[peer.id] = peer
}

func (b *broadcaster) subscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[sessionChannel(sessionID)])
}

func (b *broadcaster) liveCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

// global sends an event to every live connection.
func (b *broadcaster) global(ctx context.Context, frameType string, payload any) {
	b.mu.Lock()
	b.seq++
	frame := wsFrame{Type: frameType, Channel: channelGlobal, Seq: b.seq, Payload: mustJSON(payload)}
	targets := make([]*wsPeer, 0, len(b.peers))
	for _, peer := range b.peers {
		targets = append(targets, peer)
	}
	b.mu.Unlock()
	b.deliver(ctx, frame, targets)
}

// session sends an event on the channel of sessionID.
func (b *broadcaster) session(ctx context.Context, sessionID string, frameType string, payload any) {
	name := sessionChannel(sessionID)
	b.mu.Lock()
	b.seq++
	frame := wsFrame{Type: frameType, Channel: name, Seq: b.seq, Payload: mustJSON(payload)}
	members := b.channels[name]
	targets := make([]*wsPeer, 0, len(members))
	for _, peer := range members {
		targets = append(targets, peer)
	}
	b.mu.Unlock()
	b.deliver(ctx, frame, targets)
}

// private sends a frame to one connection only.
func (b *broadcaster) private(ctx context.Context, peer *wsPeer, frame wsFrame) {
	frame.Channel = channelPrivate
	b.deliver(ctx, frame, []*wsPeer{peer})
}

func (b *broadcaster) deliver(ctx context.Context, frame wsFrame, targets []*wsPeer) {
	attrs := metric.WithAttributes(attribute.String("frame.type", frame.Type), attribute.String("frame.channel", channelKind(frame.Channel)))
	var delivered, dropped int64
	for _, peer := range targets {
		if peer.enqueue(frame) {
			delivered++
			continue
		}
		dropped++
		log.Printf("coordinator: dropped frame conn=%d type=%q channel=%q", peer.id, frame.Type, frame.Channel)
	}
	if delivered > 0 && b.delivered != nil {
		b.delivered.Add(ctx, delivered, attrs)
	}
	if dropped > 0 && b.dropped != nil {
		b.dropped.Add(ctx, dropped, attrs)
	}
}

func channelKind(channel string) string {
	if strings.HasPrefix(channel, sessionChannelPrefix) {
		return "session"
	}
	return channel
}
