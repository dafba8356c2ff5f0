package local

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/broker"
)

// Broker delivers messages to subscribers of the same process, synchronously.
type Broker struct {
	mtx    sync.RWMutex
	subs   map[string]map[uint64]broker.Handler
	nextID uint64
	closed bool

	logger *zap.Logger
}

func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[uint64]broker.Handler),
		logger: logger,
	}
}

func (b *Broker) Publish(_ context.Context, msg broker.Message) error {
	b.mtx.RLock()
	if b.closed {
		b.mtx.RUnlock()
		return broker.ErrClosed
	}
	handlers := make([]broker.Handler, 0, len(b.subs[msg.RoomID]))
	for _, h := range b.subs[msg.RoomID] {
		handlers = append(handlers, h)
	}
	b.mtx.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

func (b *Broker) Subscribe(_ context.Context, roomID string, h broker.Handler) (func(), error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return nil, broker.ErrClosed
	}

	b.nextID++
	id := b.nextID
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[uint64]broker.Handler)
	}
	b.subs[roomID][id] = h
	b.logger.Debug("Subscribed to room", zap.String("roomID", roomID))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mtx.Lock()
			defer b.mtx.Unlock()
			delete(b.subs[roomID], id)
			if len(b.subs[roomID]) == 0 {
				delete(b.subs, roomID)
			}
			b.logger.Debug("Unsubscribed from room", zap.String("roomID", roomID))
		})
	}, nil
}

func (b *Broker) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.closed = true
	b.subs = make(map[string]map[uint64]broker.Handler)
	return nil
}
