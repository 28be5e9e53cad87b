package notebook

import (
	"context"

	"github.com/DannyMang/more-compute-sub000/internal/persist"
	"github.com/DannyMang/more-compute-sub000/schema"
	"pkt.systems/pslog"
)

// Conn is the outbound half of the connection manager: the coordinator and
// synchronizer enqueue messages through it and never touch the socket.
type Conn interface {
	Send(ctx context.Context, msgType schema.MessageType, payload any) error
	State() schema.ConnState
}

// Transport is the full connection manager surface the engine wires up.
type Transport interface {
	Conn
	Connect(ctx context.Context) error
	Subscribe(msgType schema.MessageType, handler func(msg schema.Message))
	SubscribeState(handler func(event schema.ConnEvent))
	Close() error
}

// Deps captures the engine's dependencies. Persist is optional; without it
// session snapshots are neither restored nor written.
type Deps struct {
	Transport  Transport
	EventSink  EventSink
	Persist    *persist.Store
	GatewayURL string
	Logger     pslog.Logger
}
