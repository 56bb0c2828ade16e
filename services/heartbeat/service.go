package heartbeat

import (
	"context"
	"sync/atomic"
	"unsafe"

	"cbhelper-go/bus"
	"cbhelper-go/callback"
	"cbhelper-go/drivers/pit"
	"cbhelper-go/errcode"
	"cbhelper-go/services/config"
)

var (
	topicConfigHeartbeat = config.Topic(config.KeyHeartbeat)

	// TopicBeat carries one Beat every Every timer ticks.
	TopicBeat = bus.T("heartbeat", "beat")
)

// Beat is the heartbeat payload.
type Beat struct {
	Seq   uint32 // heartbeat number, from 1
	Ticks uint64 // timer ticks seen by the service
	Drops uint32 // ticks lost because the service lagged
}

// Notifier is the interrupt-side half of the service. It is stored by value
// in a timer callback slot and never blocks: a tick that finds the queue
// full is counted and dropped.
type Notifier struct {
	q     chan<- struct{}
	drops *atomic.Uint32
}

// Notifier must fit a PIT callback slot.
const _ = pit.SlotSize - unsafe.Sizeof(Notifier{})

func (n *Notifier) Invoke(callback.Void) {
	select {
	case n.q <- struct{}{}:
	default:
		n.drops.Add(1)
	}
}

type Service struct {
	ticks chan struct{}
	drops atomic.Uint32
	every uint32
	done  chan struct{}
}

// New creates a service that beats every `every` ticks. queueLen bounds the
// ticks buffered between the interrupt and the service loop.
func New(every uint32, queueLen int) *Service {
	if every == 0 {
		every = config.DefaultEvery
	}
	if queueLen <= 0 {
		queueLen = 64
	}
	return &Service{
		ticks: make(chan struct{}, queueLen),
		every: every,
		done:  make(chan struct{}),
	}
}

// Notifier returns the callable to arm on the timer.
func (s *Service) Notifier() Notifier {
	return Notifier{q: s.ticks, drops: &s.drops}
}

// Drops reports ticks lost in the interrupt path.
func (s *Service) Drops() uint32 { return s.drops.Load() }

// Done is closed when the service loop has exited.
func (s *Service) Done() <-chan struct{} { return s.done }

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, cfgSub *bus.Subscription) {
	defer close(s.done)
	defer conn.Unsubscribe(cfgSub)

	var (
		ticks uint64
		since uint32
		seq   uint32
	)
	for {
		// Pending config is applied before any queued tick.
		select {
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			if s.applyConfig(msg) {
				since = 0
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-s.ticks:
			ticks++
			since++
			if since < s.every {
				continue
			}
			since = 0
			seq++
			conn.Publish(conn.NewMessage(TopicBeat, Beat{Seq: seq, Ticks: ticks, Drops: s.drops.Load()}, false))
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			if s.applyConfig(msg) {
				since = 0
			}
		}
	}
}

// applyConfig reports whether the beat interval changed.
func (s *Service) applyConfig(msg *bus.Message) bool {
	h, err := config.DecodeHeartbeat(msg.Payload)
	if err != nil {
		println("Error: heartbeat config:", string(errcode.Of(err)), err.Error())
		return false
	}
	if h.Every == s.every {
		return false
	}
	s.every = h.Every
	println("Info: heartbeat every", h.Every, "ticks")
	return true
}

// Start the heartbeat service. The config subscription is in place when
// Start returns, so a retained config takes effect before the first tick.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	go s.serviceLoop(ctx, conn, cfgSub)
	return nil
}
