package hmr

import "sync"

// Listener receives payloads sent on a Channel, or the special "connection"
// event fired once a Channel (or every child of a Broadcaster) is ready.
type Listener func(payload Payload)

// SubscriptionID identifies a listener registered with On, for later
// removal with Off. Go funcs aren't comparable, so unlike the spec's
// on/off-by-reference contract, Off here takes the token On returned.
type SubscriptionID int

// Channel is one transport-agnostic pipe to a connected client: Send pushes
// a Payload, On/Off manage event listeners (including the synthetic
// "connection" event), Listen starts accepting, Close tears the pipe down.
type Channel interface {
	Send(payload Payload)
	On(event string, listener Listener) SubscriptionID
	Off(event string, id SubscriptionID)
	Listen() error
	Close() error
}

// LocalChannel is an in-memory Channel used by the dev server's own
// in-process clients (and by tests) where no real transport is wired.
type LocalChannel struct {
	mu        sync.Mutex
	listeners map[string]map[SubscriptionID]Listener
	nextID    SubscriptionID
	closed    bool
}

func NewLocalChannel() *LocalChannel {
	return &LocalChannel{listeners: make(map[string]map[SubscriptionID]Listener)}
}

func (c *LocalChannel) Send(payload Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, l := range c.listeners["message"] {
		l(payload)
	}
}

func (c *LocalChannel) On(event string, listener Listener) SubscriptionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listeners[event] == nil {
		c.listeners[event] = make(map[SubscriptionID]Listener)
	}
	c.nextID++
	id := c.nextID
	c.listeners[event][id] = listener
	return id
}

func (c *LocalChannel) Off(event string, id SubscriptionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners[event], id)
}

func (c *LocalChannel) Listen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.listeners["connection"] {
		l(Payload{})
	}
	return nil
}

func (c *LocalChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, l := range c.listeners["close"] {
		l(Payload{})
	}
	return nil
}

// Broadcaster fans one Send out to every constituent Channel, and its Listen
// calls the given onReady callback only once every constituent's Listen has
// returned without error — mirroring the spec's multi-client-plus-SSR-runtime setup where
// the dev server treats the group as a single logical channel.
type Broadcaster struct {
	mu       sync.Mutex
	channels []Channel
}

func NewBroadcaster(channels ...Channel) *Broadcaster {
	return &Broadcaster{channels: channels}
}

func (b *Broadcaster) Add(ch Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, ch)
}

func (b *Broadcaster) Send(payload Payload) {
	b.mu.Lock()
	channels := append([]Channel(nil), b.channels...)
	b.mu.Unlock()
	for _, ch := range channels {
		ch.Send(payload)
	}
}

// Listen starts every constituent channel and fires onReady once all of
// them have become ready, matching the spec's "connection" event.
func (b *Broadcaster) Listen(onReady Listener) error {
	b.mu.Lock()
	channels := append([]Channel(nil), b.channels...)
	b.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(channels))
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			errs[i] = ch.Listen()
		}(i, ch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if onReady != nil {
		onReady(Payload{})
	}
	return nil
}

func (b *Broadcaster) Close() error {
	b.mu.Lock()
	channels := append([]Channel(nil), b.channels...)
	b.mu.Unlock()
	var firstErr error
	for _, ch := range channels {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
