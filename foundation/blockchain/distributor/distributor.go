// Package distributor serves the full chain to any peer that connects. There
// is no request, connecting is the request and the chain is the response.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
)

// Chain represents the behavior required to take a snapshot of the chain.
type Chain interface {
	RetrieveChain() []database.Block
}

// Config represents the configuration required to run the distributor.
type Config struct {
	Host         string
	Chain        Chain
	WriteTimeout time.Duration
	EvHandler    func(v string, args ...any)
}

// Distributor accepts connections and writes the encoded chain to each one.
type Distributor struct {
	host         string
	chain        Chain
	writeTimeout time.Duration
	evHandler    func(v string, args ...any)

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	shut     bool
}

// New constructs a distributor for use.
func New(cfg Config) *Distributor {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Distributor{
		host:         cfg.Host,
		chain:        cfg.Chain,
		writeTimeout: cfg.WriteTimeout,
		evHandler:    ev,
		ready:        make(chan struct{}),
	}
}

// ListenAndServe binds the host and serves connections one at a time until
// Shutdown is called. A bind or accept failure is returned.
func (d *Distributor) ListenAndServe() error {
	listener, err := net.Listen("tcp", d.host)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	d.mu.Lock()
	if d.shut {
		d.mu.Unlock()
		listener.Close()
		return nil
	}
	d.listener = listener
	close(d.ready)
	d.mu.Unlock()

	d.evHandler("distributor: ListenAndServe: listening: host[%s]", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if d.isShutdown() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		d.serve(conn)
	}
}

// Addr returns the address the distributor is listening on. It blocks until
// the listener is bound or the context is done.
func (d *Distributor) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-d.ready:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.listener.Addr(), nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown closes the listener which stops ListenAndServe.
func (d *Distributor) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.shut = true
	if d.listener == nil {
		return nil
	}

	return d.listener.Close()
}

// =============================================================================

// serve writes the current chain to the connection and closes it. Write
// failures only affect this peer.
func (d *Distributor) serve(conn net.Conn) {
	defer conn.Close()

	blocks := d.chain.RetrieveChain()

	data, err := database.Encode(blocks)
	if err != nil {
		d.evHandler("distributor: serve: ERROR: %s", err)
		return
	}

	if d.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	}

	if _, err := conn.Write(data); err != nil {
		d.evHandler("distributor: serve: peer[%s]: WARNING: %s", conn.RemoteAddr(), err)
		return
	}

	d.evHandler("distributor: serve: peer[%s]: sent blocks[%d] bytes[%d]", conn.RemoteAddr(), len(blocks), len(data))
}

func (d *Distributor) isShutdown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.shut
}

// =============================================================================

// Fetch connects to a distributor and reads the full chain.
func Fetch(ctx context.Context, host string) ([]database.Block, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	if len(data) == 0 {
		return nil, errors.New("distributor sent no data")
	}

	return database.Decode(data)
}
