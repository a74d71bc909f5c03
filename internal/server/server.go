// Package server implements the Modbus/TCP protocol endpoint: an accept
// loop plus one worker per connection, dispatching requests against a
// register store and reporting lifecycle events to an Observer.
package server

import (
	"encoding/binary"
	"log"
	"net"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"modbus-tcp-sim/internal/codec"
	"modbus-tcp-sim/internal/store"
)

const (
	maxRequestBytes = 256
	acceptPollEvery = 200 * time.Millisecond
)

// EventKind identifies what happened to a connection.
type EventKind int

const (
	EventAccepted EventKind = iota
	EventRequest
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "accepted"
	case EventRequest:
		return "request"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Observer receives lifecycle callbacks from worker goroutines. Callers
// must treat these as concurrent: they may be invoked from many connections
// at once.
type Observer func(clientID string, endpoint string, kind EventKind)

// ClientInfo is a point-in-time snapshot of one active connection.
type ClientInfo struct {
	ID       string
	Endpoint string
	Requests uint64
}

// Server listens for Modbus/TCP connections and dispatches requests against
// a store.Store.
type Server struct {
	Host string
	Port int

	Store    *store.Store
	Observer Observer

	listener   *net.TCPListener
	acceptDone sync.WaitGroup
	quit       chan struct{}
	closeOnce  sync.Once

	clientsMu sync.RWMutex
	clients   map[string]*clientState

	onShutdown func()
}

type clientState struct {
	endpoint string
	requests uint64
}

// New constructs a Server bound to store s, reporting to obs (which may be
// nil). onShutdown, if non-nil, runs once when Stop completes accepting.
func New(host string, port int, s *store.Store, obs Observer, onShutdown func()) *Server {
	return &Server{
		Host:       host,
		Port:       port,
		Store:      s,
		Observer:   obs,
		quit:       make(chan struct{}),
		clients:    make(map[string]*clientState),
		onShutdown: onShutdown,
	}
}

// Listen starts accepting connections; it returns once the listener is
// bound. The accept loop itself runs in a background goroutine.
func (s *Server) Listen() error {
	addr := &net.TCPAddr{IP: net.ParseIP(s.Host), Port: s.Port}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = l

	s.acceptDone.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.acceptDone.Done()
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		s.listener.SetDeadline(time.Now().Add(acceptPollEvery))
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.quit:
				return
			default:
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

// handleConnection runs for the life of one accepted connection. It is not
// tracked by any WaitGroup that Stop waits on: per spec, shutdown does not
// block on in-flight connections beyond their current iteration, since
// client reads have no timeout and may block indefinitely.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	id := uuid.NewString()
	endpoint := conn.RemoteAddr().String()
	connectedAt := time.Now()

	s.clientsMu.Lock()
	s.clients[id] = &clientState{endpoint: endpoint}
	s.clientsMu.Unlock()

	s.notify(id, endpoint, EventAccepted)
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, id)
		s.clientsMu.Unlock()
		log.Printf("client %s (%s) disconnected, connected %s", id, endpoint, humanize.Time(connectedAt))
		s.notify(id, endpoint, EventDisconnected)
	}()

	buf := make([]byte, maxRequestBytes)
	for {
		n, err := conn.Read(buf)
		if n == 0 || err != nil {
			return
		}

		req, err := codec.Parse(buf[:n])
		if err != nil {
			// MALFORMED: drop the frame, keep the connection open.
			continue
		}

		s.clientsMu.Lock()
		if c, ok := s.clients[id]; ok {
			c.requests++
		}
		s.clientsMu.Unlock()
		s.notify(id, endpoint, EventRequest)

		resp := s.dispatch(req)
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

func (s *Server) notify(id, endpoint string, kind EventKind) {
	if s.Observer != nil {
		s.Observer(id, endpoint, kind)
	}
}

func (s *Server) dispatch(req codec.Request) []byte {
	switch req.FunctionCode {
	case 1, 2, 3, 4:
		return s.dispatchRead(req)
	case 5, 6, 15, 16:
		// Writes are acknowledged but not persisted: echo the original
		// frame back unchanged.
		return codec.EncodeResponse(req.TransactionID, req.UnitID, req.FunctionCode, req.Payload)
	default:
		return codec.EncodeException(req.TransactionID, req.UnitID, req.FunctionCode, codec.ExcIllegalFunction)
	}
}

func (s *Server) dispatchRead(req codec.Request) []byte {
	if len(req.Payload) < 4 {
		return codec.EncodeException(req.TransactionID, req.UnitID, req.FunctionCode, codec.ExcIllegalDataAddr)
	}
	start := binary.BigEndian.Uint16(req.Payload[0:2])
	qty := binary.BigEndian.Uint16(req.Payload[2:4])

	body, err := s.readBody(req.FunctionCode, start, qty)
	if err != nil {
		return codec.EncodeException(req.TransactionID, req.UnitID, req.FunctionCode, codec.ExcServerFailure)
	}
	return codec.EncodeResponse(req.TransactionID, req.UnitID, req.FunctionCode, body)
}

func (s *Server) readBody(fc byte, start, qty uint16) ([]byte, error) {
	switch fc {
	case 1:
		return packBits(s.Store.ReadCoils(start, qty)), nil
	case 2:
		return packBits(s.Store.ReadDiscreteInputs(start, qty)), nil
	case 3:
		return packWords(s.Store.ReadHolding(start, qty)), nil
	case 4:
		return packWords(s.Store.ReadInput(start, qty)), nil
	}
	return nil, errUnsupportedFunction
}

var errUnsupportedFunction = &unsupportedFunctionError{}

type unsupportedFunctionError struct{}

func (*unsupportedFunctionError) Error() string { return "server: unsupported function code" }

func packBits(bits []bool) []byte {
	byteCount := (len(bits) + 7) / 8
	out := make([]byte, 1+byteCount)
	out[0] = byte(byteCount)
	for i, b := range bits {
		if b {
			out[1+i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func packWords(words []uint16) []byte {
	out := make([]byte, 1+2*len(words))
	out[0] = byte(2 * len(words))
	for i, w := range words {
		binary.BigEndian.PutUint16(out[1+2*i:3+2*i], w)
	}
	return out
}

// GetActiveClients returns a snapshot of currently connected clients and
// their request counts.
func (s *Server) GetActiveClients() []ClientInfo {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	out := make([]ClientInfo, 0, len(s.clients))
	for id, c := range s.clients {
		out = append(out, ClientInfo{ID: id, Endpoint: c.endpoint, Requests: c.requests})
	}
	return out
}

// Stop closes the accept socket, waits for the accept loop to exit, and
// resets the store to its snapshot configuration. It does not wait for
// in-flight connection workers, which observe the closed listener or a
// socket error independently and may outlive Stop briefly.
func (s *Server) Stop() {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.acceptDone.Wait()
	s.Store.ResetToOriginal()
	log.Printf("modbus server stopped, register store reset to snapshot")
	if s.onShutdown != nil {
		s.onShutdown()
	}
}
