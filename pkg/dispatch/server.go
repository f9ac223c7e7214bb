// Package dispatch implements the connection handling shared by the client
// and the server. Each message arrives on its own connection: the accept
// loop hands every connection to a fresh goroutine that reads one command,
// dispatches it, and closes the connection. Outgoing messages are sent the
// same way by the Outbox.
package dispatch

import (
	"fmt"
	"net"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/metrics"
	"github.com/sidkik/syncbox/pkg/wire"
)

// Handler processes a single command read from `remote`. For commands that
// carry file content, the content must be consumed before Handle returns.
type Handler interface {
	Handle(remote net.IP, cmd wire.Command)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(remote net.IP, cmd wire.Command)

// Handle calls f(remote, cmd).
func (f HandlerFunc) Handle(remote net.IP, cmd wire.Command) {
	f(remote, cmd)
}

// Server runs the accept loop for one listening socket.
type Server struct {
	handler Handler
	workers sync.WaitGroup

	lock     sync.Mutex
	listener net.Listener
	closed   bool
}

// NewServer returns a Server that dispatches commands to `handler`.
func NewServer(handler Handler) *Server {
	return &Server{handler: handler}
}

// Serve accepts connections on `lis` until it is closed. It returns nil if
// the listener was closed through Close, and the accept error otherwise.
// Handlers that are still running when Serve returns keep running; use Wait
// to block until they finish. If Close was already called, `lis` is closed
// and Serve returns immediately.
func (s *Server) Serve(lis net.Listener) error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		if err := lis.Close(); err != nil && !isClosedConnError(err) {
			return errors.WithContext(err, "close listener")
		}
		return nil
	}
	s.listener = lis
	s.lock.Unlock()

	for {
		conn, err := lis.Accept()
		if err != nil {
			if s.isClosed() || isClosedConnError(err) {
				return nil
			}
			return errors.WithContext(err, "accept")
		}

		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops the accept loop by closing the listener.
func (s *Server) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Wait blocks until every in-flight handler has returned.
func (s *Server) Wait() {
	s.workers.Wait()
}

func (s *Server) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	remote := remoteIP(conn.RemoteAddr())
	logger := log.WithField("remote", conn.RemoteAddr().String())
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Command handler panicked. The command was dropped.")
		}
	}()

	cmd, err := wire.Read(conn)
	if err != nil {
		logger.WithError(err).Warn("Failed to read command")
		metrics.RecordReadFailure()
		return
	}

	logger.WithField("command", cmd.String()).Debug("Received command")
	metrics.RecordReceived(cmd.Code.String())
	s.handler.Handle(remote, cmd)
}

func remoteIP(addr net.Addr) net.IP {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection")
}

// JoinHostPort formats an IP and port as a dialable address.
func JoinHostPort(ip net.IP, port int) string {
	return net.JoinHostPort(ip.String(), fmt.Sprintf("%d", port))
}
