package dispatch

import (
	"io"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/metrics"
	"github.com/sidkik/syncbox/pkg/wire"
)

// Message builds the command to send. It runs on the sending goroutine right
// before the command is written, so file metadata and content are read at
// the same moment. If the returned command's Content is an io.Closer, it's
// closed once the send finishes.
type Message func() (wire.Command, error)

// Fixed returns a Message that always sends `cmd`.
func Fixed(cmd wire.Command) Message {
	return func() (wire.Command, error) {
		return cmd, nil
	}
}

// Sender delivers messages to peers.
type Sender interface {
	// Send delivers `msg` to `address` in the background. Delivery is best
	// effort: failures are logged and the message is dropped.
	Send(address string, msg Message)

	// Wait blocks until all background sends have finished.
	Wait()
}

// dialTimeout bounds connection establishment. Writes have no deadline.
const dialTimeout = 10 * time.Second

// Outbox sends every message over its own short-lived TCP connection, each
// on its own goroutine. Sends are not ordered relative to each other.
type Outbox struct {
	dialer  net.Dialer
	pending sync.WaitGroup
}

// NewOutbox creates an Outbox. If `localIP` is non-nil, outgoing connections
// are bound to it so that the peer sees it as the source address.
func NewOutbox(localIP net.IP) *Outbox {
	outbox := &Outbox{dialer: net.Dialer{Timeout: dialTimeout}}
	if localIP != nil {
		outbox.dialer.LocalAddr = &net.TCPAddr{IP: localIP}
	}
	return outbox
}

// Send implements Sender.
func (o *Outbox) Send(address string, msg Message) {
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		if err := o.SendNow(address, msg); err != nil {
			log.WithError(err).WithField("address", address).Warn(
				"Failed to send message. It won't be retried.")
		}
	}()
}

// SendNow synchronously builds and delivers `msg`.
func (o *Outbox) SendNow(address string, msg Message) error {
	cmd, err := msg()
	if err != nil {
		metrics.RecordSent("unknown", false)
		return errors.WithContext(err, "build message")
	}
	if closer, ok := cmd.Content.(io.Closer); ok {
		defer closer.Close()
	}

	err = o.write(address, cmd)
	metrics.RecordSent(cmd.Code.String(), err == nil)
	if err != nil {
		return errors.WithContext(err, cmd.String())
	}
	if cmd.Size > 0 {
		metrics.RecordBytesSent(cmd.Size)
	}
	return nil
}

func (o *Outbox) write(address string, cmd wire.Command) error {
	conn, err := o.dialer.Dial("tcp", address)
	if err != nil {
		return errors.WithContext(err, "dial")
	}
	defer conn.Close()

	log.WithFields(log.Fields{
		"address": address,
		"command": cmd.String(),
	}).Debug("Sending command")
	return wire.Write(conn, cmd)
}

// Wait implements Sender.
func (o *Outbox) Wait() {
	o.pending.Wait()
}
