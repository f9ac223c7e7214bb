package dispatch

import (
	"io/ioutil"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/wire"
)

type received struct {
	remote  net.IP
	cmd     wire.Command
	content string
}

func startServer(t *testing.T, handler Handler) (*Server, string, chan error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(handler)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(lis)
	}()
	return server, lis.Addr().String(), serveErr
}

func TestServeAndSend(t *testing.T) {
	results := make(chan received, 8)
	handler := HandlerFunc(func(remote net.IP, cmd wire.Command) {
		var content string
		if cmd.Content != nil {
			body, err := ioutil.ReadAll(cmd.Content)
			assert.NoError(t, err)
			content = string(body)
		}
		results <- received{remote, cmd, content}
	})
	server, addr, serveErr := startServer(t, handler)

	outbox := NewOutbox(net.ParseIP("127.0.0.1"))
	outbox.Send(addr, Fixed(wire.CheckFile("doc.txt", 17)))
	outbox.Send(addr, Fixed(wire.SendFile("notes.txt", 5, 11, strings.NewReader("hello world"))))
	outbox.Wait()

	got := map[wire.Code]received{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			got[r.cmd.Code] = r
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for command")
		}
	}

	check := got[wire.CodeCheckFile]
	assert.Equal(t, "doc.txt", check.cmd.Path)
	assert.Equal(t, int64(17), check.cmd.ModTime)
	assert.True(t, check.remote.Equal(net.ParseIP("127.0.0.1")))

	send := got[wire.CodeSendFile]
	assert.Equal(t, "notes.txt", send.cmd.Path)
	assert.Equal(t, "hello world", send.content)

	require.NoError(t, server.Close())
	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("accept loop didn't exit after Close")
	}
	server.Wait()
}

func TestMalformedCommandDoesNotStopServer(t *testing.T) {
	results := make(chan wire.Command, 1)
	server, addr, _ := startServer(t, HandlerFunc(func(_ net.IP, cmd wire.Command) {
		results <- cmd
	}))
	defer server.Close()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte{0, 0, 0, 99})
	require.NoError(t, err)
	conn.Close()

	require.NoError(t, NewOutbox(nil).SendNow(addr, Fixed(wire.NeedFile("doc.txt"))))
	select {
	case cmd := <-results:
		assert.Equal(t, wire.NeedFile("doc.txt"), cmd)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	calls := make(chan struct{}, 2)
	server, addr, _ := startServer(t, HandlerFunc(func(_ net.IP, cmd wire.Command) {
		calls <- struct{}{}
		if cmd.Code == wire.CodeLogin {
			panic("boom")
		}
	}))
	defer server.Close()

	outbox := NewOutbox(nil)
	require.NoError(t, outbox.SendNow(addr, Fixed(wire.Login("alice"))))
	require.NoError(t, outbox.SendNow(addr, Fixed(wire.Logout("alice"))))

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for handler")
		}
	}
}

func TestSendFailures(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	outbox := NewOutbox(nil)
	err = outbox.SendNow(addr, Fixed(wire.ServerDown()))
	assert.Error(t, err)

	buildErr := errors.New("file vanished")
	err = outbox.SendNow(addr, func() (wire.Command, error) {
		return wire.Command{}, buildErr
	})
	assert.Equal(t, buildErr, errors.RootCause(err))

	// Background sends swallow the error.
	outbox.Send(addr, Fixed(wire.ServerDown()))
	outbox.Wait()
}

func TestCloseBeforeServe(t *testing.T) {
	server := NewServer(HandlerFunc(func(net.IP, wire.Command) {}))
	assert.NoError(t, server.Close())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve didn't return for a closed server")
	}

	// The listener was released.
	_, err = net.DialTimeout("tcp", lis.Addr().String(), time.Second)
	assert.Error(t, err)
}
