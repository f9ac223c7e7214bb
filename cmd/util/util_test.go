package util

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/sync"
)

func mockExit() (*bytes.Buffer, *int) {
	var out bytes.Buffer
	code := -1
	stderr = &out
	exit = func(c int) { code = c }
	return &out, &code
}

func TestHandleFatalError(t *testing.T) {
	out, code := mockExit()
	HandleFatalError(errors.WithContext(errors.New("connection refused"), "dial"))
	assert.Equal(t, "Error: dial: connection refused\n", out.String())
	assert.Equal(t, 1, *code)

	out, code = mockExit()
	HandleFatalError(errors.WithContext(
		errors.NewFriendlyError("The server at %s is down.", "127.0.0.1:4000"), "login"))
	assert.Equal(t, "The server at 127.0.0.1:4000 is down.\n", out.String())
	assert.Equal(t, 1, *code)
}

func TestHandlePanic(t *testing.T) {
	_, code := mockExit()
	func() {
		defer HandlePanic()
		panic("boom")
	}()
	assert.Equal(t, 1, *code)

	_, code = mockExit()
	func() {
		defer HandlePanic()
	}()
	assert.Equal(t, -1, *code)
}

func TestLogObserver(t *testing.T) {
	var _ sync.Observer = &LogObserver{}

	hook := logrusTest.NewGlobal()
	defer hook.Reset()

	observer := NewLogObserver(log.Fields{"component": "client"})
	observer.UserJoined("bob", "")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "User is active", hook.LastEntry().Message)
	assert.Equal(t, "bob", hook.LastEntry().Data["login"])
	assert.Equal(t, "client", hook.LastEntry().Data["component"])
	assert.NotContains(t, hook.LastEntry().Data, "directory")

	observer.UserLeft("bob")
	assert.Equal(t, "User is inactive", hook.LastEntry().Message)

	first := errors.New("server down")
	observer.Fatal(first)
	observer.Fatal(errors.New("second"))
	assert.Equal(t, first, <-observer.Fatals())
	select {
	case err := <-observer.Fatals():
		t.Fatalf("unexpected fatal error: %s", err)
	default:
	}
}
