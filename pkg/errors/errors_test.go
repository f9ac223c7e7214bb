package errors

import (
	goErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	assert.NoError(t, WithContext(nil, "ignored"))

	root := FileNotFound{Path: "/tmp/missing"}
	err := WithContext(WithContext(root, "open"), "receive file")
	assert.Equal(t, `receive file: open: "/tmp/missing" does not exist`, err.Error())
	assert.Equal(t, root, RootCause(err))
}

func TestIs(t *testing.T) {
	err := WithContext(ErrServerDown, "handle command")
	assert.True(t, Is(err, ErrServerDown))
	assert.False(t, Is(err, ErrShortContent))
	assert.False(t, Is(goErrors.New("other"), ErrServerDown))
}

func TestGetFriendlyMessage(t *testing.T) {
	friendly := NewFriendlyError("The directory %q doesn't exist.", "/sync")
	msg, ok := GetFriendlyMessage(WithContext(friendly, "start client"))
	assert.True(t, ok)
	assert.Equal(t, `The directory "/sync" doesn't exist.`, msg)

	_, ok = GetFriendlyMessage(New("plain"))
	assert.False(t, ok)
}
