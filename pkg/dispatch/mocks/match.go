package mocks

import (
	"io"
	"io/ioutil"

	"github.com/stretchr/testify/mock"

	"github.com/sidkik/syncbox/pkg/dispatch"
	"github.com/sidkik/syncbox/pkg/wire"
)

// Command matches a dispatch.Message that builds `exp`. The message's content,
// if any, must equal `body`. `exp` should have a nil Content.
func Command(exp wire.Command, body string) interface{} {
	return mock.MatchedBy(func(msg dispatch.Message) bool {
		cmd, err := Build(msg)
		if err != nil {
			return false
		}
		actualBody := cmd.Body
		cmd.Command.Content = nil
		return cmd.Command == exp && actualBody == body
	})
}

// BuiltCommand is a command whose content has been read into memory.
type BuiltCommand struct {
	wire.Command
	Body string
}

// Build runs `msg` and reads its content.
func Build(msg dispatch.Message) (BuiltCommand, error) {
	cmd, err := msg()
	if err != nil {
		return BuiltCommand{}, err
	}

	built := BuiltCommand{Command: cmd}
	if cmd.Content != nil {
		body, err := ioutil.ReadAll(cmd.Content)
		if closer, ok := cmd.Content.(io.Closer); ok {
			closer.Close()
		}
		if err != nil {
			return BuiltCommand{}, err
		}
		built.Body = string(body)
	}
	return built, nil
}
