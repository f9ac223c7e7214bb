package wire

import (
	"bytes"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/syncbox/pkg/errors"
)

func TestWriteLayout(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		exp  []byte
	}{
		{
			name: "LoginSuccess",
			cmd:  LoginSuccess(),
			exp:  []byte{0, 0, 0, 3},
		},
		{
			name: "Login",
			cmd:  Login("al"),
			exp:  []byte{0, 0, 0, 1, 0, 2, 'a', 'l'},
		},
		{
			name: "CheckFile",
			cmd:  CheckFile("a", 258),
			exp: []byte{0, 0, 0, 6, 0, 1, 'a',
				0, 0, 0, 0, 0, 0, 1, 2},
		},
		{
			name: "SendFile",
			cmd:  SendFile("f", 1, 3, strings.NewReader("xyz")),
			exp: []byte{0, 0, 0, 4, 0, 1, 'f',
				0, 0, 0, 0, 0, 0, 0, 1,
				0, 0, 0, 0, 0, 0, 0, 3,
				'x', 'y', 'z'},
		},
		{
			name: "SendToUser",
			cmd:  SendToUser("b", "f", 1, 0, nil),
			exp: []byte{0, 0, 0, 10, 0, 1, 'b', 0, 1, 'f',
				0, 0, 0, 0, 0, 0, 0, 1,
				0, 0, 0, 0, 0, 0, 0, 0},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, test.cmd))
			assert.Equal(t, test.exp, buf.Bytes())
		})
	}
}

func TestReadWrite(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 10000)
	tests := []Command{
		Login("alice"),
		Logout("alice"),
		LoginSuccess(),
		DeleteFile("dir/notes.txt"),
		CheckFile("doc.txt", 1554000000123),
		NeedFile("doc.txt"),
		UserActive("bob"),
		UserInactive("bob"),
		ServerDown(),
		SendFile("photo.jpg", 42, int64(len(content)), bytes.NewReader(content)),
		SendToUser("alice", "photo.jpg", 42, int64(len(content)), bytes.NewReader(content)),
	}

	for _, exp := range tests {
		exp := exp
		t.Run(exp.Code.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, exp))

			actual, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, exp.Code, actual.Code)
			assert.Equal(t, exp.Login, actual.Login)
			assert.Equal(t, exp.Path, actual.Path)
			assert.Equal(t, exp.ModTime, actual.ModTime)
			assert.Equal(t, exp.Size, actual.Size)

			if hasContent(exp.Code) {
				body, err := ioutil.ReadAll(actual.Content)
				require.NoError(t, err)
				assert.Equal(t, content, body)
			} else {
				assert.Nil(t, actual.Content)
			}
		})
	}
}

func TestReadUnknownCode(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{0, 0, 0, 99}))
	assert.Equal(t, errors.UnknownCommand{Code: 99}, err)
}

func TestReadTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CheckFile("doc.txt", 7)))
	truncated := buf.Bytes()[:buf.Len()-3]

	_, err := Read(bytes.NewReader(truncated))
	assert.Error(t, err)

	_, err = Read(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestReadShortContent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, SendFile("f", 1, 5, strings.NewReader("hello"))))
	truncated := buf.Bytes()[:buf.Len()-2]

	cmd, err := Read(bytes.NewReader(truncated))
	require.NoError(t, err)

	_, err = ioutil.ReadAll(cmd.Content)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestWriteShortContent(t *testing.T) {
	err := Write(ioutil.Discard, SendFile("f", 1, 10, strings.NewReader("short")))
	assert.Equal(t, errors.ErrShortContent, errors.RootCause(err))
}

func TestWriteInvalid(t *testing.T) {
	assert.Error(t, Write(ioutil.Discard, Command{Code: 0}))
	assert.Error(t, Write(ioutil.Discard, CheckFile(strings.Repeat("a", 70000), 1)))
	assert.Error(t, Write(ioutil.Discard, SendFile("f", 1, -1, nil)))
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "SEND_TO_USER", CodeSendToUser.String())
	assert.Equal(t, "UNKNOWN(12)", Code(12).String())
	assert.Equal(t, "CHECK_FILE(doc.txt, mtime=5)", CheckFile("doc.txt", 5).String())
}
