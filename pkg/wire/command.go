// Package wire implements the syncbox wire protocol.
//
// Every message travels on its own TCP connection: a big-endian int32
// command code followed by a payload whose shape is fixed by the code.
// Strings are a uint16 byte length followed by UTF-8 bytes, timestamps and
// sizes are big-endian int64s, and file content is exactly `size` raw bytes.
package wire

import (
	"fmt"
	"io"
)

// Code identifies a command on the wire.
type Code int32

// The command vocabulary shared by the client and the server.
const (
	CodeLogin        Code = 1
	CodeLogout       Code = 2
	CodeLoginSuccess Code = 3
	CodeSendFile     Code = 4
	CodeDeleteFile   Code = 5
	CodeCheckFile    Code = 6
	CodeNeedFile     Code = 7
	CodeUserActive   Code = 8
	CodeUserInactive Code = 9
	CodeSendToUser   Code = 10
	CodeServerDown   Code = 11
)

var codeNames = map[Code]string{
	CodeLogin:        "LOGIN",
	CodeLogout:       "LOGOUT",
	CodeLoginSuccess: "LOGIN_SUCCESS",
	CodeSendFile:     "SEND_FILE",
	CodeDeleteFile:   "DELETE_FILE",
	CodeCheckFile:    "CHECK_FILE",
	CodeNeedFile:     "NEED_FILE",
	CodeUserActive:   "USER_ACTIVE",
	CodeUserInactive: "USER_INACTIVE",
	CodeSendToUser:   "SEND_TO_USER",
	CodeServerDown:   "SERVER_DOWN",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(c))
}

// Valid returns whether the code is part of the vocabulary.
func (c Code) Valid() bool {
	_, ok := codeNames[c]
	return ok
}

// Command is a single protocol message. Which fields are meaningful depends
// on Code:
//
//	LOGIN, LOGOUT, USER_ACTIVE, USER_INACTIVE   Login
//	SEND_FILE                                  Path, ModTime, Size, Content
//	SEND_TO_USER                               Login (target), Path, ModTime, Size, Content
//	DELETE_FILE, NEED_FILE                     Path
//	CHECK_FILE                                 Path, ModTime
//	LOGIN_SUCCESS, SERVER_DOWN                 -
//
// Commands are built once and not modified after they're written.
type Command struct {
	Code Code

	Login string
	Path  string

	// ModTime is in milliseconds since the Unix epoch.
	ModTime int64
	Size    int64

	// Content supplies exactly Size bytes. On decoded commands it reads
	// directly from the connection, so it's only valid until the handler
	// returns.
	Content io.Reader
}

func (cmd Command) String() string {
	switch cmd.Code {
	case CodeLogin, CodeLogout, CodeUserActive, CodeUserInactive:
		return fmt.Sprintf("%s(%s)", cmd.Code, cmd.Login)
	case CodeSendFile:
		return fmt.Sprintf("%s(%s, mtime=%d, size=%d)", cmd.Code, cmd.Path, cmd.ModTime, cmd.Size)
	case CodeSendToUser:
		return fmt.Sprintf("%s(%s, %s, mtime=%d, size=%d)",
			cmd.Code, cmd.Login, cmd.Path, cmd.ModTime, cmd.Size)
	case CodeCheckFile:
		return fmt.Sprintf("%s(%s, mtime=%d)", cmd.Code, cmd.Path, cmd.ModTime)
	case CodeDeleteFile, CodeNeedFile:
		return fmt.Sprintf("%s(%s)", cmd.Code, cmd.Path)
	default:
		return cmd.Code.String()
	}
}

// Login asks the server to register a session for `login`.
func Login(login string) Command {
	return Command{Code: CodeLogin, Login: login}
}

// Logout asks the server to drop the sender's session.
func Logout(login string) Command {
	return Command{Code: CodeLogout, Login: login}
}

// LoginSuccess tells a client its session is registered.
func LoginSuccess() Command {
	return Command{Code: CodeLoginSuccess}
}

// SendFile pushes a file's content.
func SendFile(path string, modTime, size int64, content io.Reader) Command {
	return Command{Code: CodeSendFile, Path: path, ModTime: modTime, Size: size, Content: content}
}

// SendToUser pushes a file into another user's directory.
func SendToUser(login, path string, modTime, size int64, content io.Reader) Command {
	return Command{Code: CodeSendToUser, Login: login, Path: path,
		ModTime: modTime, Size: size, Content: content}
}

// DeleteFile asks the peer to delete `path`.
func DeleteFile(path string) Command {
	return Command{Code: CodeDeleteFile, Path: path}
}

// CheckFile advertises that the sender has `path` at `modTime`.
func CheckFile(path string, modTime int64) Command {
	return Command{Code: CodeCheckFile, Path: path, ModTime: modTime}
}

// NeedFile asks the peer to send `path`.
func NeedFile(path string) Command {
	return Command{Code: CodeNeedFile, Path: path}
}

// UserActive announces that `login` has at least one session.
func UserActive(login string) Command {
	return Command{Code: CodeUserActive, Login: login}
}

// UserInactive announces that `login` has no sessions left.
func UserInactive(login string) Command {
	return Command{Code: CodeUserInactive, Login: login}
}

// ServerDown announces that the server is stopping.
func ServerDown() Command {
	return Command{Code: CodeServerDown}
}
