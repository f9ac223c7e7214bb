// Package client implements the sync client. It keeps a local directory in
// sync with the user's directory on the server: local changes are pushed as
// they happen, and pushes from the server are written under watcher
// suppression so that they aren't echoed back.
package client

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/syncbox/pkg/dispatch"
	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/fswatch"
	"github.com/sidkik/syncbox/pkg/metrics"
	"github.com/sidkik/syncbox/pkg/sync"
	"github.com/sidkik/syncbox/pkg/wire"
)

var fs = afero.NewOsFs()

// Config is the identity of a client process.
type Config struct {
	Login     string
	Directory string

	// ServerAddress is the host:port of the directory server.
	ServerAddress string

	// LocalIP is the address the client listens on, and the source address
	// of its outgoing connections. The server identifies sessions by it.
	LocalIP net.IP
	Port    int

	// BatchWindow overrides fswatch.DefaultBatchWindow when non-zero.
	BatchWindow time.Duration

	Observer sync.Observer
}

// Engine runs a sync client.
type Engine struct {
	config   Config
	observer sync.Observer
	dir      *sync.Dir
	ignore   *fswatch.IgnoreSet
	users    *Presence

	sender  dispatch.Sender
	server  *dispatch.Server
	watcher *fswatch.Watcher
}

// New creates an Engine. Nothing happens on the network until Start.
func New(config Config) *Engine {
	observer := config.Observer
	if observer == nil {
		observer = sync.NopObserver{}
	}

	engine := &Engine{
		config:   config,
		observer: observer,
		dir:      sync.NewDir(fs, config.Directory),
		ignore:   fswatch.NewIgnoreSet(),
		users:    NewPresence(),
		sender:   dispatch.NewOutbox(config.LocalIP),
	}
	engine.server = dispatch.NewServer(engine)
	return engine
}

// Start listens for pushes from the server, logs in, and starts watching the
// local directory.
func (e *Engine) Start() error {
	if err := e.dir.Create(); err != nil {
		return errors.WithContext(err, "create sync directory")
	}

	lis, err := net.Listen("tcp", e.listenAddress())
	if err != nil {
		return errors.WithContext(err, "listen")
	}

	go func() {
		if err := e.server.Serve(lis); err != nil {
			e.observer.Fatal(errors.WithContext(err, "accept loop"))
		}
	}()

	e.watcher = fswatch.New(e.dir.Root(), e.ignore, watchHandler{e})
	if e.config.BatchWindow != 0 {
		e.watcher.WithBatchWindow(e.config.BatchWindow)
	}
	if err := e.watcher.Start(); err != nil {
		e.server.Close()
		return errors.WithContext(err, "watch sync directory")
	}

	e.observer.Log(fmt.Sprintf("## Client running on %s, login is %s",
		lis.Addr(), e.config.Login))
	e.send(dispatch.Fixed(wire.Login(e.config.Login)), "<< sending login request")
	return nil
}

// Stop logs out, stops accepting pushes and watching the directory, and
// waits for all outstanding work to finish.
func (e *Engine) Stop() {
	e.send(dispatch.Fixed(wire.Logout(e.config.Login)), "<< sending logout request")

	if e.watcher != nil {
		e.watcher.Stop()
	}
	if err := e.server.Close(); err != nil {
		log.WithError(err).Warn("Failed to close listener")
	}
	e.server.Wait()
	e.sender.Wait()
}

// SendToUser copies the local file at `relPath` into `login`'s directory on
// the server.
func (e *Engine) SendToUser(login, relPath string) error {
	record, err := e.dir.Stat(relPath)
	if err != nil {
		return err
	}
	e.send(e.dir.SendToUserMessage(login, record.Path),
		fmt.Sprintf("<< sending file %s to %s", record.Path, login))
	return nil
}

// ActiveUsers returns the users that the server reported as logged in.
func (e *Engine) ActiveUsers() []string {
	return e.users.List()
}

// Files lists the synced files in the local directory.
func (e *Engine) Files() ([]sync.FileRecord, error) {
	return e.dir.List()
}

// Handle implements dispatch.Handler for commands pushed by the server.
func (e *Engine) Handle(remote net.IP, cmd wire.Command) {
	e.observer.Log(">> receiving " + cmd.String())

	switch cmd.Code {
	case wire.CodeLoginSuccess:
		e.advertiseAll()

	case wire.CodeCheckFile:
		e.checkFile(cmd.Path, cmd.ModTime)

	case wire.CodeNeedFile:
		e.send(e.dir.SendFileMessage(cmd.Path), "<< sending file "+cmd.Path)

	case wire.CodeSendFile:
		e.receiveFile(cmd)

	case wire.CodeDeleteFile:
		e.deleteFile(cmd.Path)

	case wire.CodeUserActive:
		if e.users.Add(cmd.Login) {
			e.observer.UserJoined(cmd.Login, "")
		}

	case wire.CodeUserInactive:
		if e.users.Remove(cmd.Login) {
			e.observer.UserLeft(cmd.Login)
		}

	case wire.CodeServerDown:
		e.observer.Fatal(errors.ErrServerDown)

	default:
		log.WithFields(log.Fields{
			"remote":  remote.String(),
			"command": cmd.String(),
		}).Warn("Ignoring unexpected command")
	}
}

func (e *Engine) advertiseAll() {
	records, err := e.dir.List()
	if err != nil {
		e.logError(err, "list local files")
		return
	}

	for _, record := range records {
		e.send(sync.CheckFileMessage(record),
			"<< sending file advertisement for "+record.Path)
	}
}

func (e *Engine) checkFile(relPath string, advertised int64) {
	e.observer.Log(fmt.Sprintf("## Checking if file %s is up to date", relPath))
	stale, err := e.dir.IsStale(relPath, advertised)
	if err != nil {
		e.logError(err, "check "+relPath)
		return
	}

	if stale {
		e.send(dispatch.Fixed(wire.NeedFile(relPath)), "<< sending send request for file "+relPath)
	}
}

func (e *Engine) receiveFile(cmd wire.Command) {
	relPath, err := sync.CleanPath(cmd.Path)
	if err != nil {
		e.logError(err, "receive file")
		return
	}

	e.ignore.Add(relPath)
	err = e.dir.Receive(relPath, cmd.ModTime, cmd.Size, cmd.Content)
	e.ignore.Remove(relPath)
	if err != nil {
		e.logError(err, "receive "+relPath)
		return
	}

	metrics.RecordBytesReceived(cmd.Size)
	e.observer.DirectoryChanged(e.config.Login)
}

func (e *Engine) deleteFile(path string) {
	relPath, err := sync.CleanPath(path)
	if err != nil {
		e.logError(err, "delete file")
		return
	}

	e.observer.Log("## Deleting file " + relPath)
	e.ignore.Add(relPath)
	_, err = e.dir.Remove(relPath)
	e.ignore.Remove(relPath)
	if err != nil {
		e.logError(err, "delete "+relPath)
		return
	}

	e.observer.DirectoryChanged(e.config.Login)
}

func (e *Engine) send(msg dispatch.Message, trace string) {
	e.observer.Log(trace)
	e.sender.Send(e.config.ServerAddress, msg)
}

func (e *Engine) logError(err error, action string) {
	log.WithError(err).WithField("login", e.config.Login).Warnf("Failed to %s", action)
	e.observer.Log(fmt.Sprintf("!! Failed to %s: %s", action, err))
}

func (e *Engine) listenAddress() string {
	ip := e.config.LocalIP
	if ip == nil {
		ip = net.IPv4zero
	}
	return dispatch.JoinHostPort(ip, e.config.Port)
}

// watchHandler pushes changes made to the local directory by the user.
type watchHandler struct {
	*Engine
}

func (h watchHandler) FileChanged(relPath string) {
	h.observer.Log("## File " + relPath + " was manually changed")
	h.send(h.dir.SendFileMessage(relPath), "<< sending file "+relPath)
}

func (h watchHandler) FileRemoved(relPath string) {
	h.observer.Log("## File " + relPath + " was manually deleted")
	h.send(dispatch.Fixed(wire.DeleteFile(relPath)), "<< sending delete request for file "+relPath)
}

func (h watchHandler) DirectoryChanged() {
	h.observer.DirectoryChanged(h.config.Login)
}
