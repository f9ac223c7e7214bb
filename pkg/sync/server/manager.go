package server

import (
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/syncbox/pkg/dispatch"
	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/metrics"
	dirsync "github.com/sidkik/syncbox/pkg/sync"
	"github.com/sidkik/syncbox/pkg/wire"
)

var fs = afero.NewOsFs()

// user is a login with at least one session. It owns a directory under the
// server's root.
type user struct {
	login    string
	dir      *dirsync.Dir
	sessions map[string]*session
}

// session is one connected client, identified by its source IP.
type session struct {
	ip      net.IP
	address string
	user    *user
}

func (s *session) String() string {
	return fmt.Sprintf("%s(%s)", s.ip, s.user.login)
}

// Manager tracks users and their sessions, and relays changes between them.
type Manager struct {
	root       string
	clientPort int
	sender     dispatch.Sender
	observer   dirsync.Observer

	lock     sync.Mutex
	users    map[string]*user
	sessions map[string]*session
}

// NewManager creates a Manager that stores user directories under `root`,
// and pushes to clients on `clientPort`.
func NewManager(root string, clientPort int, sender dispatch.Sender,
	observer dirsync.Observer) *Manager {
	if observer == nil {
		observer = dirsync.NopObserver{}
	}
	return &Manager{
		root:       root,
		clientPort: clientPort,
		sender:     sender,
		observer:   observer,
		users:      map[string]*user{},
		sessions:   map[string]*session{},
	}
}

// Handle implements dispatch.Handler.
func (m *Manager) Handle(remote net.IP, cmd wire.Command) {
	m.observer.Log(fmt.Sprintf(">> receiving %s from %s", cmd, remote))

	var err error
	switch cmd.Code {
	case wire.CodeLogin:
		err = m.AddClient(remote, cmd.Login)
	case wire.CodeLogout:
		if !m.RemoveClient(remote) {
			err = errors.New("no session")
		}
	case wire.CodeSendFile:
		err = m.receiveUpload(remote, cmd)
	case wire.CodeSendToUser:
		err = m.receiveForUser(cmd)
	case wire.CodeNeedFile:
		err = m.sendRequested(remote, cmd.Path)
	case wire.CodeDeleteFile:
		err = m.deleteFile(remote, cmd.Path)
	case wire.CodeCheckFile:
		err = m.checkFile(remote, cmd.Path, cmd.ModTime)
	default:
		err = errors.New("unexpected command")
	}

	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"remote":  remote.String(),
			"command": cmd.String(),
		}).Warn("Failed to handle command")
		m.observer.Log(fmt.Sprintf("!! Failed to handle %s from %s: %s", cmd, remote, err))
	}
}

// AddClient registers a session for `login` at `ip`. A new user gets its
// directory created and is announced to every other user. The new session
// is then caught up: it's told about every active user, and gets an
// advertisement for every file in the user's directory.
func (m *Manager) AddClient(ip net.IP, login string) error {
	if err := validateLogin(login); err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	key := ip.String()
	if _, ok := m.sessions[key]; ok {
		log.WithField("address", key).Info("Replacing existing session")
		m.removeClientLocked(key)
	}

	u, ok := m.users[login]
	if !ok {
		dir := dirsync.NewDir(fs, filepath.Join(m.root, login))
		if err := dir.Create(); err != nil {
			return errors.WithContext(err, "create user directory")
		}

		for _, other := range m.users {
			m.broadcastLocked(other, nil, dispatch.Fixed(wire.UserActive(login)),
				"active user notification")
		}

		u = &user{login: login, dir: dir, sessions: map[string]*session{}}
		m.users[login] = u
		m.observer.UserJoined(login, dir.Root())
		m.observer.Log("# User " + login + " joined")
	}

	s := &session{
		ip:      ip,
		address: dispatch.JoinHostPort(ip, m.clientPort),
		user:    u,
	}
	m.sessions[key] = s
	u.sessions[key] = s
	m.updateGaugesLocked()

	for _, active := range m.loginsLocked() {
		m.sendLocked(s, dispatch.Fixed(wire.UserActive(active)), "active user notification")
	}
	m.sendLocked(s, dispatch.Fixed(wire.LoginSuccess()), "login success")

	records, err := u.dir.List()
	if err != nil {
		return errors.WithContext(err, "list user directory")
	}
	for _, record := range records {
		m.sendLocked(s, dirsync.CheckFileMessage(record),
			"advertisement about file "+record.Path)
	}
	return nil
}

// RemoveClient drops the session at `ip`. If it was the user's last session,
// the user is dropped and every other user is told. It returns false if
// there was no session.
func (m *Manager) RemoveClient(ip net.IP) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.removeClientLocked(ip.String())
}

func (m *Manager) removeClientLocked(key string) bool {
	s, ok := m.sessions[key]
	if !ok {
		return false
	}

	delete(m.sessions, key)
	u := s.user
	delete(u.sessions, key)

	if len(u.sessions) == 0 {
		delete(m.users, u.login)
		for _, other := range m.users {
			m.broadcastLocked(other, nil, dispatch.Fixed(wire.UserInactive(u.login)),
				"inactive user notification")
		}
		m.observer.UserLeft(u.login)
		m.observer.Log("# User " + u.login + " left")
	}
	m.updateGaugesLocked()
	return true
}

// Shutdown tells every session that the server is going down.
func (m *Manager) Shutdown() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, u := range m.users {
		m.broadcastLocked(u, nil, dispatch.Fixed(wire.ServerDown()), "server shutdown info")
	}
}

// Users returns the source addresses of each user's sessions.
func (m *Manager) Users() map[string][]string {
	m.lock.Lock()
	defer m.lock.Unlock()

	users := map[string][]string{}
	for login, u := range m.users {
		addresses := []string{}
		for key := range u.sessions {
			addresses = append(addresses, key)
		}
		sort.Strings(addresses)
		users[login] = addresses
	}
	return users
}

// receiveUpload stores a file pushed by a session, and relays it to the
// user's other sessions.
func (m *Manager) receiveUpload(remote net.IP, cmd wire.Command) error {
	s, err := m.getSession(remote)
	if err != nil {
		return err
	}

	relPath, err := m.store(s.user, cmd)
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.broadcastLocked(s.user, s, s.user.dir.SendFileMessage(relPath), "file "+relPath)
	return nil
}

// receiveForUser stores a file sent to another user, and pushes it to all of
// that user's sessions. Files for users that aren't logged in are dropped.
func (m *Manager) receiveForUser(cmd wire.Command) error {
	m.lock.Lock()
	target, ok := m.users[cmd.Login]
	m.lock.Unlock()

	if !ok {
		if _, err := io.Copy(ioutil.Discard, cmd.Content); err != nil {
			return errors.WithContext(err, "discard content")
		}
		return errors.Errorf("user %q isn't logged in", cmd.Login)
	}

	relPath, err := m.store(target, cmd)
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.broadcastLocked(target, nil, target.dir.SendFileMessage(relPath), "file "+relPath)
	return nil
}

func (m *Manager) store(u *user, cmd wire.Command) (string, error) {
	relPath, err := dirsync.CleanPath(cmd.Path)
	if err != nil {
		return "", err
	}

	if err := u.dir.Receive(relPath, cmd.ModTime, cmd.Size, cmd.Content); err != nil {
		return "", errors.WithContext(err, "store "+relPath)
	}
	metrics.RecordBytesReceived(cmd.Size)
	m.observer.DirectoryChanged(u.login)
	return relPath, nil
}

func (m *Manager) sendRequested(remote net.IP, path string) error {
	s, err := m.getSession(remote)
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.sendLocked(s, s.user.dir.SendFileMessage(path), "file "+path)
	return nil
}

func (m *Manager) deleteFile(remote net.IP, path string) error {
	s, err := m.getSession(remote)
	if err != nil {
		return err
	}

	relPath, err := dirsync.CleanPath(path)
	if err != nil {
		return err
	}

	removed, err := s.user.dir.Remove(relPath)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	m.observer.DirectoryChanged(s.user.login)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.broadcastLocked(s.user, s, dispatch.Fixed(wire.DeleteFile(relPath)),
		"delete request for file "+relPath)
	return nil
}

func (m *Manager) checkFile(remote net.IP, path string, advertised int64) error {
	s, err := m.getSession(remote)
	if err != nil {
		return err
	}

	m.observer.Log(fmt.Sprintf(">> Checking if file %s from %s is up to date", path, s))
	stale, err := s.user.dir.IsStale(path, advertised)
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.sendLocked(s, dispatch.Fixed(wire.NeedFile(path)), "send request for file "+path)
	return nil
}

func (m *Manager) getSession(remote net.IP) (*session, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	s, ok := m.sessions[remote.String()]
	if !ok {
		return nil, errors.New("no session")
	}
	return s, nil
}

// broadcastLocked sends `msg` to every session of `u`, except for `except`.
func (m *Manager) broadcastLocked(u *user, except *session, msg dispatch.Message, desc string) {
	for _, s := range u.sessions {
		if s != except {
			m.sendLocked(s, msg, desc)
		}
	}
}

func (m *Manager) sendLocked(s *session, msg dispatch.Message, desc string) {
	m.observer.Log(fmt.Sprintf("<< Sending %s to %s", desc, s))
	m.sender.Send(s.address, msg)
}

func (m *Manager) loginsLocked() []string {
	logins := make([]string, 0, len(m.users))
	for login := range m.users {
		logins = append(logins, login)
	}
	sort.Strings(logins)
	return logins
}

func (m *Manager) updateGaugesLocked() {
	metrics.SetActive(len(m.users), len(m.sessions))
}

// validateLogin checks that `login` can be used as a directory name.
func validateLogin(login string) error {
	if login == "" || login == "." || login == ".." ||
		strings.ContainsAny(login, `/\`) || strings.HasPrefix(login, ".") {
		return errors.Errorf("invalid login %q", login)
	}
	return nil
}
