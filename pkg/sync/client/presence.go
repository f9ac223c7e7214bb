package client

import (
	"sort"
	"sync"
)

// Presence is the set of users that the server reported as active.
type Presence struct {
	lock  sync.Mutex
	users map[string]struct{}
}

// NewPresence returns an empty Presence.
func NewPresence() *Presence {
	return &Presence{users: map[string]struct{}{}}
}

// Add marks `login` as active. It returns false if it already was.
func (p *Presence) Add(login string) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.users[login]; ok {
		return false
	}
	p.users[login] = struct{}{}
	return true
}

// Remove marks `login` as inactive. It returns false if it wasn't active.
func (p *Presence) Remove(login string) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.users[login]; !ok {
		return false
	}
	delete(p.users, login)
	return true
}

// List returns the active logins in sorted order.
func (p *Presence) List() []string {
	p.lock.Lock()
	defer p.lock.Unlock()

	users := make([]string, 0, len(p.users))
	for login := range p.users {
		users = append(users, login)
	}
	sort.Strings(users)
	return users
}
