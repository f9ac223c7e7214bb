// Package vip allocates distinct loopback addresses to client processes on
// the same host. The next free address of each group is kept in a file in
// the temp directory, and every allocation takes an exclusive lock on it.
package vip

import (
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/sidkik/syncbox/pkg/errors"
)

// DefaultGroup and DefaultStart are the group and first address used by
// clients that don't configure their own.
const (
	DefaultGroup = "syncbox-virtual-network"
	DefaultStart = "127.0.0.2"
)

var stateDir = os.TempDir()

// Allocate returns the next address in `group`, starting from `start` if the
// group has never been used. Allocations are never returned to the pool.
func Allocate(group, start string) (net.IP, error) {
	startIP := net.ParseIP(start).To4()
	if startIP == nil {
		return nil, errors.Errorf("%q is not an IPv4 address", start)
	}

	path := filepath.Join(stateDir, group)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.WithContext(err, "open address file")
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return nil, errors.WithContext(err, "lock address file")
	}
	defer func() {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to unlock address file")
		}
	}()

	buf := make([]byte, net.IPv4len)
	_, err = io.ReadFull(f, buf)
	switch {
	case err == io.EOF:
		// The group is new.
		copy(buf, startIP)
	case err != nil:
		return nil, errors.WithContext(err, "read address file")
	}

	allocated := net.IP(append([]byte(nil), buf...))
	binary.BigEndian.PutUint32(buf, binary.BigEndian.Uint32(buf)+1)

	if _, err := f.WriteAt(buf, 0); err != nil {
		return nil, errors.WithContext(err, "write address file")
	}
	return allocated, nil
}
