package vip

import (
	"io/ioutil"
	"net"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempDir(t *testing.T) func() {
	dir, err := ioutil.TempDir("", "syncbox-vip")
	require.NoError(t, err)
	stateDir = dir
	return func() {
		stateDir = os.TempDir()
		os.RemoveAll(dir)
	}
}

func TestAllocate(t *testing.T) {
	defer useTempDir(t)()

	ip, err := Allocate("group", "127.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.2", ip.String())

	// The start address only matters for the first allocation.
	ip, err = Allocate("group", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.3", ip.String())

	ip, err = Allocate("other", "10.0.0.255")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.255", ip.String())

	// Carries into the next octet.
	ip, err = Allocate("other", "10.0.0.255")
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.0", ip.String())
}

func TestAllocateInvalidStart(t *testing.T) {
	defer useTempDir(t)()

	_, err := Allocate("group", "not-an-ip")
	assert.Error(t, err)

	_, err = Allocate("group", "::1")
	assert.Error(t, err)
}

func TestAllocateConcurrent(t *testing.T) {
	defer useTempDir(t)()

	var lock sync.Mutex
	var allocated []string
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ip, err := Allocate("group", "127.0.0.2")
			assert.NoError(t, err)

			lock.Lock()
			allocated = append(allocated, ip.String())
			lock.Unlock()
		}()
	}
	wg.Wait()

	var exp []string
	start := net.ParseIP("127.0.0.2").To4()
	for i := 0; i < 20; i++ {
		exp = append(exp, net.IPv4(start[0], start[1], start[2], start[3]+byte(i)).String())
	}
	sort.Strings(exp)
	sort.Strings(allocated)
	assert.Equal(t, exp, allocated)
}
