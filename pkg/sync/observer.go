package sync

// Observer receives the events that a front end displays. The core calls it
// synchronously from whichever goroutine noticed the event, so
// implementations must be safe for concurrent use and shouldn't block.
type Observer interface {
	// DirectoryChanged is called after files in `login`'s directory were
	// written or deleted.
	DirectoryChanged(login string)

	// Log receives protocol traces.
	Log(msg string)

	// Fatal is called for errors that the process can't recover from, such
	// as the server shutting down underneath a client.
	Fatal(err error)

	// UserJoined is called when `login` gets its first session. `directory`
	// is the user's server-side directory, and is empty on clients.
	UserJoined(login, directory string)

	// UserLeft is called when `login` loses its last session.
	UserLeft(login string)
}

// NopObserver ignores every event.
type NopObserver struct{}

// DirectoryChanged implements Observer.
func (NopObserver) DirectoryChanged(string) {}

// Log implements Observer.
func (NopObserver) Log(string) {}

// Fatal implements Observer.
func (NopObserver) Fatal(error) {}

// UserJoined implements Observer.
func (NopObserver) UserJoined(string, string) {}

// UserLeft implements Observer.
func (NopObserver) UserLeft(string) {}
