package util

import (
	log "github.com/sirupsen/logrus"
)

// LogObserver reports sync events through logrus. Protocol traces are only
// shown when verbose logging is enabled.
type LogObserver struct {
	fields log.Fields
	fatals chan error
}

// NewLogObserver creates a LogObserver that tags every entry with `fields`.
func NewLogObserver(fields log.Fields) *LogObserver {
	return &LogObserver{fields: fields, fatals: make(chan error, 1)}
}

// DirectoryChanged implements sync.Observer.
func (o *LogObserver) DirectoryChanged(login string) {
	o.entry().WithField("login", login).Debug("Directory changed")
}

// Log implements sync.Observer.
func (o *LogObserver) Log(msg string) {
	o.entry().Debug(msg)
}

// Fatal implements sync.Observer. Only the first error is kept.
func (o *LogObserver) Fatal(err error) {
	select {
	case o.fatals <- err:
	default:
		o.entry().WithError(err).Debug("Dropping fatal error")
	}
}

// UserJoined implements sync.Observer.
func (o *LogObserver) UserJoined(login, directory string) {
	entry := o.entry().WithField("login", login)
	if directory != "" {
		entry = entry.WithField("directory", directory)
	}
	entry.Info("User is active")
}

// UserLeft implements sync.Observer.
func (o *LogObserver) UserLeft(login string) {
	o.entry().WithField("login", login).Info("User is inactive")
}

// Fatals returns the errors passed to Fatal.
func (o *LogObserver) Fatals() <-chan error {
	return o.fatals
}

func (o *LogObserver) entry() *log.Entry {
	return log.WithFields(o.fields)
}
