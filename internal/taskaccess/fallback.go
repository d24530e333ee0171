package taskaccess

import (
	"errors"
	"fmt"

	"meetscribe/internal/api"
	"meetscribe/internal/dispatch"
	"meetscribe/internal/tasks"
)

// Source names where a session reads tasks from.
type Source string

const (
	SourceDaemon   Source = "daemon"
	SourceDatabase Source = "database"
)

// Session represents a task access handle and its cleanup function.
type Session struct {
	Access Access
	Source Source
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Openers supplies the ways a session can be backed. Probe returns a client
// only when the daemon answered; OpenDispatcher is optional.
type Openers struct {
	Probe          func() (*api.Client, error)
	OpenStore      func() (*tasks.Store, error)
	OpenDispatcher func() (dispatch.Dispatcher, error)
}

// OpenWithFallback tries the daemon API first, then falls back to direct store access.
func OpenWithFallback(openers Openers) (Session, error) {
	if openers.Probe != nil {
		if client, err := openers.Probe(); err == nil && client != nil {
			return Session{Access: NewAPIAccess(client), Source: SourceDaemon}, nil
		}
	}

	if openers.OpenStore == nil {
		return Session{}, errors.New("open task store: no store opener configured")
	}
	store, err := openers.OpenStore()
	if err != nil {
		return Session{}, fmt.Errorf("open task store: %w", err)
	}

	var dispatcher dispatch.Dispatcher
	if openers.OpenDispatcher != nil {
		if dispatcher, err = openers.OpenDispatcher(); err != nil {
			_ = store.Close()
			return Session{}, fmt.Errorf("open dispatcher: %w", err)
		}
	}
	return Session{
		Access: NewStoreAccess(store, dispatcher, nil),
		Source: SourceDatabase,
		close: func() error {
			var errs []error
			if dispatcher != nil {
				errs = append(errs, dispatcher.Close())
			}
			errs = append(errs, store.Close())
			return errors.Join(errs...)
		},
	}, nil
}
