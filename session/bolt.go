package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	sessionBucket   = "sessions"
	cleanupInterval = 5 * time.Minute
)

// BoltStore persists sessions in a BBolt database so they survive server
// restarts. Records are keyed by the SHA-256 of the token, so a copy of the
// database file does not hand out usable cookies.
type BoltStore struct {
	db       *bbolt.DB
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore returns a Store backed by the given BBolt database and starts
// a background sweep of expired sessions.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating session bucket: %w", err)
	}
	s := &BoltStore{
		db:     db,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s, nil
}

// OpenBoltStore opens a BBolt database at the given path and returns a new BoltStore.
func OpenBoltStore(path string, options *bbolt.Options) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewBoltStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close stops the background sweep and closes the underlying database.
func (s *BoltStore) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		err = s.db.Close()
	})
	return err
}

func tokenKey(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return []byte(hex.EncodeToString(sum[:]))
}

func (s *BoltStore) Get(token string) (Session, bool) {
	var session Session
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(sessionBucket)).Get(tokenKey(token))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &session)
	})
	if err != nil {
		// Corrupt entry; remove it.
		s.Delete(token)
		return Session{}, false
	}
	if !found {
		return Session{}, false
	}
	if session.Expired(time.Now()) {
		s.Delete(token)
		return Session{}, false
	}
	return session, true
}

func (s *BoltStore) Put(token string, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put(tokenKey(token), data)
	})
}

func (s *BoltStore) Touch(token string, at time.Time) {
	_ = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		key := tokenKey(token)
		data := b.Get(key)
		if data == nil {
			return nil
		}
		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			return err
		}
		session.LastAccessedAt = at
		updated, err := json.Marshal(session)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

func (s *BoltStore) Delete(token string) {
	_ = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Delete(tokenKey(token))
	})
}

// cleanupLoop periodically removes expired sessions from storage.
func (s *BoltStore) cleanupLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired(time.Now())
		}
	}
}

// sweepExpired deletes every session expired at now, along with entries that
// no longer decode. It returns the number of removed records.
func (s *BoltStore) sweepExpired(now time.Time) int {
	removed := 0
	_ = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil || session.Expired(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed
}
