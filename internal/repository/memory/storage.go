// Package memory keeps users in process memory.
// Used to run services without a database in tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/studentauth/internal/models"
	"github.com/nkiryanov/studentauth/internal/repository"
)

type state struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User

	// Serializes transactions
	txMu sync.Mutex
}

// Values users had before the transaction first touched them, nil if user did not exist
type undoLog map[uuid.UUID]*models.User

// Remember user state before the change. Caller must hold state lock
func (l undoLog) record(st *state, id uuid.UUID) {
	if l == nil {
		return
	}
	if _, ok := l[id]; ok {
		return
	}

	var prev *models.User
	if u, ok := st.users[id]; ok {
		u = copyUser(u)
		prev = &u
	}
	l[id] = prev
}

type Storage struct {
	st *state

	// Set inside transaction only
	undo undoLog
}

func NewStorage() repository.Storage {
	return &Storage{
		st: &state{users: make(map[uuid.UUID]models.User)},
	}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{st: s.st, undo: s.undo}
}

// Run fn holding the transaction lock. Users changed by fn are restored if it fails,
// changes made outside the transaction meanwhile are kept
// Nested calls run fn in the outer transaction
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	if s.undo != nil {
		return fn(s)
	}

	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	undo := make(undoLog)
	err := fn(&Storage{st: s.st, undo: undo})
	if err != nil {
		s.st.mu.Lock()
		for id, prev := range undo {
			if prev == nil {
				delete(s.st.users, id)
			} else {
				s.st.users[id] = *prev
			}
		}
		s.st.mu.Unlock()
	}

	return err
}
