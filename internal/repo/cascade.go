package repo

import (
	"context"
	"fmt"

	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// CascadeError reports a user deletion that stopped part-way. Records
// removed before the failure stay removed; the user record is only deleted
// once every dependent record is gone.
type CascadeError struct {
	UserID          string
	Step            string // "sessions", "accounts" or "user"
	SessionsDeleted int
	AccountsDeleted int
	Err             error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("delete user %s: %s step failed after removing %d sessions and %d accounts: %v",
		e.UserID, e.Step, e.SessionsDeleted, e.AccountsDeleted, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// dependent names a kind whose records reference a user through UserIdIndex,
// and how to read a record's primary key.
type dependent struct {
	step string
	kind storage.Kind
	keys func(ctx context.Context, b storage.Backend, userID string) ([]string, error)
}

var userDependents = []dependent{
	{step: "sessions", kind: storage.Sessions, keys: func(ctx context.Context, b storage.Backend, userID string) ([]string, error) {
		ss, err := ListSessionsByUser(ctx, b, userID)
		keys := make([]string, len(ss))
		for i := range ss {
			keys[i] = ss[i].SessionToken
		}
		return keys, err
	}},
	{step: "accounts", kind: storage.Accounts, keys: func(ctx context.Context, b storage.Backend, userID string) ([]string, error) {
		as, err := ListAccountsByUser(ctx, b, userID)
		keys := make([]string, len(as))
		for i := range as {
			keys[i] = as[i].ID
		}
		return keys, err
	}},
}

// DeleteUserCascade removes a user's sessions, then accounts, then the user.
// The first failure aborts the cascade and is returned as *CascadeError.
// Conversations the user took part in are left intact.
func DeleteUserCascade(ctx context.Context, b storage.Backend, userID string) error {
	cerr := &CascadeError{UserID: userID}
	for _, dep := range userDependents {
		cerr.Step = dep.step
		keys, err := dep.keys(ctx, b, userID)
		if err != nil {
			cerr.Err = err
			return cerr
		}
		for _, k := range keys {
			if err := b.Delete(ctx, dep.kind, k); err != nil {
				cerr.Err = err
				return cerr
			}
			if dep.step == "sessions" {
				cerr.SessionsDeleted++
			} else {
				cerr.AccountsDeleted++
			}
		}
	}
	if err := b.Delete(ctx, storage.Users, userID); err != nil {
		cerr.Step = "user"
		cerr.Err = err
		return cerr
	}
	return nil
}
