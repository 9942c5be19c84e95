package fakelogrepo

import (
	"context"
	"sync"

	"github.com/theavidstallion/quantrust/activity"
	"github.com/theavidstallion/quantrust/internal/ids"
)

var _ activity.Repo = (*FakeLogRepo)(nil)

// FakeLogRepo is an in-memory activity.Repo. FailAppends forces Append to
// error so callers can exercise the best-effort contract.
type FakeLogRepo struct {
	entries     []*activity.Entry
	lock        sync.RWMutex
	FailAppends bool
}

func NewFakeLogRepo() *FakeLogRepo {
	return &FakeLogRepo{}
}

func (lr *FakeLogRepo) Append(_ context.Context, entry *activity.Entry) error {
	lr.lock.Lock()
	defer lr.lock.Unlock()

	if lr.FailAppends {
		return activity.ErrStorageUnavailable
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	lr.entries = append(lr.entries, entry)
	return nil
}

func (lr *FakeLogRepo) List(_ context.Context, limit int) ([]*activity.Entry, error) {
	lr.lock.RLock()
	defer lr.lock.RUnlock()

	// Newest first.
	list := make([]*activity.Entry, 0, len(lr.entries))
	for i := len(lr.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(list) >= limit {
			break
		}
		list = append(list, lr.entries[i])
	}
	return list, nil
}

// Entries returns every recorded entry in append order.
func (lr *FakeLogRepo) Entries() []*activity.Entry {
	lr.lock.RLock()
	defer lr.lock.RUnlock()

	list := make([]*activity.Entry, len(lr.entries))
	copy(list, lr.entries)
	return list
}
