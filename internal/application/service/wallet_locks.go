package service

import (
	"sync"
)

// walletLocks serialises read-modify-write cycles per wallet address.
// Entries are reference counted and dropped once no caller holds them.
type walletLocks struct {
	mu    sync.Mutex
	locks map[string]*walletLock
}

type walletLock struct {
	mu   sync.Mutex
	refs int
}

func newWalletLocks() *walletLocks {
	return &walletLocks{locks: make(map[string]*walletLock)}
}

// lock acquires the mutex for wallet and returns its release func
func (w *walletLocks) lock(wallet string) func() {
	w.mu.Lock()
	l, ok := w.locks[wallet]
	if !ok {
		l = &walletLock{}
		w.locks[wallet] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, wallet)
		}
		w.mu.Unlock()
	}
}

func (w *walletLocks) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.locks)
}
