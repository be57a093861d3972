package registry

import (
	"context"
	"fmt"
	"os"
	"time"
)

const lockPollInterval = 50 * time.Millisecond

// Lock takes an exclusive advisory lock on the registry for the duration of a mutation.
// It blocks until the lock is acquired or ctx is done. The returned func releases it.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry lock: %w", err)
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := tryLock(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to lock registry: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, fmt.Errorf("timed out waiting for registry lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	return func() error {
		unlockErr := unlock(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}
