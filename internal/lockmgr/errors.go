package lockmgr

import "errors"

// ErrHeld is returned (wrapped) when the lock is held by another process
// and takeover isn't warranted or wasn't requested.
var ErrHeld = errors.New("lockmgr: lock held")
