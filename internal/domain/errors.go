package domain

import "errors"

// ErrIO indicates the persisted queue file could not be read or written
var ErrIO = errors.New("queue file i/o failed")

// ErrProcessLaunch indicates the downloader binary is missing or could not be spawned
var ErrProcessLaunch = errors.New("downloader process could not be launched")

// ErrNetworkClass marks a transient job failure that is eligible for retry
var ErrNetworkClass = errors.New("network error")

// ErrFatalJob marks an unrecoverable job failure (bad URL, removed content, unsupported format)
var ErrFatalJob = errors.New("fatal job error")

// ErrActorUnavailable is returned for messages sent after the state actor was torn down
var ErrActorUnavailable = errors.New("state actor unavailable")

// ErrLockPoisoned indicates a holder of the queue file lock faulted while holding it
var ErrLockPoisoned = errors.New("queue file lock poisoned")

// ErrAlreadyRunning is returned when a worker pool is started twice
var ErrAlreadyRunning = errors.New("worker pool already running")

// ErrNotRunning is returned when a pool operation needs an active pool
var ErrNotRunning = errors.New("worker pool not running")
