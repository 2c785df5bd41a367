package queue

import "errors"

var (
	// ErrPostInFlight is returned when a post starts while another is unresolved.
	ErrPostInFlight = errors.New("a post is already in flight")
	// ErrHeadChanged means the head of the queue is not the item being posted.
	// It signals a concurrency bug in the caller and must not be ignored.
	ErrHeadChanged = errors.New("queue head changed during post")
	// ErrFrozen is returned by Post while a freeze is active.
	ErrFrozen = errors.New("publishing is frozen")
	// ErrCoolingDown is returned by Post before the cooldown deadline.
	ErrCoolingDown = errors.New("cooldown has not elapsed")
	ErrNotQueued   = errors.New("item is not queued")
	ErrDuplicate   = errors.New("item is already queued")
	ErrEmptyPath   = errors.New("item path is empty")
)
