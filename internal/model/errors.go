package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrNoValidImages is returned when a copy source has no matching files.
	ErrNoValidImages = errors.New("no valid images found")
	// ErrNothingCopied is returned when a staging copy finished without copying any image.
	ErrNothingCopied = errors.New("could not copy images")
	// ErrPreflightFailed is returned when a required precondition of a run is not met.
	ErrPreflightFailed = errors.New("preflight check failed")
	// ErrTaskRunning is returned when a task of the same kind is already running.
	ErrTaskRunning = errors.New("task already running")
	// ErrAlreadyStarted is returned when a worker instance is started twice.
	ErrAlreadyStarted = errors.New("worker already started")
)
