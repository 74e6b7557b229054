package cluster

import "errors"

var (
	// ErrNoFaceDetected is returned when an image contains no usable face.
	// It is an outcome rather than a failure: the image is simply not clustered.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrStoreIO means the embedding store could not be read or written.
	ErrStoreIO = errors.New("embedding store I/O failure")

	// ErrNotFound is returned when a cluster or image does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the target of an operation already exists.
	ErrConflict = errors.New("already exists")

	// ErrInvalidName is returned for cluster names that are not safe directory names.
	ErrInvalidName = errors.New("invalid cluster name")
)
