package constants

// Web API limits.
const (
	// MaxUploadSize bounds a single selfie or image upload.
	MaxUploadSize = 16 << 20

	// MaxBatchUploadSize bounds one multipart batch sent to POST /process.
	MaxBatchUploadSize = 256 << 20

	// EventChannelBuffer is how many job events an SSE subscriber may lag
	// behind before events are dropped for it.
	EventChannelBuffer = 100

	// DefaultRequestListLimit caps request listings when no limit is given.
	DefaultRequestListLimit = 500
)
