// Package constants holds tuning values shared by the clustering engine, the
// CLI and the web API.
package constants

// Clustering constants
const (
	// DefaultTolerance is the maximum Euclidean distance at which a face joins
	// an existing cluster. Lower values = stricter matching
	DefaultTolerance = 0.6

	// DefaultSimilarityThreshold is the minimum pairwise match ratio for two
	// clusters to be suggested for merging
	DefaultSimilarityThreshold = 0.7

	// ClusterIDPrefix is the prefix of generated cluster identifiers
	ClusterIDPrefix = "cluster_"
)

// Processing constants
const (
	// AnalyzerWorkers is the number of goroutines comparing cluster pairs
	AnalyzerWorkers = 8

	// MaxImageSize is the maximum dimension (width or height) sent to the embedding service
	MaxImageSize = 1920
)

// Notification constants
const (
	// ShareLinkDays is how long a presigned cluster link stays valid
	ShareLinkDays = 7
)
