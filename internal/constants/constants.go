// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort       = "8080"
	DefaultS3Region   = "us-east-1"
	DefaultScratchDir = "./temp_downloads"
	DefaultCDNBase    = "https://cdn.freesound.org/mtg-jamendo/raw_30s/audio/"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	ServiceName       = "text2tracks-backend"
)

// Transfer tuning
const (
	DownloadRetryCount = 3
	DownloadRetryBase  = 2 * time.Second
	IngestHTTPTimeout  = 15 * time.Second
	WorkerHTTPTimeout  = 10 * time.Second
)

// Vectorization worker cadence
const (
	WorkerPollInterval    = 10 * time.Second
	WorkerFailureCooldown = 5 * time.Second
	PresignTTL            = 5 * time.Minute
)

// Embedding contract for the CLAP audio tower export.
const (
	EmbeddingDim      = 512
	ClapSampleRate    = 48000
	ClapWindowSeconds = 10
	ClapWindowSamples = ClapSampleRate * ClapWindowSeconds
)

// Object storage
const (
	TracksKeyPrefix = "tracks/"
)

// Catalog placeholders
const (
	TitlePlaceholderPrefix = "Track "
	UnknownArtist          = "Unknown"
)

// MIME Types
const (
	MimeTypeFLAC  = "audio/flac"
	MimeTypeMP3   = "audio/mpeg"
	MimeTypeWAV   = "audio/wav"
	MimeTypeOctet = "application/octet-stream"
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
	ExtWAV  = ".wav"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Characters to sanitize from filesystem paths
const InvalidPathChars = "<>:\"/\\|?*"
