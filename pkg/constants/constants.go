package constants

import "time"

// Application constants
const (
	// Application metadata
	AppName        = "anonimadata"
	AppDescription = "Privacy-preserving anonymization of tabular datasets"
	AppVersion     = "0.1.0"

	// Configuration
	EnvPrefix        = "ANONIMADATA"
	ConfigDirName    = ".anonimadata"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Worker defaults
	DefaultMetricsPort        = 9090
	DefaultWorkerConcurrency  = 4
	DefaultWorkerPollInterval = 5 * time.Second
	DefaultShutdownTimeout    = 30 * time.Second
	DefaultJobStatusTTL       = 24 * time.Hour

	// Number of rows returned as a preview next to the full result
	DefaultSampleSize = 10

	// More quasi-identifiers than this tend to make every class tiny
	MaxRecommendedQuasiIdentifiers = 5
)

// Anonymization methods
const (
	MethodKAnonymity          = "k_anonymity"
	MethodLDiversity          = "l_diversity"
	MethodDifferentialPrivacy = "differential_privacy"
)

// Method parameter names and defaults
const (
	ParamK       = "k"
	ParamL       = "l"
	ParamEpsilon = "epsilon"

	DefaultK       = 3
	DefaultL       = 2
	DefaultEpsilon = 1.0
	MinK           = 2
	MaxK           = 100
	MinL           = 2
	MaxEpsilon     = 10.0
)

// Markers written in place of suppressed values
const (
	SuppressedMarker = "***SUPPRESSED***"
	DiversityMarker  = "***DIVERSE***"
	MaskCharacter    = "*"

	// RangeMarkerFormat renders the population range of a numeric column
	RangeMarkerFormat = "[%.2f-%.2f]"
	// BinLabelFormat renders a numeric generalization bin
	BinLabelFormat = "%.2f-%.2f"
	// DateGeneralizationLayout truncates dates to year-month
	DateGeneralizationLayout = "2006-01"
)

// Role fallback policies for columns without an explicit assignment
const (
	UnassignedHeuristic = "heuristic"
	UnassignedPreserve  = "preserve"
	UnassignedAnonymize = "anonymize"
)

// Log levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log formats
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Output formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Job statuses
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Queue names shared by the worker and its producers
const (
	QueueAnonymizationRequests = "anonymization:requests"
	QueueAnonymizationResults  = "anonymization:results"
	QueueErrorNotifications    = "anonymization:errors"
	JobStatusKeyPrefix         = "anonymization:job"

	StageAnonymization = "anonymization"
)
