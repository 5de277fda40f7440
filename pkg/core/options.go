package core

import (
	"runtime"
	"time"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	defaultCacheSize       = 1024
	defaultProducerRetries = 2
	defaultMaxCascadeDepth = 64
	retryInterval          = 10 * time.Millisecond
)

var (
	defaultConcurrency = 2 * runtime.NumCPU()
)

// SessionOption sets options for a session
type SessionOption func(*sessionSettings)

type sessionSettings struct {
	logger      *zap.Logger
	registerer  prometheus.Registerer
	cacheSize   int
	retries     uint64
	concurrency int
	clock       func() time.Time
	maxDepth    int
	graphID     string
}

func defaultSessionSettings() sessionSettings {
	return sessionSettings{
		logger:      zap.NewNop(),
		cacheSize:   defaultCacheSize,
		retries:     defaultProducerRetries,
		concurrency: defaultConcurrency,
		clock:       model.Timestamp,
		maxDepth:    defaultMaxCascadeDepth,
	}
}

// Logger sets the logger of the session
func Logger(l *zap.Logger) SessionOption {
	return func(s *sessionSettings) {
		if l != nil {
			s.logger = l
		}
	}
}

// Metrics registers the metrics of the session. Metrics are not registered by default.
func Metrics(reg prometheus.Registerer) SessionOption {
	return func(s *sessionSettings) {
		s.registerer = reg
	}
}

// CacheSize sets the number of committed versions kept in memory. It defaults to 1024.
func CacheSize(size int) SessionOption {
	return func(s *sessionSettings) {
		if size <= 0 {
			s.cacheSize = defaultCacheSize
			return
		}
		s.cacheSize = size
	}
}

// ProducerRetries sets how many times a failed production is retried. Zero disables retries.
func ProducerRetries(retries uint64) SessionOption {
	return func(s *sessionSettings) {
		s.retries = retries
	}
}

// Concurrency sets the max level of concurrency to materialize partitions. It defaults to 2 x #cpus.
func Concurrency(concurrency int) SessionOption {
	return func(s *sessionSettings) {
		if concurrency <= 0 {
			s.concurrency = defaultConcurrency
			return
		}
		s.concurrency = concurrency
	}
}

// Clock sets the source of creation and commit timestamps
func Clock(clock func() time.Time) SessionOption {
	return func(s *sessionSettings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// MaxCascadeDepth bounds the number of production steps chained from a single commit. It defaults to 64.
func MaxCascadeDepth(depth int) SessionOption {
	return func(s *sessionSettings) {
		if depth <= 0 {
			s.maxDepth = defaultMaxCascadeDepth
			return
		}
		s.maxDepth = depth
	}
}

// WithGraph loads a persisted artifact graph when the session starts
func WithGraph(id string) SessionOption {
	return func(s *sessionSettings) {
		s.graphID = id
	}
}

// VersionOption sets options for a new staging version
type VersionOption func(*versionSettings)

type versionSettings struct {
	parents        []string
	dependencies   []string
	representation model.Representation
	message        string
}

// matches tells if an existing version would be created by these settings, regardless of its message
func (s versionSettings) matches(v *model.Version) bool {
	if v.Representation != s.representation || len(v.Parents) != len(s.parents) || len(v.Dependencies) != len(s.dependencies) {
		return false
	}
	for i, p := range s.parents {
		if v.Parents[i] != p {
			return false
		}
	}
	for _, d := range s.dependencies {
		if !v.DependsOnVersion(d) {
			return false
		}
	}
	return true
}

// WithParents sets the parent versions of a new version
func WithParents(ids ...string) VersionOption {
	return func(s *versionSettings) {
		s.parents = append(s.parents, ids...)
	}
}

// WithDependencies pins versions of dependency artifacts
func WithDependencies(ids ...string) VersionOption {
	return func(s *versionSettings) {
		s.dependencies = append(s.dependencies, ids...)
	}
}

// WithRepresentation sets the representation of a new version. It defaults to state.
func WithRepresentation(r model.Representation) VersionOption {
	return func(s *versionSettings) {
		s.representation = r
	}
}

// WithMessage sets a message on a new version
func WithMessage(msg string) VersionOption {
	return func(s *versionSettings) {
		s.message = msg
	}
}

// ConflictMode tells how a merge deals with conflicting partitions
type ConflictMode uint8

const (
	// ForbidConflicts leaves conflicting partitions pending: the merge cannot be committed until they are resolved
	ForbidConflicts ConflictMode = iota

	// ResolveConflicts resolves conflicts with the resolver of the artifact kind, or else with the latest committed version
	ResolveConflicts
)

func (m ConflictMode) String() string {
	switch m {
	case ForbidConflicts:
		return "forbid"
	case ResolveConflicts:
		return "resolve"
	default:
		return "unknown"
	}
}

// MergeOption sets options for a merge
type MergeOption func(*mergeSettings)

type mergeSettings struct {
	mode    ConflictMode
	message string
}

// WithConflictMode sets the conflict mode of a merge. It defaults to ForbidConflicts.
func WithConflictMode(mode ConflictMode) MergeOption {
	return func(s *mergeSettings) {
		s.mode = mode
	}
}

// WithMergeMessage sets the message of the merge version
func WithMergeMessage(msg string) MergeOption {
	return func(s *mergeSettings) {
		s.message = msg
	}
}
