package config

var Version string

// Used so that we can generate fixed timestamps in tests
var Clock TimestampGenerator = RealTimestampGenerator{}

// MaxJobsInFlight is the admission cap from spec §4.7/§5: once this many
// non-terminal, non-Declined jobs occupy the active queue, further job
// commands are declined rather than enqueued. Overridable via
// --max-jobs-in-flight, mirroring the teacher's config.MaxInFlightJobs flag
// var.
var MaxJobsInFlight = 5

// JobCommandChannelCapacity, StageTaskChannelCapacity and
// CommEventChannelCapacity are the bounded channel sizes from spec §5.
const (
	JobCommandChannelCapacity = 5
	StageTaskChannelCapacity  = 5
	CommEventChannelCapacity  = 50
)

// ReconciliationTickMillis is the coordinator main loop's polling
// granularity (spec §4.7). Overridable via --poll-millis.
var ReconciliationTickMillis = 200

// DefaultDataDir is where the jobs database, per-job working directories
// and canned concat intros live (spec §6): DB/DATA.db, DB/<job>/..., and
// DB/concat/<file>.
const DefaultDataDir = "DB"

// ConcatDirName and DBFileName are subpaths of DefaultDataDir.
const (
	ConcatDirName = "concat"
	DBFileName    = "DATA.db"
)
