package engine

// Stage is the step an init segment job has reached.
type Stage int

const (
	StageQueued Stage = iota
	StageLoaded
	StageTransformed
	StageWritten
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageLoaded:
		return "loaded"
	case StageTransformed:
		return "transformed"
	case StageWritten:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressUpdate reports a stage change of one job.
type ProgressUpdate struct {
	TrackID      string
	Stage        Stage
	BytesLoaded  int64
	BytesWritten int64
	Completed    bool
	Error        error
}

// Rewriter applies the init segment workarounds.
type Rewriter interface {
	FakeEncryption(initSegment []byte, uri string) ([]byte, error)
	FakeEC3(initSegment []byte) ([]byte, error)
}
