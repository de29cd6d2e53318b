package app

import "fmt"

// Pipeline stages a RetrievalError can come from.
const (
	StageLookup  = "lookup"
	StageFetch   = "fetch"
	StageExtract = "extract"
)

// RetrievalError is a failure confined to one source. It never aborts the
// sibling sources of a run.
type RetrievalError struct {
	Source string
	Stage  string
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Source, e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
