package rag

import (
	"errors"
	"fmt"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageConfig   Stage = "config"
	StageExtract  Stage = "extract"
	StageEmbed    Stage = "embed"
	StageSearch   Stage = "search"
	StageRerank   Stage = "rerank"
	StageGenerate Stage = "generate"
	StageIndex    Stage = "index"
)

// Stage sentinels. A *StageError matches the sentinel for its stage under errors.Is.
var (
	ErrConfig   = errors.New("configuration error")
	ErrExtract  = errors.New("extraction failed")
	ErrEmbed    = errors.New("embedding failed")
	ErrSearch   = errors.New("search failed")
	ErrRerank   = errors.New("rerank failed")
	ErrGenerate = errors.New("generation failed")
	ErrIndex    = errors.New("index build failed")
)

// Ingestion outcomes.
var (
	ErrNoChunks          = errors.New("no chunks were produced; index not written")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNeedsConversion   = errors.New("PDF files must be converted to text first")
	ErrEmptyContent      = errors.New("no extractable text")
	ErrFileTooLarge      = errors.New("file exceeds size limit")
)

// Index load failures.
var (
	ErrIndexMissing  = errors.New("index artifact is missing")
	ErrIndexCorrupt  = errors.New("index artifact is corrupt")
	ErrModelMismatch = errors.New("index was built with a different embedding model")
)

var stageSentinels = map[Stage]error{
	StageConfig:   ErrConfig,
	StageExtract:  ErrExtract,
	StageEmbed:    ErrEmbed,
	StageSearch:   ErrSearch,
	StageRerank:   ErrRerank,
	StageGenerate: ErrGenerate,
	StageIndex:    ErrIndex,
}

// StageError records which pipeline stage failed and why.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the stage sentinel; the wrapped cause is matched through Unwrap.
func (e *StageError) Is(target error) bool {
	sentinel, ok := stageSentinels[e.Stage]
	return ok && target == sentinel
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf reports the stage of the first StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
