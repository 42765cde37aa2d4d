package domain

import (
	"encoding/json"
	"fmt"
)

// LoadStatus tags a LoadState.
type LoadStatus int

const (
	StatusLoading LoadStatus = iota
	StatusLoaded
	StatusFailed
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int(s))
	}
}

func (s LoadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LoadState is the outcome of the latest catalog fetch: Loading, Loaded, or
// Failed with a reason. The zero value is Loading.
type LoadState struct {
	Status LoadStatus
	Reason string
}

func Loading() LoadState { return LoadState{Status: StatusLoading} }

func Loaded() LoadState { return LoadState{Status: StatusLoaded} }

func Failed(reason string) LoadState {
	return LoadState{Status: StatusFailed, Reason: reason}
}

func (s LoadState) IsLoaded() bool { return s.Status == StatusLoaded }

func (s LoadState) IsFailed() bool { return s.Status == StatusFailed }

func (s LoadState) String() string {
	if s.Status == StatusFailed {
		return "failed: " + s.Reason
	}
	return s.Status.String()
}

func (s LoadState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status LoadStatus `json:"status"`
		Reason string     `json:"reason,omitempty"`
	}{s.Status, s.Reason})
}
