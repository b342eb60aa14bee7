package types

import "time"

type TaskTraceRecord struct {
	Task        string
	AwaitableID string `json:",omitempty"`
	StartTime   time.Time
	EndTime     time.Time
	Error       string `json:",omitempty"`
	Input       Data
	Output      Data
}
