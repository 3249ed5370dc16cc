package rytmi

import "time"

type (
	// ErrorKind classifies where in the core a failure happened.
	ErrorKind int

	// Severity grades how bad a failure was. Fatal failures are recorded
	// like any other; the core never tears itself down over one.
	Severity int

	// ErrorRecord is one captured failure. Records are plain values, safe
	// to hand to any subscriber, and never carry panics across package
	// boundaries.
	ErrorRecord struct {
		Kind      ErrorKind
		Severity  Severity
		Message   string
		PresetID  string // preset involved, if any
		Recovered bool   // whether a fallback or retry let the operation succeed
		Recovery  string // how recovery happened, empty if it did not
		At        time.Time
	}
)

const (
	ErrUnknown ErrorKind = iota
	ErrSampleLoad
	ErrPlayback
	ErrScheduler
	ErrPatternGen
	ErrPresetLoad
)

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityFatal
)

var errorKindNames = [...]string{"unknown", "sample-load", "playback", "scheduler", "pattern-generation", "preset-load"}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(errorKindNames) {
		return errorKindNames[ErrUnknown]
	}
	return errorKindNames[k]
}

var severityNames = [...]string{"low", "medium", "high", "fatal"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return severityNames[SeverityLow]
	}
	return severityNames[s]
}
