package domain

import "time"

// MsgType enumerates the management-plane envelope types (spec §3, §4.7).
type MsgType string

const (
	MsgJob         MsgType = "job"
	MsgInfo        MsgType = "info"
	MsgRequestInfo MsgType = "requestInfo"
	MsgKillJob     MsgType = "killJob"
	MsgDrain       MsgType = "drain"
	MsgUndrain     MsgType = "undrain"
	MsgRetire      MsgType = "retire"

	// Wire-compatible aliases from the original source (spec §3 note,
	// §9 "two conflicting definitions"). Decoding accepts these in place
	// of MsgDrain/MsgUndrain; encoding always emits the primary names.
	msgStopPolling  MsgType = "stopPolling"
	msgStartPolling MsgType = "startPolling"
)

// JobAction is the action carried by a "job" message.
type JobAction string

const (
	JobActionStart JobAction = "start"
	JobActionEnd   JobAction = "end"
)

// Mem is the memory snapshot carried by an "info" message.
type Mem struct {
	Available uint64 `json:"available"`
	Used      uint64 `json:"used"`
}

// Message is the single wire envelope for every management-plane message.
// Only the fields relevant to Msgtype are populated; absent booleans
// default to false and absent uuid/mem default to their zero values, per
// spec §4.7's codec rule.
type Message struct {
	Msgtype   MsgType   `json:"msgtype"`
	Timestamp time.Time `json:"timestamp"`

	// job
	WorkerID string    `json:"workerId,omitempty"`
	UUID     string    `json:"uuid,omitempty"`
	Action   JobAction `json:"action,omitempty"`

	// info
	State    string `json:"state,omitempty"`
	Retiring bool   `json:"retiring,omitempty"`
	Mem      Mem    `json:"mem,omitempty"`
}

// NormalizeMsgtype maps tolerant wire aliases onto their primary name.
// Unknown types are returned unchanged so the caller can drop them.
func NormalizeMsgtype(t MsgType) MsgType {
	switch t {
	case msgStopPolling:
		return MsgDrain
	case msgStartPolling:
		return MsgUndrain
	default:
		return t
	}
}

// KnownMsgtype reports whether t (after alias normalization) is one of
// the message types this system understands.
func KnownMsgtype(t MsgType) bool {
	switch NormalizeMsgtype(t) {
	case MsgJob, MsgInfo, MsgRequestInfo, MsgKillJob, MsgDrain, MsgUndrain, MsgRetire:
		return true
	default:
		return false
	}
}
