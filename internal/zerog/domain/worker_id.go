package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// WorkerIDDelim is the literal delimiter used in a worker id string,
// grounded on the original zerog/mgmt/utils.py DELIM constant.
const WorkerIDDelim = "+$"

// WorkerType is the fixed type tag for every worker produced by this
// system (spec §6).
const WorkerType = "zerog"

// WorkerID is the parsed form of a worker identifier string.
type WorkerID struct {
	WorkerType  string
	Host        string
	ServiceName string
	PID         int
}

// String reconstructs the canonical "{workerType}+${host}+${serviceName}+${pid}" form.
func (w WorkerID) String() string {
	return MakeWorkerID(w.WorkerType, w.Host, w.ServiceName, w.PID)
}

// MakeWorkerID builds the canonical worker id string.
func MakeWorkerID(workerType, host, serviceName string, pid int) string {
	return fmt.Sprintf("%s%s%s%s%s%s%d", workerType, WorkerIDDelim, host, WorkerIDDelim, serviceName, WorkerIDDelim, pid)
}

// ParseWorkerID parses a canonical worker id string, returning ok=false
// for anything malformed (round-trip law: ParseWorkerID(MakeWorkerID(...)) == identity).
func ParseWorkerID(id string) (WorkerID, bool) {
	parts := strings.Split(id, WorkerIDDelim)
	if len(parts) != 4 {
		return WorkerID{}, false
	}
	pid, err := strconv.Atoi(parts[3])
	if err != nil {
		return WorkerID{}, false
	}
	return WorkerID{
		WorkerType:  parts[0],
		Host:        parts[1],
		ServiceName: parts[2],
		PID:         pid,
	}, true
}
