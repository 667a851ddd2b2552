package server

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
)

// readMem reports the info-message memory snapshot (spec §4.6): host
// available memory plus the resident-set usage of this process and its
// worker child. MemAvailable parsing is adapted from the teacher's
// /proc/meminfo collector; per-process RSS uses gopsutil since
// /proc/meminfo alone cannot answer "this process plus its children".
func (s *Server) readMem() (domain.Mem, error) {
	available, err := readMemAvailable()
	if err != nil {
		return domain.Mem{}, err
	}

	used, err := s.residentSetBytes()
	if err != nil {
		return domain.Mem{Available: available}, err
	}

	return domain.Mem{Available: available, Used: used}, nil
}

func (s *Server) residentSetBytes() (uint64, error) {
	var total uint64

	selfRSS, err := rssForPID(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	total += selfRSS

	if s.cmd != nil && s.cmd.Process != nil && !s.exitedAt.Load() {
		if childRSS, err := rssForPID(int32(s.cmd.Process.Pid)); err == nil {
			total += childRSS
		}
	}

	return total, nil
}

func rssForPID(pid int32) (uint64, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("process %d lookup: %w", pid, err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("process %d memory info: %w", pid, err)
	}
	return info.RSS, nil
}

// readMemAvailable reads the MemAvailable field of /proc/meminfo,
// adapted from the teacher's memory collector (reduced to the single
// field this message needs).
func readMemAvailable() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed MemAvailable line: %q", line)
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("MemAvailable not found in /proc/meminfo")
}
