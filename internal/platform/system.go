package platform

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo is a best-effort view of the host, used to pick a sane
// concurrency and shown by the doctor command.
type SystemInfo struct {
	OS           string  `json:"os"`
	Arch         string  `json:"arch"`
	LogicalCPUs  int     `json:"logical_cpus"`
	CPUModel     string  `json:"cpu_model,omitempty"`
	MemTotalGB   float64 `json:"mem_total_gb,omitempty"`
	MemAvailGB   float64 `json:"mem_available_gb,omitempty"`
	MemUsedPct   float64 `json:"mem_used_percent,omitempty"`
	SuggestedMax int     `json:"suggested_concurrency"`
}

func ReadSystemInfo() SystemInfo {
	info := SystemInfo{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		LogicalCPUs: runtime.NumCPU(),
	}

	if n, err := cpu.Counts(true); err == nil && n > 0 {
		info.LogicalCPUs = n
	}

	if stats, err := cpu.Info(); err == nil && len(stats) > 0 {
		info.CPUModel = stats[0].ModelName
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemTotalGB = float64(vm.Total) / 1024 / 1024 / 1024
		info.MemAvailGB = float64(vm.Available) / 1024 / 1024 / 1024
		info.MemUsedPct = vm.UsedPercent
	}

	info.SuggestedMax = SuggestConcurrency(info.LogicalCPUs, info.MemAvailGB)
	return info
}

// SuggestConcurrency allows one download per core, one per 512 MiB of free
// memory for ffmpeg merges, and never more than 16.
func SuggestConcurrency(cpus int, memAvailGB float64) int {
	n := max(cpus, 1)
	if memAvailGB > 0 {
		n = min(n, max(int(memAvailGB*2), 1))
	}
	return min(n, 16)
}
