package diagnostics

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v3"
)

// RepoInfo is the doctor's snapshot of the repository itself, filled from
// the git client; zero values mean the probe failed and is omitted.
type RepoInfo struct {
	DefaultBranch string `yaml:"default_branch,omitempty"`
	CurrentBranch string `yaml:"current_branch,omitempty"`
	RemoteURL     string `yaml:"remote_url,omitempty"`
	Clean         bool   `yaml:"clean"`
}

// Report is the doctor command's health snapshot.
type Report struct {
	GoVersion string  `yaml:"go_version"`
	OS        string  `yaml:"os"`
	Arch      string  `yaml:"arch"`
	CPUCores  int     `yaml:"cpu_cores"`
	MemTotalGB float64 `yaml:"mem_total_gb"`

	Repo RepoInfo `yaml:"repo"`

	WorktreeBase   string  `yaml:"worktree_base"`
	DiskFreeGB     float64 `yaml:"disk_free_gb"`
	DiskUsedPct    float64 `yaml:"disk_used_pct"`
	DiskWarning    bool    `yaml:"disk_warning"`

	MultiplexerKind      string `yaml:"multiplexer"`
	MultiplexerAvailable bool   `yaml:"multiplexer_available"`

	ForgeProvider string `yaml:"forge_provider,omitempty"`
	PMProvider    string `yaml:"pm_provider,omitempty"`

	OrphanedSessions []string `yaml:"orphaned_sessions,omitempty"`

	LoadAvg1 float64 `yaml:"load_avg_1"`
}

// diskWarnFreeGB is the free-space floor below which the report flags the
// worktree base: a dozen worktrees with node_modules each eat space fast.
const diskWarnFreeGB = 5.0

// Availability is the subset of the multiplexer the doctor probes.
type Availability interface {
	Available(ctx context.Context) bool
}

// BuildReport assembles the health snapshot. Every probe is best-effort:
// a failed one leaves its fields zeroed rather than failing the report.
func BuildReport(ctx context.Context, repo RepoInfo, worktreeBase, muxKind string, mux Availability, orphans []string, forgeProvider, pmProvider string) Report {
	r := Report{
		GoVersion:        runtime.Version(),
		OS:               runtime.GOOS,
		Arch:             runtime.GOARCH,
		Repo:             repo,
		WorktreeBase:     worktreeBase,
		MultiplexerKind:  muxKind,
		ForgeProvider:    forgeProvider,
		PMProvider:       pmProvider,
		OrphanedSessions: orphans,
	}

	if cpuInfo, err := ghw.CPU(); err == nil && cpuInfo != nil {
		r.CPUCores = int(cpuInfo.TotalCores)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		r.MemTotalGB = float64(vm.Total) / (1 << 30)
	}
	if usage, err := disk.Usage(worktreeBase); err == nil {
		r.DiskFreeGB = float64(usage.Free) / (1 << 30)
		r.DiskUsedPct = usage.UsedPercent
		r.DiskWarning = r.DiskFreeGB < diskWarnFreeGB
	}
	if mux != nil {
		r.MultiplexerAvailable = mux.Available(ctx)
	}
	r.LoadAvg1, _, _ = LoadAverages()

	return r
}

// Render formats the report as YAML for the terminal, with a trailing
// orphan warning when any were found.
func (r Report) Render() string {
	var sb strings.Builder
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Sprintf("failed to render report: %v", err)
	}
	sb.Write(data)
	if len(r.OrphanedSessions) > 0 {
		fmt.Fprintf(&sb, "\n# %d orphaned session(s) found; kill them manually if no other flock instance owns them\n",
			len(r.OrphanedSessions))
	}
	if r.DiskWarning {
		fmt.Fprintf(&sb, "\n# low disk space under %s\n", r.WorktreeBase)
	}
	return sb.String()
}
