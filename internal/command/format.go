package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcsmops/panelbot/internal/mcsm"
	"github.com/mcsmops/panelbot/internal/registry"
)

const divider = "----------------------"

func statusGlyph(code int) string {
	switch code {
	case mcsm.StatusRunning:
		return "🟢 running"
	case mcsm.StatusStopped:
		return "🔴 stopped"
	case mcsm.StatusStopping:
		return "🟠 stopping"
	case mcsm.StatusStarting:
		return "🟡 starting"
	default:
		return "⚪ unknown"
	}
}

// formatUptime renders seconds as days/hours/minutes, keeping at most the two
// largest units. Below a minute it falls back to seconds.
func formatUptime(seconds float64) string {
	if seconds <= 0 {
		return "unknown"
	}
	total := int64(seconds)
	minutes := total / 60
	hours := minutes / 60
	days := hours / 24

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if h := hours % 24; h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m := minutes % 60; m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%ds", total)
	}
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, " ")
}

func formatMemoryGB(bytes float64) string {
	if bytes <= 0 {
		return "0.00 GB"
	}
	return fmt.Sprintf("%.2f GB", bytes/(1024*1024*1024))
}

// statusReport renders the panel overview.
func statusReport(ov *mcsm.Overview) string {
	var b strings.Builder

	version := ov.Version
	if version == "" {
		version = "unknown"
	}
	dataTime := "unknown"
	if ov.TimestampMS > 0 {
		dataTime = time.UnixMilli(ov.TimestampMS).Format("2006-01-02 15:04:05")
	}

	fmt.Fprintf(&b, "📊 MCSM v%s status overview:\n", version)
	fmt.Fprintf(&b, "- Data time: %s\n%s", dataTime, divider)

	totalInstances, runningInstances := 0, 0
	for i, node := range ov.Remote {
		totalInstances += node.Instance.Total.Int()
		runningInstances += node.Instance.Running.Int()

		name := node.Remarks
		if name == "" {
			name = node.Hostname
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed Node (%d)", i+1)
		}
		state := "🔴 offline"
		if node.Available {
			state = "🟢 online"
		}
		osVersion := node.System.Version
		if osVersion == "" {
			osVersion = node.System.Release
		}
		if osVersion == "" {
			osVersion = "unknown"
		}
		nodeVersion := node.Version
		if nodeVersion == "" {
			nodeVersion = "unknown"
		}

		memTotal := node.System.TotalMem.Float64()
		memUsed := memTotal * node.System.MemUsage.Float64()

		fmt.Fprintf(&b, "\n🖥️ Node: %s\n", name)
		fmt.Fprintf(&b, "- State: %s\n", state)
		fmt.Fprintf(&b, "- Node version: %s\n", nodeVersion)
		fmt.Fprintf(&b, "- OS: %s\n", osVersion)
		fmt.Fprintf(&b, "- CPU: %.2f%%\n", node.System.CPUUsage.Float64()*100)
		fmt.Fprintf(&b, "- Memory: %s / %s\n", formatMemoryGB(memUsed), formatMemoryGB(memTotal))
		fmt.Fprintf(&b, "- Instances: %d running / %d total\n%s",
			node.Instance.Running.Int(), node.Instance.Total.Int(), divider)
	}

	fmt.Fprintf(&b, "\n- Uptime: %s\n", formatUptime(ov.System.Uptime.Float64()))
	fmt.Fprintf(&b, "Nodes online: %d / %d\n", ov.RemoteCount.Available.Int(), ov.RemoteCount.Total.Int())
	fmt.Fprintf(&b, "Instances running: %d / %d\n", runningInstances, totalInstances)
	b.WriteString("Tip: run list for per-instance detail")
	return b.String()
}

// listReport renders the directory as a node/instance tree.
func listReport(nodes []registry.NodeStatus, records []registry.Record) string {
	var b strings.Builder
	b.WriteString("🖥️ Instance list:")

	byNode := make(map[string][]registry.Record)
	for _, rec := range records {
		byNode[rec.NodeID] = append(byNode[rec.NodeID], rec)
	}

	for _, node := range nodes {
		fmt.Fprintf(&b, "\n\nNode: %s", node.Name)
		if node.FetchErr != "" {
			fmt.Fprintf(&b, "\n❌ instance query failed: %s", node.FetchErr)
			continue
		}
		recs := byNode[node.ID]
		if len(recs) == 0 {
			b.WriteString("\n📭 no instances")
			continue
		}
		for _, rec := range recs {
			fmt.Fprintf(&b, "\n[%d] %s %s\n    uuid: %s", rec.Index, statusGlyph(rec.StatusCode), rec.Name, rec.UUID)
		}
	}
	return b.String()
}

// tailTruncate keeps the last limit characters, marking the cut with an
// ellipsis prefix.
func tailTruncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}

// lastLines keeps the trailing n lines of text.
func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
