package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcsmops/panelbot/internal/mcsm"
)

const (
	instancePageSize = 100
	// Safety cap on the paging loop for daemons that never return a short page.
	maxInstancePages = 50
)

// ErrNoNodes is returned by Refresh when the overview call fails or reports
// no daemon nodes.
var ErrNoNodes = errors.New("no daemon nodes available")

// PanelClient is the slice of the panel API the directory needs.
type PanelClient interface {
	Overview(ctx context.Context) (*mcsm.Overview, error)
	Instances(ctx context.Context, daemonID string, page, pageSize int) ([]mcsm.Instance, error)
}

// Record is one instance in the directory snapshot. Index values are a
// contiguous 1-based sequence in node-then-alphabetical order and are not
// stable across refreshes.
type Record struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	UUID       string `json:"uuid"`
	NodeID     string `json:"node_id"`
	NodeName   string `json:"node_name"`
	StatusCode int    `json:"status"`
}

// NodeStatus is the per-node outcome of the latest refresh, kept for listing.
type NodeStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
	FetchErr  string `json:"fetch_error,omitempty"`
}

type snapshot struct {
	records     []Record
	nodes       []NodeStatus
	nameToRec   map[string]Record
	uuidToRec   map[string]Record
	ambiguous   map[string]struct{}
	refreshedAt time.Time
}

// Directory caches the (node, instance) universe of the panel. It is rebuilt
// wholesale by Refresh and replaced atomically under the write lock.
type Directory struct {
	client        PanelClient
	excludedNodes map[string]struct{}
	keywords      []string // lowercased allow-list, empty means no filtering

	mu   sync.RWMutex
	snap snapshot
}

func New(client PanelClient, filteredNodes, filterKeywords []string) *Directory {
	excluded := make(map[string]struct{}, len(filteredNodes))
	for _, id := range filteredNodes {
		excluded[id] = struct{}{}
	}
	keywords := make([]string, 0, len(filterKeywords))
	for _, kw := range filterKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, strings.ToLower(kw))
		}
	}
	return &Directory{
		client:        client,
		excludedNodes: excluded,
		keywords:      keywords,
	}
}

// matchesFilter applies the keyword allow-list: with no keywords configured
// every name passes, otherwise the name must contain at least one keyword
// (case-insensitive).
func (d *Directory) matchesFilter(name string) bool {
	if len(d.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Refresh rebuilds the directory from the panel. A node whose instance query
// fails contributes zero instances for this refresh; only a failed or empty
// overview aborts the rebuild. No retry happens here.
func (d *Directory) Refresh(ctx context.Context) error {
	ov, err := d.client.Overview(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoNodes, err)
	}
	if len(ov.Remote) == 0 {
		return ErrNoNodes
	}

	type nodeGroup struct {
		status  NodeStatus
		records []Record
	}
	groups := make([]nodeGroup, 0, len(ov.Remote))
	nameCount := make(map[string]int)

	for _, node := range ov.Remote {
		if _, skip := d.excludedNodes[node.UUID]; skip {
			continue
		}
		g := nodeGroup{status: NodeStatus{
			ID:        node.UUID,
			Name:      node.DisplayName(),
			Available: node.Available,
		}}

		instances, err := d.fetchAll(ctx, node.UUID)
		if err != nil {
			log.Warn().Str("node", g.status.Name).Str("daemon_id", node.UUID).
				Err(err).Msg("node instance query failed, excluded from this refresh")
			g.status.FetchErr = err.Error()
			groups = append(groups, g)
			continue
		}

		for _, inst := range instances {
			name := inst.Nickname()
			if inst.InstanceUUID == "" || !d.matchesFilter(name) {
				continue
			}
			g.records = append(g.records, Record{
				Name:       name,
				UUID:       inst.InstanceUUID,
				NodeID:     node.UUID,
				NodeName:   g.status.Name,
				StatusCode: inst.StatusCode(),
			})
			nameCount[name]++
		}
		groups = append(groups, g)
	}

	ambiguous := make(map[string]struct{})
	for name, n := range nameCount {
		if n > 1 {
			ambiguous[name] = struct{}{}
		}
	}

	next := snapshot{
		nodes:       make([]NodeStatus, 0, len(groups)),
		nameToRec:   make(map[string]Record),
		uuidToRec:   make(map[string]Record),
		ambiguous:   ambiguous,
		refreshedAt: time.Now(),
	}
	index := 0
	for _, g := range groups {
		next.nodes = append(next.nodes, g.status)
		sort.Slice(g.records, func(i, j int) bool {
			if g.records[i].Name != g.records[j].Name {
				return g.records[i].Name < g.records[j].Name
			}
			return g.records[i].UUID < g.records[j].UUID
		})
		for _, rec := range g.records {
			index++
			rec.Index = index
			next.records = append(next.records, rec)
			next.uuidToRec[rec.UUID] = rec
			if _, dup := ambiguous[rec.Name]; !dup {
				next.nameToRec[rec.Name] = rec
			}
		}
	}

	d.mu.Lock()
	d.snap = next
	d.mu.Unlock()

	log.Info().Int("nodes", len(next.nodes)).Int("instances", len(next.records)).
		Int("ambiguous_names", len(ambiguous)).Msg("instance directory refreshed")
	return nil
}

func (d *Directory) fetchAll(ctx context.Context, daemonID string) ([]mcsm.Instance, error) {
	var all []mcsm.Instance
	for page := 1; page <= maxInstancePages; page++ {
		batch, err := d.client.Instances(ctx, daemonID, page, instancePageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < instancePageSize {
			break
		}
	}
	return all, nil
}

// Records returns a copy of the current ordered snapshot.
func (d *Directory) Records() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Record, len(d.snap.records))
	copy(out, d.snap.records)
	return out
}

// Nodes returns the per-node outcomes of the latest refresh.
func (d *Directory) Nodes() []NodeStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]NodeStatus, len(d.snap.nodes))
	copy(out, d.snap.nodes)
	return out
}

// RefreshedAt returns the time of the last successful refresh, zero if none.
func (d *Directory) RefreshedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap.refreshedAt
}

// Empty reports whether the directory has never been populated.
func (d *Directory) Empty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.snap.records) == 0
}
