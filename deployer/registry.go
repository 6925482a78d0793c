package main

import (
	"sort"
	"sync"
	"time"

	"code.linksmart.eu/dt/page-deployer/deployer/model"
	"github.com/cskr/pubsub"
	uuid "github.com/satori/go.uuid"
)

const (
	// deployment statuses
	StatusReceived   = "received"
	StatusGenerating = "generating"
	StatusPublishing = "publishing"
	StatusNotifying  = "notifying"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// deployment is the record of one pipeline run, kept in memory for the API.
// The durable state of a task lives only in its remote repository.
type deployment struct {
	ID       string                  `json:"id"`
	Task     string                  `json:"task"`
	Round    int                     `json:"round"`
	Status   string                  `json:"status"`
	Error    string                  `json:"error,omitempty"`
	Result   *model.DeploymentResult `json:"result,omitempty"`
	DiffStat string                  `json:"diffStat,omitempty"`
	Created  int64                   `json:"created"`
	Updated  int64                   `json:"updated"`
}

type registry struct {
	mutex       sync.RWMutex
	deployments map[string]*deployment
	events      *pubsub.PubSub
}

func newRegistry(events *pubsub.PubSub) *registry {
	return &registry{
		deployments: make(map[string]*deployment),
		events:      events,
	}
}

func (r *registry) add(task string, round int) *deployment {
	now := time.Now().UnixMilli()
	d := &deployment{
		ID:      uuid.NewV4().String(),
		Task:    task,
		Round:   round,
		Status:  StatusReceived,
		Created: now,
		Updated: now,
	}
	r.mutex.Lock()
	r.deployments[d.ID] = d
	snapshot := *d
	r.mutex.Unlock()

	r.events.TryPub(event{EventDeploymentQueued, snapshot}, EventDeploymentQueued)
	return d
}

// update applies fn to the record under lock and publishes the new state.
func (r *registry) update(id string, fn func(*deployment)) {
	r.mutex.Lock()
	d, found := r.deployments[id]
	if !found {
		r.mutex.Unlock()
		return
	}
	fn(d)
	d.Updated = time.Now().UnixMilli()
	snapshot := *d
	r.mutex.Unlock()

	r.events.TryPub(event{EventDeploymentUpdated, snapshot}, EventDeploymentUpdated)
}

func (r *registry) setStatus(id, status string) {
	r.update(id, func(d *deployment) { d.Status = status })
}

func (r *registry) setError(id, message string) {
	r.update(id, func(d *deployment) {
		d.Status = StatusFailed
		d.Error = message
	})
}

func (r *registry) setResult(id string, result *model.DeploymentResult) {
	r.update(id, func(d *deployment) { d.Result = result })
}

func (r *registry) setDiffStat(id, stat string) {
	r.update(id, func(d *deployment) { d.DiffStat = stat })
}

func (r *registry) get(id string) *deployment {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	d, found := r.deployments[id]
	if !found {
		return nil
	}
	snapshot := *d
	return &snapshot
}

// list returns the runs for a task (or all, when task is empty), newest first.
func (r *registry) list(task string, page, perPage int) ([]deployment, int64) {
	r.mutex.RLock()
	all := make([]deployment, 0, len(r.deployments))
	for _, d := range r.deployments {
		if task != "" && d.Task != task {
			continue
		}
		all = append(all, *d)
	}
	r.mutex.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Created > all[j].Created })

	total := int64(len(all))
	start := (page - 1) * perPage
	if start >= len(all) {
		return []deployment{}, total
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total
}
