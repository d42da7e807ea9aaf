package cron

import "context"

// Job is a named maintenance task. Run reports how many rows it touched.
type Job interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

// Registry keeps jobs in registration order.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds job. A later job with the same name replaces the earlier one.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if _, exists := r.byName[job.Name()]; exists {
		for i, existing := range r.jobs {
			if existing.Name() == job.Name() {
				r.jobs[i] = job
			}
		}
	} else {
		r.jobs = append(r.jobs, job)
	}
	r.byName[job.Name()] = job
}

func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[name]
	return job, ok
}

func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
