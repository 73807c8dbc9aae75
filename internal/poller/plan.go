package poller

import (
	"fmt"
	"time"

	"github.com/jpalmerr/pulsewatch/config"
	"github.com/jpalmerr/pulsewatch/internal/checker"
	"github.com/jpalmerr/pulsewatch/internal/resolve"
	"github.com/jpalmerr/pulsewatch/internal/state"
)

// Plan is one configuration snapshot turned into runnable jobs.
type Plan struct {
	Sites []SitePlan

	// Interval is the global pulse interval the scheduler sleeps against.
	Interval time.Duration

	Display state.DisplayConfig
	UI      []state.UIGroup
}

// SitePlan holds the jobs of one site in configuration order.
type SitePlan struct {
	ID          string
	Name        string
	Concurrency int
	Jobs        []checker.Job
}

// Endpoints returns the total number of jobs in the plan.
func (p *Plan) Endpoints() int {
	n := 0
	for _, s := range p.Sites {
		n += len(s.Jobs)
	}
	return n
}

// BuildPlan derives ids, expands grids, resolves settings and compiles every
// endpoint of cfg. Ids are assigned in configuration order so they are stable
// across cycles regardless of shuffling.
func BuildPlan(cfg *config.Config, registry *checker.Registry) (*Plan, error) {
	sites, err := config.BuildSites(cfg)
	if err != nil {
		return nil, fmt.Errorf("building sites: %w", err)
	}

	global := resolve.Resolve(cfg.Settings)
	nDataPoints := cfg.NDataPoints
	if nDataPoints == 0 {
		nDataPoints = resolve.DefaultNDataPoints
	}

	plan := &Plan{
		Interval: global.Interval,
		Display: state.DisplayConfig{
			Interval:            global.Interval.Minutes(),
			NDataPoints:         nDataPoints,
			ResponseTimeGood:    global.ResponseTimeGood.Milliseconds(),
			ResponseTimeWarning: global.ResponseTimeWarning.Milliseconds(),
		},
		Sites: make([]SitePlan, 0, len(sites)),
		UI:    make([]state.UIGroup, 0, len(sites)),
	}

	for _, site := range sites {
		sp := SitePlan{
			ID:          site.ID,
			Name:        site.Name,
			Concurrency: resolve.Resolve(site.Settings, cfg.Settings).Concurrency,
			Jobs:        make([]checker.Job, 0, len(site.Endpoints)),
		}
		group := state.UIGroup{SiteID: site.ID, EndpointIDs: make([]string, 0, len(site.Endpoints))}

		for _, ec := range site.Endpoints {
			sp.Jobs = append(sp.Jobs, checker.Job{
				Ref:      endpointRef(site, ec),
				Endpoint: registry.Compile(ec),
				Settings: resolve.Resolve(ec.Settings, site.Settings, cfg.Settings),
			})
			group.EndpointIDs = append(group.EndpointIDs, ec.ID)
		}

		plan.Sites = append(plan.Sites, sp)
		plan.UI = append(plan.UI, group)
	}

	return plan, nil
}

func endpointRef(site config.SiteConfig, ec config.EndpointConfig) state.Ref {
	ref := state.Ref{
		SiteID:       site.ID,
		SiteName:     site.Name,
		EndpointID:   ec.ID,
		EndpointName: ec.Name,
		Link:         ec.URL,
	}
	if ec.Link != nil {
		if ec.Link.Disabled {
			ref.Link = ""
			ref.LinkDisabled = true
		} else if ec.Link.URL != "" {
			ref.Link = ec.Link.URL
		}
	}
	return ref
}
