// Package analysis turns normalized tickets into per-contributor metrics,
// function rollups and ranked alerts. Every invocation recomputes from
// scratch; identical inputs always produce identical outputs.
package analysis

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/teampulse/teampulse/internal/config"
	"github.com/teampulse/teampulse/internal/normalize"
	"github.com/teampulse/teampulse/internal/roles"
	"github.com/teampulse/teampulse/internal/sprint"
	"github.com/teampulse/teampulse/internal/types"
)

// Config holds the engine's invocation-independent settings.
type Config struct {
	Thresholds config.Thresholds
	// Projects whose sprint labels are always derived from dates, ignoring
	// any label already present on the record.
	DateDrivenProjects []string
	// Strict requires an exact role-table match; records that miss are
	// dropped and counted instead of defaulted.
	Strict bool
	// Workers bounds the parallel aggregation fan-out. Defaults to the
	// number of CPUs.
	Workers int
}

// Input is one immutable snapshot of raw records plus configuration tables.
type Input struct {
	Records  []types.RawRecord           `json:"records"`
	Roles    []types.RoleCapacityEntry   `json:"roles,omitempty"`
	Calendar []types.SprintCalendarEntry `json:"calendar,omitempty"`
}

// Result is the complete engine output for one snapshot.
type Result struct {
	Contributors   []types.ContributorMetrics `json:"contributors"`
	Functions      []types.FunctionMetrics    `json:"functions"`
	Alerts         []types.Alert              `json:"alerts"`
	Warnings       []string                   `json:"warnings,omitempty"`
	DroppedRecords int                        `json:"dropped_records"`
	TicketCount    int                        `json:"ticket_count"`
}

// Engine is the top-level computation. Safe for concurrent use; Run holds
// no state between invocations.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	cfg.Thresholds = cfg.Thresholds.Normalized()
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Engine{cfg: cfg}
}

// Run executes the full pipeline: resolve sprints and roles, normalize
// records, aggregate per contributor, score the population, roll up
// functions and generate alerts. Per-contributor aggregation fans out on a
// bounded errgroup; each contributor's tickets are disjoint so the workers
// share nothing but the read-only feature index.
func (e *Engine) Run(ctx context.Context, in Input) (Result, error) {
	sprints := sprint.NewResolver(in.Calendar, e.cfg.DateDrivenProjects)
	roleResolver := roles.NewResolver(in.Roles, e.cfg.Strict)

	norm := normalize.New(sprints, roleResolver).NormalizeAll(in.Records)

	grouped := groupByAssignee(norm.Tickets)
	features := featureTitles(norm.Tickets)

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	contributors := make([]types.ContributorMetrics, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			contributors[i] = aggregateContributor(name, grouped[name], features)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// Scoring needs the complete population and stays sequential.
	scoreAll(contributors, grouped, roleResolver.Lookup, e.cfg.Thresholds)

	functions := aggregateFunctions(contributors)
	alerts := generateAlerts(contributors, functions, e.cfg.Thresholds)

	return Result{
		Contributors:   contributors,
		Functions:      functions,
		Alerts:         alerts,
		Warnings:       norm.Warnings,
		DroppedRecords: norm.Dropped,
		TicketCount:    len(norm.Tickets),
	}, nil
}
