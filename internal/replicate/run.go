package replicate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

// Config holds the collection ids and property names a Runner works against.
type Config struct {
	// TasksDB is the destination collection replicas are created in.
	TasksDB string
	// TemplatesDB is the collection template pages are read from.
	TemplatesDB string

	// TemplateFilterProperty selects templates by tag and is never copied
	// to the destination.
	TemplateFilterProperty string
	// EpicRelationProperty is the destination relation linking a replica
	// to its owning epic.
	EpicRelationProperty string
	// DateProperty is the scheduled-date property on both sides.
	DateProperty string
	// BlockingProperty / BlockedByProperty are the destination dependency
	// relations rewritten by the resolver.
	BlockingProperty  string
	BlockedByProperty string
}

func (c Config) withDefaults() Config {
	if c.TemplateFilterProperty == "" {
		c.TemplateFilterProperty = "Template Tag"
	}
	if c.EpicRelationProperty == "" {
		c.EpicRelationProperty = "Epic"
	}
	if c.DateProperty == "" {
		c.DateProperty = "Date"
	}
	if c.BlockingProperty == "" {
		c.BlockingProperty = "Blocking"
	}
	if c.BlockedByProperty == "" {
		c.BlockedByProperty = "Blocked By"
	}
	return c
}

// epicDateCandidates are the epic properties checked for an anchor date.
var epicDateCandidates = []string{"Target Date", "Due Date", "Date"}

// Runner executes replication runs. Stateless between runs: everything is
// rebuilt per invocation from the record store. Retriggering a run recreates
// all instances; there is no idempotency key.
type Runner struct {
	client notion.Client
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewRunner wires a runner. A nil logger disables logging.
func NewRunner(client notion.Client, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{client: client, cfg: cfg.withDefaults(), logger: logger, now: time.Now}
}

// phase is the runner's position in the per-run state machine.
type phase int

const (
	phaseCollecting phase = iota
	phaseResolvingDate
	phaseReplicating
	phaseResolvingDependencies
	phaseDone
)

func (p phase) String() string {
	names := [...]string{
		"collecting",
		"resolving-date",
		"replicating",
		"resolving-dependencies",
		"done",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// collectedBatch is one batch's state across the run.
type collectedBatch struct {
	spec      BatchSpec
	epic      Epic
	templates []Template
	result    BatchResult
	failed    bool
}

// Run executes one replication run to completion. Batches are processed
// strictly in the order given, one at a time; every record store call is a
// suspension point and nothing runs in parallel. A single batch's failure
// never aborts its siblings, and the run as a whole never fails: the caller
// always receives a per-batch summary.
func (r *Runner) Run(ctx context.Context, req Request) Summary {
	r.logger.Info("replication run starting", zap.Int("batches", len(req.Batches)))

	// Collection pass: load every batch's epic and templates up front so
	// the reference date can be resolved over the full run.
	r.logPhase(phaseCollecting)
	batches := make([]*collectedBatch, 0, len(req.Batches))
	var all []Template
	for _, spec := range req.Batches {
		b := &collectedBatch{spec: spec, result: BatchResult{EpicID: spec.EpicID}}
		if err := r.collect(ctx, b); err != nil {
			b.failed = true
			b.result.Error = err.Error()
			r.logger.Error("batch excluded from run",
				zap.String("epic", spec.EpicID), zap.Error(err))
		} else {
			b.result.EpicName = b.epic.Name
			all = append(all, b.templates...)
		}
		batches = append(batches, b)
	}

	// One reference date per run. It is computed here, once, and never
	// recomputed per batch.
	r.logPhase(phaseResolvingDate)
	ref := ResolveReferenceDate(r.explicitDate(batches), r.anchorFromEpics(batches), all)
	if ref == nil {
		now := r.now()
		ref = &now
		r.logger.Info("no reference date derivable, anchoring to current time")
	}
	r.logger.Info("reference date resolved", zap.Time("referenceDate", *ref))

	r.logPhase(phaseReplicating)
	names := NewNameMap()
	schema, schemaErr := r.destinationSchema(ctx)
	for _, b := range batches {
		if b.failed {
			continue
		}
		if schemaErr != nil {
			b.failed = true
			b.result.Error = schemaErr.Error()
			continue
		}
		offset := BatchOffset(ref, b.templates)
		r.logger.Info("replicating batch",
			zap.String("epic", b.epic.Name),
			zap.Int("templates", len(b.templates)),
			zap.Duration("offset", offset))
		for _, tmpl := range b.templates {
			if _, err := r.replicateTemplate(ctx, tmpl, b.epic, offset, schema, names); err != nil {
				r.logger.Error("template replication failed",
					zap.String("template", tmpl.ID), zap.Error(err))
				b.result.Failed = append(b.result.Failed, RecordFailure{
					TemplateID: tmpl.ID,
					Error:      err.Error(),
				})
				continue
			}
			b.result.CopiedCount++
		}
	}

	// Global pass over the union of every replicated batch, so
	// dependencies spanning template groups resolve too.
	r.logPhase(phaseResolvingDependencies)
	var replicated []Template
	for _, b := range batches {
		if !b.failed {
			replicated = append(replicated, b.templates...)
		}
	}
	resolved := r.ResolveDependencies(ctx, replicated, names)

	r.logPhase(phaseDone)
	summary := Summary{DependenciesResolved: resolved}
	for _, b := range batches {
		summary.PerBatch = append(summary.PerBatch, b.result)
		summary.TotalCopied += b.result.CopiedCount
	}
	r.logger.Info("replication run finished",
		zap.Int("totalCopied", summary.TotalCopied),
		zap.Int("dependenciesResolved", summary.DependenciesResolved))
	return summary
}

func (r *Runner) logPhase(p phase) {
	r.logger.Info("run phase", zap.Stringer("phase", p))
}

// collect loads one batch's epic and template pages. Configuration errors
// (missing ids) and remote failures here are fatal to the batch only.
func (r *Runner) collect(ctx context.Context, b *collectedBatch) error {
	if r.cfg.TasksDB == "" {
		return errors.New("missing destination collection id")
	}
	if r.cfg.TemplatesDB == "" {
		return errors.New("missing templates collection id")
	}
	if b.spec.EpicID == "" {
		return errors.New("missing epic id")
	}

	epicPage, err := r.client.RetrievePage(ctx, b.spec.EpicID)
	if err != nil {
		return fmt.Errorf("fetch epic %s: %s", b.spec.EpicID, remoteMessage(err))
	}
	b.epic = epicFromPage(epicPage)

	var filter []byte
	if b.spec.TemplateTag != "" {
		filter = notion.SelectEquals(r.cfg.TemplateFilterProperty, b.spec.TemplateTag)
	}
	pages, err := r.client.QueryDatabase(ctx, r.cfg.TemplatesDB, filter, nil)
	if err != nil {
		return fmt.Errorf("query templates: %s", remoteMessage(err))
	}
	b.templates = make([]Template, 0, len(pages))
	for _, p := range pages {
		b.templates = append(b.templates, r.templateFromPage(p))
	}
	r.logger.Info("batch collected",
		zap.String("epic", b.epic.Name),
		zap.String("tag", b.spec.TemplateTag),
		zap.Int("templates", len(b.templates)))
	return nil
}

func (r *Runner) templateFromPage(p notion.Page) Template {
	name, _ := DeriveName(p.Properties)
	t := Template{ID: p.ID, Name: name, Icon: p.Icon, Properties: p.Properties}
	if pv, ok := p.Properties[r.cfg.DateProperty]; ok && pv.Type == notion.TypeDate {
		t.Date = pv.Date
	}
	return t
}

func epicFromPage(p *notion.Page) Epic {
	name, _ := DeriveName(p.Properties)
	e := Epic{ID: p.ID, Name: name}
	for _, key := range epicDateCandidates {
		if pv, ok := p.Properties[key]; ok && pv.Type == notion.TypeDate && pv.Date != nil {
			d := pv.Date.Start
			e.AnchorDate = &d
			break
		}
	}
	return e
}

// explicitDate takes the first parseable explicit date across the run's
// batch specs. A later batch carrying a different value is logged; one
// reference date per run is non-negotiable.
func (r *Runner) explicitDate(batches []*collectedBatch) *time.Time {
	var chosen *time.Time
	var chosenRaw string
	for _, b := range batches {
		raw := b.spec.ExplicitDate
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			r.logger.Warn("unparseable explicit date, ignored",
				zap.String("epic", b.spec.EpicID), zap.String("value", raw))
			continue
		}
		if chosen == nil {
			chosen = &t
			chosenRaw = raw
			continue
		}
		if raw != chosenRaw {
			r.logger.Warn("conflicting explicit dates across batches, first one wins",
				zap.String("chosen", chosenRaw), zap.String("ignored", raw))
		}
	}
	return chosen
}

// anchorFromEpics returns the first collected epic's anchor date, the
// candidate ranked below an explicit date and the target-date marker but
// above the latest template date.
func (r *Runner) anchorFromEpics(batches []*collectedBatch) *time.Time {
	for _, b := range batches {
		if !b.failed && b.epic.AnchorDate != nil {
			d := *b.epic.AnchorDate
			return &d
		}
	}
	return nil
}

func (r *Runner) destinationSchema(ctx context.Context) (notion.Schema, error) {
	schema, err := r.client.GetSchema(ctx, r.cfg.TasksDB)
	if err != nil {
		return nil, fmt.Errorf("fetch destination schema: %s", remoteMessage(err))
	}
	return schema, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
