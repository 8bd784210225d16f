package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/corpus"
	"github.com/bricklift/bricklift/internal/storage"
	"github.com/bricklift/bricklift/internal/templates"
)

// State is the coordinator's lifecycle state.
type State int

const (
	// StateIdle means no migration is in flight.
	StateIdle State = iota

	// StateChecking means the schema version gate is being evaluated.
	StateChecking

	// StateNotNeeded means the gate found the corpus already current.
	StateNotNeeded

	// StateMigrating means the pipeline is running.
	StateMigrating
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateNotNeeded:
		return "not-needed"
	case StateMigrating:
		return "migrating"
	default:
		return "unknown"
	}
}

// Event is a migration lifecycle notification.
type Event int

const (
	// EventStarted fires at the very start of the pipeline.
	EventStarted Event = iota

	// EventFinished fires at the very end, on success and failure alike.
	EventFinished
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Observer receives migration lifecycle events.
type Observer func(Event)

// ProgressFunc receives coarse-grained progress: a phase title, the item
// being processed, and a fraction in [0, 1].
type ProgressFunc func(title, message string, fraction float64)

// Confirm is the user confirmation collaborator consulted by the gate.
// remember asks for the decision to be persisted for the target version.
type Confirm interface {
	Proceed(from, to int) (proceed, remember bool)
}

// Result summarizes a coordinator run.
type Result struct {
	// UpToDate means the gate found nothing to do.
	UpToDate bool

	// Declined means the user refused the migration.
	Declined bool

	// TemplatesRestamped counts shared library templates regenerated.
	TemplatesRestamped int

	// Composites and Scenes count assets processed.
	Composites int
	Scenes     int

	// AssetsChanged counts assets that were modified and persisted.
	AssetsChanged int

	// DurationSecs is the wall-clock pipeline duration.
	DurationSecs float64
}

// Config wires a Coordinator's collaborators. Store, Library, and Query
// are required; the rest default sensibly.
type Config struct {
	Store    storage.AssetStore
	Library  templates.Library
	Query    SpatialQuery
	Matcher  AnchorMatcher
	Confirm  Confirm
	Progress ProgressFunc
	Logger   *slog.Logger
}

// Coordinator orchestrates the migration pipeline. Only one migration may
// be in flight per coordinator; a trigger while one is running is a no-op.
type Coordinator struct {
	mu        sync.Mutex
	state     State
	observers []Observer

	store      storage.AssetStore
	library    templates.Library
	migrator   *PartMigrator
	reconciler *Reconciler
	confirm    Confirm
	progress   ProgressFunc
	log        *slog.Logger
}

// NewCoordinator creates a coordinator in the Idle state.
func NewCoordinator(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		state:      StateIdle,
		store:      cfg.Store,
		library:    cfg.Library,
		migrator:   NewPartMigrator(cfg.Library, cfg.Matcher, log),
		reconciler: NewReconciler(cfg.Query, log),
		confirm:    cfg.Confirm,
		progress:   cfg.Progress,
		log:        log,
	}
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers an observer for lifecycle events.
func (c *Coordinator) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) emit(e Event) {
	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		o(e)
	}
}

func (c *Coordinator) report(title, message string, fraction float64) {
	if c.progress != nil {
		c.progress(title, message, fraction)
	}
}

// Run evaluates the schema version gate and, when the corpus is stale,
// executes the migration pipeline to completion. A call while a run is
// already in flight returns (nil, nil) without doing anything.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, nil
	}
	c.state = StateChecking
	c.mu.Unlock()
	defer c.setState(StateIdle)

	from, err := c.store.SchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading schema version: %w", err)
	}
	if from == assets.CurrentSchemaVersion {
		c.setState(StateNotNeeded)
		return &Result{UpToDate: true}, nil
	}

	if proceed, err := c.confirmed(ctx, from); err != nil {
		return nil, err
	} else if !proceed {
		c.setState(StateNotNeeded)
		return &Result{Declined: true}, nil
	}

	c.setState(StateMigrating)
	c.log.Info("migration starting",
		"from", from, "to", assets.CurrentSchemaVersion)

	active, err := c.store.ActiveScene(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading active scene: %w", err)
	}

	start := time.Now()
	c.emit(EventStarted)
	res, runErr := c.migrate(ctx)

	// All exit paths clear the progress indicator and restore whichever
	// scene was active before the run began.
	c.report("Migration", "", 1)
	if active != "" {
		if err := c.store.SetActiveScene(ctx, active); err != nil {
			c.log.Error("restoring active scene failed", "scene", active, "err", err)
		}
	}

	if runErr != nil {
		c.emit(EventFinished)
		return nil, runErr
	}

	if err := c.store.SetSchemaVersion(ctx, assets.CurrentSchemaVersion); err != nil {
		c.emit(EventFinished)
		return nil, fmt.Errorf("writing schema version: %w", err)
	}

	res.DurationSecs = time.Since(start).Seconds()
	c.emit(EventFinished)
	c.log.Info("migration finished",
		"composites", res.Composites, "scenes", res.Scenes,
		"changed", res.AssetsChanged)
	return res, nil
}

// confirmed consults the stored "don't ask again" preference and the
// confirmation collaborator. A nil collaborator means proceed.
func (c *Coordinator) confirmed(ctx context.Context, from int) (bool, error) {
	if c.confirm == nil {
		return true, nil
	}

	skip, err := c.store.SkipConfirm(ctx, assets.CurrentSchemaVersion)
	if err != nil {
		return false, fmt.Errorf("reading confirmation preference: %w", err)
	}
	if skip {
		return true, nil
	}

	proceed, remember := c.confirm.Proceed(from, assets.CurrentSchemaVersion)
	if proceed && remember {
		if err := c.store.SetSkipConfirm(ctx, assets.CurrentSchemaVersion); err != nil {
			c.log.Error("persisting confirmation preference failed", "err", err)
		}
	}
	return proceed, nil
}

// migrate runs pipeline steps 1-5: library preparation, shared template
// migration, corpus enumeration, the ordered composite pass, and the
// scene pass.
func (c *Coordinator) migrate(ctx context.Context) (*Result, error) {
	res := &Result{}

	// Step 1: fixed library locations for shared templates.
	if err := c.library.EnsureLibraries(); err != nil {
		return nil, fmt.Errorf("preparing template libraries: %w", err)
	}

	// Step 2: migrate stale shared templates first. Every part
	// instantiates from these leaves.
	stale, err := c.library.StaleTemplates()
	if err != nil {
		return nil, fmt.Errorf("scanning template libraries: %w", err)
	}
	for i, ref := range stale {
		c.report("Migrating shared templates", ref.DesignID, frac(i, len(stale)))
		if err := c.library.Restamp(ref); err != nil {
			c.log.Error("restamping template failed",
				"design", ref.DesignID, "kind", ref.Kind.String(), "err", err)
			continue
		}
		res.TemplatesRestamped++
	}

	// Step 3: enumerate the corpus once and classify by extension,
	// excluding the reserved library locations.
	paths, err := c.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("enumerating corpus: %w", err)
	}

	var composites, scenes []string
	for _, path := range paths {
		if corpus.IsReserved(path) {
			continue
		}
		switch {
		case strings.HasSuffix(path, assets.ExtComposite):
			composites = append(composites, path)
		case strings.HasSuffix(path, assets.ExtScene):
			scenes = append(scenes, path)
		}
	}

	collector := NewCollector()
	for i, path := range composites {
		c.report("Scanning composite assets", path, frac(i, len(composites)))
		a, err := c.store.Load(ctx, path)
		if err != nil {
			c.log.Error("loading composite asset failed", "asset", path, "err", err)
			continue
		}
		collector.Collect(a)
	}

	// Step 4: walk composites in dependency order. A cycle means a
	// corrupt corpus and aborts the pass; a partial order is never used.
	order, err := collector.Order()
	if err != nil {
		return nil, fmt.Errorf("ordering composite assets: %w", err)
	}
	for i, path := range order {
		c.report("Migrating composite assets", path, frac(i, len(order)))
		if err := c.processAsset(ctx, path, false, res); err != nil {
			c.log.Error("migrating composite asset failed", "asset", path, "err", err)
			continue
		}
		res.Composites++
	}

	// Step 5: flat scene pass over root bricks. Instances were migrated
	// transitively through their source assets in step 4.
	for i, path := range scenes {
		c.report("Migrating scenes", path, frac(i, len(scenes)))
		if err := c.store.SetActiveScene(ctx, path); err != nil {
			c.log.Error("opening scene failed", "scene", path, "err", err)
			continue
		}
		if err := c.processAsset(ctx, path, true, res); err != nil {
			c.log.Error("migrating scene failed", "scene", path, "err", err)
			continue
		}
		res.Scenes++
	}

	return res, nil
}

// processAsset loads one working copy, migrates and reconciles its bricks,
// and persists it if anything changed. The working copy is released by
// dropping the reference when this returns.
func (c *Coordinator) processAsset(ctx context.Context, path string, sceneRoots bool, res *Result) error {
	a, err := c.store.Load(ctx, path)
	if err != nil {
		return err
	}

	bricks := a.Bricks
	if sceneRoots {
		bricks = a.Roots()
	}

	changed := c.migrator.MigrateBricks(bricks)
	c.reconciler.Reconcile(bricks)

	if changed || assets.AnyDirty(bricks) {
		assets.ClearDirty(bricks)
		if err := c.store.Save(ctx, a); err != nil {
			return err
		}
		res.AssetsChanged++
	}
	return nil
}

// frac maps progress through n items to a fraction, treating an empty
// phase as complete.
func frac(i, n int) float64 {
	if n == 0 {
		return 1
	}
	return float64(i) / float64(n)
}
