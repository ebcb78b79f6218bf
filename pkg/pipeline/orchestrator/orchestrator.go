// Package orchestrator ties the pipeline together: it reacts to monitor
// events, triggers backups, validation, and diffing according to policy,
// persists the change log, and invokes caller-supplied rebuild hooks.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tabwatch/tabwatch/pkg/pipeline/changelog"
	"github.com/tabwatch/tabwatch/pkg/pipeline/monitor"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/backup"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/report"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/validate"
)

// errRingSize bounds the recent-errors list exposed via Status.
const errRingSize = 50

// Policy holds the per-step toggles of the change-handling cycle.
// Disabled steps are skipped, not faked.
type Policy struct {
	AutoBackup                bool
	AutoValidate              bool
	BackupOnValidationFailure bool
	DiffEnabled               bool
	CompareWithBackups        bool

	// ReportFormats are rendered after each automatic diff.
	ReportFormats []string

	// ReportDir receives rendered report files. Empty skips the writes;
	// the diff itself still runs and is logged.
	ReportDir string
}

// Options wires an Orchestrator to its collaborators.
type Options struct {
	Policy    Policy
	Monitor   *monitor.Monitor
	Backups   *backup.Store
	Validator *validate.Pipeline
	Differ    *diff.Engine
	Changelog *changelog.Log
}

// ErrorRecord is one captured internal failure.
type ErrorRecord struct {
	Time    time.Time `json:"time"`
	Stage   string    `json:"stage"`
	Path    string    `json:"path"`
	Message string    `json:"message"`
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	ActiveWatches []string      `json:"active_watches"`
	ChangeCount   int64         `json:"change_count"`
	LastChange    time.Time     `json:"last_change,omitempty"`
	Hooks         []string      `json:"hooks"`
	Validators    []string      `json:"validators"`
	RecentErrors  []ErrorRecord `json:"recent_errors"`

	BackupCount     int   `json:"backup_count"`
	BackupTotalSize int64 `json:"backup_total_size"`
}

// Orchestrator reacts to change events without ever blocking the monitor:
// each watched path gets its own queue and worker, so a slow backup or
// diff for one file never delays detection or handling of another.
type Orchestrator struct {
	opts Options
	log  *logging.Logger

	mu          sync.Mutex
	hooks       []Hook
	workers     map[string]*pathWorker
	errRing     []ErrorRecord
	changeCount int64
	lastChange  time.Time
	started     bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an Orchestrator. Monitor and Changelog are required; the
// remaining collaborators are only needed when the policy enables them.
func New(opts Options) (*Orchestrator, error) {
	if opts.Monitor == nil {
		return nil, errors.New("monitor is required")
	}
	if opts.Changelog == nil {
		return nil, errors.New("changelog is required")
	}
	if opts.Policy.AutoBackup && opts.Backups == nil {
		return nil, errors.New("auto-backup requires a backup store")
	}
	if opts.Policy.AutoValidate && opts.Validator == nil {
		return nil, errors.New("auto-validation requires a validation pipeline")
	}
	if opts.Policy.DiffEnabled && opts.Differ == nil {
		return nil, errors.New("diffing requires a diff engine")
	}

	return &Orchestrator{
		opts:    opts,
		log:     logging.Get("orchestrator"),
		workers: make(map[string]*pathWorker),
		done:    make(chan struct{}),
	}, nil
}

// Start begins dispatching monitor events. It returns immediately; the
// dispatcher runs until the context is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return errors.New("orchestrator already started")
	}
	o.started = true
	o.mu.Unlock()

	o.wg.Add(1)
	go o.dispatch(ctx)
	o.log.Info("orchestrator started")
	return nil
}

// Stop shuts down the dispatcher and waits for in-flight cycles to
// finish. In-flight work is allowed to complete rather than being
// aborted, avoiding partial writes.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	o.mu.Unlock()

	close(o.done)
	o.wg.Wait()
	o.log.Info("orchestrator stopped")
}

// Watch begins observing a path.
func (o *Orchestrator) Watch(path string) error {
	return o.opts.Monitor.Watch(path)
}

// Unwatch stops observing a path. In-flight work for it is allowed to
// finish.
func (o *Orchestrator) Unwatch(path string) {
	o.opts.Monitor.Unwatch(path)
}

// RegisterValidator adds a custom validator to the validation pipeline.
func (o *Orchestrator) RegisterValidator(v *validate.CustomValidator) error {
	if o.opts.Validator == nil {
		return errors.New("no validation pipeline configured")
	}
	return o.opts.Validator.RegisterValidator(v)
}

// UnregisterValidator removes a custom validator by name.
func (o *Orchestrator) UnregisterValidator(name string) bool {
	if o.opts.Validator == nil {
		return false
	}
	return o.opts.Validator.UnregisterValidator(name)
}

// Status returns a snapshot of current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		ActiveWatches: o.opts.Monitor.Watched(),
		ChangeCount:   o.changeCount,
		LastChange:    o.lastChange,
		Hooks:         make([]string, len(o.hooks)),
		RecentErrors:  make([]ErrorRecord, len(o.errRing)),
	}
	for i, h := range o.hooks {
		st.Hooks[i] = h.Name
	}
	copy(st.RecentErrors, o.errRing)

	if o.opts.Validator != nil {
		st.Validators = o.opts.Validator.ValidatorNames()
	}
	if o.opts.Backups != nil {
		st.BackupCount, st.BackupTotalSize = o.opts.Backups.Count()
	}
	return st
}

// dispatch fans monitor events out to per-path workers. The dispatcher
// itself never does pipeline work, so the monitor's channels stay
// drained.
func (o *Orchestrator) dispatch(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			o.drainWorkers()
			return
		case <-o.done:
			o.drainWorkers()
			return

		case ev, ok := <-o.opts.Monitor.Events():
			if !ok {
				o.drainWorkers()
				return
			}
			o.workerFor(ev.Path).push(ev)

		case err, ok := <-o.opts.Monitor.Errors():
			if !ok {
				continue
			}
			path := ""
			var werr *monitor.WatchError
			if errors.As(err, &werr) {
				path = werr.Path
			}
			o.recordError("monitor", path, err)
		}
	}
}

func (o *Orchestrator) workerFor(path string) *pathWorker {
	o.mu.Lock()
	defer o.mu.Unlock()

	w, ok := o.workers[path]
	if !ok {
		w = newPathWorker()
		o.workers[path] = w
		o.wg.Add(1)
		go w.run(&o.wg, o.handle)
	}
	return w
}

func (o *Orchestrator) drainWorkers() {
	o.mu.Lock()
	for _, w := range o.workers {
		w.stop()
	}
	o.mu.Unlock()
}

// handle runs one full cycle for one event: backup, validate, log, hooks,
// diff. Per-path ordering is guaranteed by the single worker per path.
func (o *Orchestrator) handle(ev monitor.Event) {
	o.mu.Lock()
	o.changeCount++
	o.lastChange = time.Now().UTC()
	o.mu.Unlock()

	o.log.Info("handling change", "path", ev.Path, "kind", string(ev.Kind))

	meta := &changelog.Metadata{}
	var backupRec *backup.Record

	contentPresent := ev.Kind == monitor.EventAdded || ev.Kind == monitor.EventChanged

	if o.opts.Policy.AutoBackup && contentPresent {
		rec, err := o.opts.Backups.Create(ev.Path, "automatic backup", "auto")
		if err != nil {
			o.recordError("backup", ev.Path, err)
		} else {
			backupRec = rec
			meta.BackupID = rec.ID
		}
	}

	var validation *validate.Result
	if o.opts.Policy.AutoValidate && contentPresent {
		res, err := o.opts.Validator.ValidateFile(ev.Path)
		if err != nil {
			o.recordError("validate", ev.Path, err)
		} else {
			validation = res
			meta.Valid = &res.IsValid
			meta.ErrorCount = len(res.Errors)
			meta.WarningCount = len(res.Warnings)
			meta.RowCount = res.RowCount
			meta.ColumnCount = len(res.Headers)
		}
	}

	if validation != nil && !validation.IsValid &&
		o.opts.Policy.BackupOnValidationFailure && backupRec == nil &&
		o.opts.Backups != nil && contentPresent {
		rec, err := o.opts.Backups.Create(ev.Path, "backup on validation failure", "validation-failure")
		if err != nil {
			o.recordError("backup", ev.Path, err)
		} else {
			backupRec = rec
			meta.BackupID = rec.ID
		}
	}

	// Exactly one log entry per event, whatever happened above.
	entry, err := o.opts.Changelog.Append(ev, meta)
	if err != nil {
		o.recordError("changelog", ev.Path, err)
		entry = nil
	}

	o.runHooks(ev, entry)

	if o.opts.Policy.DiffEnabled && o.opts.Policy.CompareWithBackups && backupRec != nil {
		o.diffAgainstPrevious(ev, backupRec)
	}
}

// diffAgainstPrevious compares the file against its most recent backup
// other than the one just taken, rendering reports per policy.
func (o *Orchestrator) diffAgainstPrevious(ev monitor.Event, current *backup.Record) {
	prev, ok := o.opts.Backups.Latest(ev.Path, current.ID)
	if !ok {
		return
	}

	content, err := o.opts.Backups.Content(prev.ID)
	if err != nil {
		o.recordError("diff", ev.Path, err)
		return
	}

	// Stage the previous version as a plain file so every diff mode,
	// including text, sees the same inputs.
	tmp, err := os.CreateTemp("", "tabwatch-prev-*.csv")
	if err != nil {
		o.recordError("diff", ev.Path, err)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		o.recordError("diff", ev.Path, err)
		return
	}
	if err := tmp.Close(); err != nil {
		o.recordError("diff", ev.Path, err)
		return
	}

	result, err := o.opts.Differ.CompareFiles(tmp.Name(), ev.Path)
	if err != nil {
		o.recordError("diff", ev.Path, err)
		return
	}
	// Temp staging is an implementation detail; reports should show the
	// original path.
	result.OldPath = prev.BackupPath

	o.log.Info("diff computed", "path", ev.Path,
		"previous_version", prev.Version, "changes", result.Statistics.TotalChanges())

	if o.opts.Policy.ReportDir == "" {
		return
	}
	if err := os.MkdirAll(o.opts.Policy.ReportDir, 0o755); err != nil {
		o.recordError("report", ev.Path, err)
		return
	}

	for _, format := range o.opts.Policy.ReportFormats {
		name := reportFileName(ev.Path, current.Version, format)
		path := filepath.Join(o.opts.Policy.ReportDir, name)
		if _, err := report.RenderToFile(result, format, path); err != nil {
			o.recordError("report", ev.Path, err)
			continue
		}
		o.log.Info("report written", "path", path, "format", format)
	}
}

// reportFileName builds a stable name: <base>_v<version>.<ext>.
func reportFileName(original string, version int, format string) string {
	base := filepath.Base(original)
	base = base[:len(base)-len(filepath.Ext(base))]

	ext := format
	switch format {
	case "console":
		ext = "txt"
	case "markdown":
		ext = "md"
	}
	return fmt.Sprintf("%s_v%d.%s", base, version, ext)
}

// recordError appends to the bounded recent-errors ring.
func (o *Orchestrator) recordError(stage, path string, err error) {
	o.log.Error("pipeline error", "stage", stage, "path", path, "error", err)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.errRing = append(o.errRing, ErrorRecord{
		Time:    time.Now().UTC(),
		Stage:   stage,
		Path:    path,
		Message: err.Error(),
	})
	if len(o.errRing) > errRingSize {
		o.errRing = o.errRing[len(o.errRing)-errRingSize:]
	}
}
