// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/camsync/internal/config"
	"github.com/tomtom215/camsync/internal/grouper"
	"github.com/tomtom215/camsync/internal/ledger"
	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/merger"
	"github.com/tomtom215/camsync/internal/metrics"
	"github.com/tomtom215/camsync/internal/models"
	"github.com/tomtom215/camsync/internal/storage"
)

// Unit and camera failures. None of them aborts a run.
var (
	ErrFetchFailed       = merger.ErrFetchFailed
	ErrBackupFailed      = merger.ErrBackupFailed
	ErrCombineFailed     = merger.ErrCombineFailed
	ErrCameraEnumeration = errors.New("camera enumeration failed")
)

// Source lists and opens remote recordings.
type Source interface {
	Cameras(ctx context.Context) ([]models.Camera, error)
	Items(ctx context.Context, camera string, from, to time.Time) ([]models.RemoteItem, error)
	Open(ctx context.Context, item models.RemoteItem) (io.ReadCloser, error)
}

// cacheResetter is implemented by sources that memoize listings.
type cacheResetter interface {
	ResetCache()
}

// GroupMerger combines a merge group into one backed-up file.
type GroupMerger interface {
	Merge(ctx context.Context, cam models.Camera, group []models.RemoteItem) (merger.Output, error)
}

// Options tune a sync run.
type Options struct {
	// Cameras are the configured cameras. Their display names and gap
	// thresholds override what the source reports.
	Cameras               []models.Camera
	LookbackDays          int
	CheckpointInterval    int
	Reinit                bool
	OnlyCamera            string
	DryRun                bool
	CameraWorkers         int
	ItemTimeout           time.Duration
	IncludeUnknownCameras bool
	RetainDays            int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	cams := make([]models.Camera, 0, len(cfg.Cameras))
	for _, c := range cfg.Cameras {
		cams = append(cams, models.Camera{
			SerialID:      c.SerialID,
			DisplayName:   c.DisplayName,
			MaxGapSeconds: c.MaxGapSeconds,
		})
	}
	retain := 0
	if cfg.Storage.Backend == storage.BackendLocal {
		retain = cfg.Storage.Local.RetainDays
	}
	return Options{
		Cameras:               cams,
		LookbackDays:          cfg.Sync.LookbackDays,
		CheckpointInterval:    cfg.Sync.CheckpointInterval,
		Reinit:                cfg.Sync.Reinit,
		OnlyCamera:            cfg.Sync.OnlyCamera,
		DryRun:                cfg.Sync.DryRun,
		CameraWorkers:         cfg.Sync.CameraWorkers,
		ItemTimeout:           cfg.Sync.ItemTimeout,
		IncludeUnknownCameras: cfg.Sync.IncludeUnknownCameras,
		RetainDays:            retain,
	}
}

// Report summarizes one run.
type Report struct {
	RunID            string        `json:"run_id"`
	StartedAt        time.Time     `json:"started_at"`
	Processed        int           `json:"processed"`
	Merged           int           `json:"merged"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Seeded           int           `json:"seeded"`
	Planned          int           `json:"planned,omitempty"` // Dry-run only
	CamerasProcessed int           `json:"cameras_processed"`
	CamerasFailed    int           `json:"cameras_failed"`
	Pruned           int           `json:"pruned"`
	Expired          int           `json:"expired"`
	Bytes            int64         `json:"bytes"`
	LedgerSize       int           `json:"ledger_size"`
	Duration         time.Duration `json:"duration_ns"`
	DryRun           bool          `json:"dry_run,omitempty"`
}

// Engine runs incremental syncs from a Source into a storage Backend.
type Engine struct {
	source  Source
	backend storage.Backend
	ledger  *ledger.Ledger
	merger  GroupMerger // nil disables merging
	opts    Options
}

// New creates an Engine. A nil merger backs up every item on its own.
func New(source Source, backend storage.Backend, l *ledger.Ledger, m GroupMerger, opts Options) *Engine {
	if opts.CheckpointInterval < 1 {
		opts.CheckpointInterval = 25
	}
	if opts.CameraWorkers < 1 {
		opts.CameraWorkers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{source: source, backend: backend, ledger: l, merger: m, opts: opts}
}

// runState carries the counters of one run.
type runState struct {
	today string
	from  time.Time
	to    time.Time
	began time.Time

	mu     sync.Mutex
	report Report

	// marked counts units written to the ledger, driving checkpoints.
	marked atomic.Int64
}

func (s *runState) add(fn func(r *Report)) {
	s.mu.Lock()
	fn(&s.report)
	s.mu.Unlock()
}

// Run performs one sync pass. It returns an error only when the run could
// not finish: the context was cancelled, the camera list could not be
// determined, or the final ledger write failed. Per-unit and per-camera
// failures are counted in the Report instead.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	if logging.RunIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewRunID(ctx)
	}
	log := logging.Ctx(ctx)

	now := e.opts.Now().UTC()
	today := now.Format(models.DateLayout)
	st := &runState{
		today: today,
		from:  startOfDay(now).AddDate(0, 0, -e.opts.LookbackDays),
		to:    now,
		began: time.Now(),
	}
	st.report.RunID = logging.RunIDFromContext(ctx)
	st.report.StartedAt = now
	st.report.DryRun = e.opts.DryRun

	if rc, ok := e.source.(cacheResetter); ok {
		rc.ResetCache()
	}

	log.Info().
		Str("date", today).
		Str("backend", e.backend.Name()).
		Bool("reinit", e.opts.Reinit).
		Bool("dry_run", e.opts.DryRun).
		Int("ledger_size", e.ledger.Len()).
		Msg("Sync run started")

	runErr := e.run(ctx, st)
	report := e.finish(ctx, st, runErr)
	return report, runErr
}

func (e *Engine) run(ctx context.Context, st *runState) error {
	cams, skipped, err := e.resolveCameras(ctx)
	if err != nil {
		return err
	}
	for _, serial := range skipped {
		e.carry(ctx, st, serial)
	}

	g := new(errgroup.Group)
	g.SetLimit(e.opts.CameraWorkers)
	for _, cam := range cams {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := e.syncCamera(ctx, st, cam); err != nil {
				st.add(func(r *Report) { r.CamerasFailed++ })
				metrics.RecordCameraFailure(cam.SerialID)
				logging.Ctx(ctx).Warn().Err(err).Str("camera", cam.SerialID).Msg("Camera sync failed, entries carried forward")
				e.carry(ctx, st, cam.SerialID)
				return nil
			}
			st.add(func(r *Report) { r.CamerasProcessed++ })
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

// finish prunes, persists and records the outcome of a run.
func (e *Engine) finish(ctx context.Context, st *runState, runErr error) Report {
	log := logging.Ctx(ctx)
	// Finishing work must survive a cancelled run context.
	fctx := context.WithoutCancel(ctx)

	if !e.opts.DryRun {
		// An interrupted run has not refreshed every camera; pruning now
		// would forget clips that are still backed up.
		if runErr == nil {
			pruned := e.ledger.Prune(st.today)
			st.add(func(r *Report) { r.Pruned = pruned })
		}
		if err := e.ledger.PersistFinal(fctx); err != nil {
			log.Error().Err(err).Msg("Final ledger write failed")
			if runErr == nil {
				runErr = err
			}
		}
		if runErr == nil {
			e.expire(fctx, st)
		}
	}

	st.mu.Lock()
	report := st.report
	st.mu.Unlock()
	report.LedgerSize = e.ledger.Len()
	report.Duration = time.Since(st.began)

	metrics.RecordRun(metrics.RunStats{
		Processed:  report.Processed,
		Merged:     report.Merged,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		Seeded:     report.Seeded,
		LedgerSize: report.LedgerSize,
		Duration:   report.Duration,
	}, runErr)

	ev := log.Info()
	if runErr != nil {
		ev = log.Warn().Err(runErr)
	}
	ev.Int("processed", report.Processed).
		Int("merged", report.Merged).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("seeded", report.Seeded).
		Int("cameras_failed", report.CamerasFailed).
		Int("pruned", report.Pruned).
		Int64("bytes", report.Bytes).
		Int("ledger_size", report.LedgerSize).
		Dur("duration", report.Duration).
		Msg("Sync run finished")
	return report
}

// expire applies local retention when the backend supports it.
func (e *Engine) expire(ctx context.Context, st *runState) {
	if e.opts.RetainDays <= 0 {
		return
	}
	ret, ok := e.backend.(storage.Retainer)
	if !ok {
		return
	}
	now := e.opts.Now().UTC()
	cutoff := startOfDay(now).AddDate(0, 0, -e.opts.RetainDays).Format(models.DateLayout)
	n, err := ret.ExpireBefore(ctx, cutoff)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("cutoff", cutoff).Msg("Retention cleanup failed")
	}
	st.add(func(r *Report) { r.Expired = n })
}

// resolveCameras merges the remote camera list with the configured cameras.
// It returns the cameras to sync and the serials skipped this run, whose
// ledger entries must be carried.
func (e *Engine) resolveCameras(ctx context.Context) ([]models.Camera, []string, error) {
	log := logging.Ctx(ctx)

	remote, err := e.source.Cameras(ctx)
	if err != nil {
		if len(e.opts.Cameras) == 0 {
			return nil, nil, fmt.Errorf("%w: %w", ErrCameraEnumeration, err)
		}
		log.Warn().Err(err).Int("configured", len(e.opts.Cameras)).Msg("Camera list unavailable, using configured cameras")
	}

	configured := make(map[string]models.Camera, len(e.opts.Cameras))
	for _, c := range e.opts.Cameras {
		configured[c.SerialID] = c
	}

	byID := make(map[string]models.Camera)
	var skipped []string
	for _, rc := range remote {
		if c, ok := configured[rc.SerialID]; ok {
			if c.DisplayName == "" {
				c.DisplayName = rc.DisplayName
			}
			byID[c.SerialID] = c
			continue
		}
		if !e.opts.IncludeUnknownCameras {
			log.Debug().Str("camera", rc.SerialID).Msg("Ignoring unconfigured camera")
			skipped = append(skipped, rc.SerialID)
			continue
		}
		// Unknown cameras are synced under their remote name without merging.
		byID[rc.SerialID] = models.Camera{SerialID: rc.SerialID, DisplayName: rc.DisplayName}
	}
	for serial, c := range configured {
		if _, ok := byID[serial]; !ok {
			if err == nil {
				log.Warn().Str("camera", serial).Msg("Configured camera not reported by the account")
			}
			byID[serial] = c
		}
	}

	cams := make([]models.Camera, 0, len(byID))
	for serial, c := range byID {
		if e.opts.OnlyCamera != "" && serial != e.opts.OnlyCamera {
			skipped = append(skipped, serial)
			continue
		}
		cams = append(cams, c)
	}
	sort.Slice(cams, func(i, j int) bool { return cams[i].SerialID < cams[j].SerialID })

	if e.opts.OnlyCamera != "" && len(cams) == 0 {
		return nil, nil, fmt.Errorf("%w: camera %s not found", ErrCameraEnumeration, e.opts.OnlyCamera)
	}
	return cams, skipped, nil
}

// carry keeps a camera's entries alive through this run's prune.
func (e *Engine) carry(ctx context.Context, st *runState, serial string) {
	if e.opts.DryRun {
		return
	}
	if n := e.ledger.Carry(serial, st.today); n > 0 {
		logging.Ctx(ctx).Debug().Str("camera", serial).Int("entries", n).Msg("Carried ledger entries forward")
	}
}

// syncCamera processes every unit of one camera. A panic is converted into
// a camera failure.
func (e *Engine) syncCamera(ctx context.Context, st *runState, cam models.Camera) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCameraEnumeration, r)
		}
	}()

	log := logging.Ctx(ctx).With().Str("camera", cam.SerialID).Str("name", cam.Label()).Logger()

	items, err := e.source.Items(ctx, cam.SerialID, st.from, st.to)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCameraEnumeration, err)
	}
	models.SortNewestFirst(items)

	var gap *int
	if e.merger != nil {
		gap = cam.MaxGapSeconds
	}
	units := grouper.Group(items, gap)
	log.Debug().Int("items", len(items)).Int("units", len(units)).Msg("Listed camera recordings")

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.syncUnit(ctx, st, cam, unit)
	}
	return nil
}

// syncUnit handles one singleton or merge group. Member tags are marked only
// after the backend reports the write as durable.
func (e *Engine) syncUnit(ctx context.Context, st *runState, cam models.Camera, unit []models.RemoteItem) {
	log := logging.Ctx(ctx)

	if e.synced(unit) {
		if !e.opts.DryRun {
			e.mark(st, cam, unit)
		}
		st.add(func(r *Report) { r.Skipped++ })
		return
	}

	if e.opts.DryRun {
		dir, file := e.target(cam, unit)
		log.Info().Str("camera", cam.SerialID).Str("dir", dir).Str("file", file).Int("items", len(unit)).Msg("Would back up")
		st.add(func(r *Report) { r.Planned++ })
		return
	}

	if e.opts.Reinit {
		e.mark(st, cam, unit)
		st.add(func(r *Report) { r.Seeded++ })
		e.afterMark(ctx, st)
		return
	}

	timeout := e.opts.ItemTimeout
	if timeout > 0 {
		timeout *= time.Duration(len(unit))
	}
	uctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		res    storage.Result
		err    error
		merged bool
	)
	if len(unit) == 1 {
		res, err = e.backupOne(uctx, cam, unit[0])
	} else {
		var out merger.Output
		out, err = e.merger.Merge(uctx, cam, unit)
		res = out.Result
		merged = true
	}
	if err != nil {
		st.add(func(r *Report) { r.Failed++ })
		log.Warn().Err(err).
			Str("camera", cam.SerialID).
			Str("tag", string(unit[0].Tag())).
			Int("items", len(unit)).
			Msg("Unit failed, will retry next run")
		return
	}

	e.mark(st, cam, unit)
	metrics.RecordBackup(e.backend.Name(), res.Bytes)
	st.add(func(r *Report) {
		r.Processed++
		r.Bytes += res.Bytes
		if merged {
			r.Merged++
		}
	})
	log.Debug().
		Str("camera", cam.SerialID).
		Str("location", res.Location).
		Int64("bytes", res.Bytes).
		Bool("existed", res.Skipped).
		Int("items", len(unit)).
		Msg("Unit backed up")
	e.afterMark(ctx, st)
}

// synced reports whether every member of unit is in the ledger. A partially
// synced group is processed again as a whole.
func (e *Engine) synced(unit []models.RemoteItem) bool {
	for _, item := range unit {
		if !e.ledger.IsSynced(item.Tag()) {
			return false
		}
	}
	return true
}

func (e *Engine) mark(st *runState, cam models.Camera, unit []models.RemoteItem) {
	for _, item := range unit {
		e.ledger.MarkSynced(item.Tag(), cam.SerialID, st.today)
	}
}

// afterMark checkpoints every CheckpointInterval marked units.
func (e *Engine) afterMark(ctx context.Context, st *runState) {
	n := st.marked.Add(1)
	if n%int64(e.opts.CheckpointInterval) != 0 {
		return
	}
	if err := e.ledger.Checkpoint(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("units", n).Msg("Ledger checkpoint failed")
		return
	}
	logging.Ctx(ctx).Debug().Int64("units", n).Int("ledger_size", e.ledger.Len()).Msg("Ledger checkpoint written")
}

// backupOne streams a single item straight into the backend.
func (e *Engine) backupOne(ctx context.Context, cam models.Camera, item models.RemoteItem) (storage.Result, error) {
	dir, file := e.target(cam, []models.RemoteItem{item})

	rc, err := e.source.Open(ctx, item)
	if err != nil {
		return storage.Result{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, item.Tag(), err)
	}
	defer func() { _ = rc.Close() }()

	res, err := e.backend.Backup(ctx, rc, dir, file)
	if err != nil {
		return storage.Result{}, fmt.Errorf("%w: %s: %w", ErrBackupFailed, item.Tag(), err)
	}
	return res, nil
}

// target names the artifact for a unit.
func (e *Engine) target(cam models.Camera, unit []models.RemoteItem) (dir, file string) {
	if len(unit) > 1 {
		dir, file, _ = merger.Target(cam, unit)
		return dir, file
	}
	item := unit[0]
	start := item.StartTime()
	return models.OutputDir(cam, start),
		models.OutputName(cam, start, item.DurationSeconds, models.ExtensionFor(item.ContentType))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
