// Package pipeline runs one observation request through the linear
// query, select, retrieve, extract and render stages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hubble-cli/internal/model"
	"github.com/sells-group/hubble-cli/internal/render"
	"github.com/sells-group/hubble-cli/internal/resilience"
	"github.com/sells-group/hubble-cli/internal/selector"
	"github.com/sells-group/hubble-cli/internal/store"
)

// Catalog finds observations and their products.
type Catalog interface {
	QueryObservations(ctx context.Context, q model.ObservationQuery) ([]model.ObservationRecord, error)
	ListProducts(ctx context.Context, obs model.ObservationRecord) ([]model.ProductRecord, error)
}

// Retriever materializes chosen products locally.
type Retriever interface {
	Retrieve(ctx context.Context, products []model.ProductRecord) ([]model.RetrievedFile, error)
}

// Inspector extracts the dataset for a data type from a retrieved file.
type Inspector interface {
	Extract(path string, dt model.DataType) (model.Dataset, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore records every run in st. Ledger failures are logged only.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) {
		p.store = st
	}
}

// WithPolicy sets the observation and file pickers.
func WithPolicy(policy selector.Policy) Option {
	return func(p *Pipeline) {
		p.policy = policy.WithDefaults()
	}
}

// WithRenderOptions configures the renderer.
func WithRenderOptions(opts ...render.Option) Option {
	return func(p *Pipeline) {
		p.renderOpts = append(p.renderOpts, opts...)
	}
}

// Pipeline orchestrates the stages of a run.
type Pipeline struct {
	catalog    Catalog
	retriever  Retriever
	inspector  Inspector
	presenter  render.Presenter
	store      store.Store
	policy     selector.Policy
	renderOpts []render.Option
}

// New creates a Pipeline.
func New(cat Catalog, ret Retriever, insp Inspector, presenter render.Presenter, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:   cat,
		retriever: ret,
		inspector: insp,
		presenter: presenter,
		policy:    selector.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one request. On failure the returned run carries the
// classified error and err is the *model.StageError that stopped it.
func (p *Pipeline) Run(ctx context.Context, q model.ObservationQuery) (*model.Run, error) {
	run := &model.Run{Query: q, State: model.RunStateIdle, CreatedAt: time.Now().UTC()}
	if p.store != nil {
		created, err := p.store.CreateRun(ctx, q)
		if err != nil {
			zap.L().Warn("pipeline: failed to create run record", zap.Error(err))
		} else {
			run.ID = created.ID
			run.CreatedAt = created.CreatedAt
		}
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	log := zap.L().With(
		zap.String("run_id", run.ID),
		zap.String("target", q.Target),
		zap.String("data_type", q.DataType.String()),
	)
	log.Info("pipeline: starting run")

	result := &model.RunResult{}
	run.Result = result

	sm := &machine{state: model.RunStateIdle, onChange: func(s model.RunState) {
		run.State = s
		if p.store == nil {
			return
		}
		if err := p.store.UpdateRunState(ctx, run.ID, s); err != nil {
			log.Warn("pipeline: failed to update state", zap.String("state", string(s)), zap.Error(err))
		}
	}}

	note := func(msg string) {
		result.Notes = append(result.Notes, msg)
		if err := p.presenter.Note(ctx, msg); err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		}
		log.Info("pipeline: note", zap.String("note", msg))
	}

	// stage advances the machine, runs fn and records its timing.
	stage := func(name model.RunState, fn func() error) error {
		if err := sm.advance(name); err != nil {
			return err
		}

		start := time.Now()
		err := fn()
		duration := time.Since(start).Milliseconds()

		sr := model.StageResult{Name: name, Status: model.StageStatusComplete, Duration: duration}
		if err != nil {
			sr.Status = model.StageStatusFailed
			sr.Error = err.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", string(name)),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", string(name)),
				zap.Int64("duration_ms", duration),
			)
		}
		result.Stages = append(result.Stages, sr)
		return err
	}

	var (
		obs      model.ObservationRecord
		chosen   []model.ProductRecord
		active   model.RetrievedFile
		dataset  model.Dataset
		stageErr error
	)

	stageErr = stage(model.RunStateQuerying, func() error {
		if !q.DataType.Valid() {
			return model.NewStageError(model.ErrKindQuery, fmt.Sprintf("unsupported data type %q", q.DataType), nil)
		}
		observations, err := p.catalog.QueryObservations(ctx, q)
		if err != nil {
			return model.NewStageError(model.ErrKindQuery, "archive query failed", err)
		}
		if len(observations) == 0 {
			return model.NewStageError(model.ErrKindNoObservations,
				fmt.Sprintf("No observations found for %s", q.Target), nil)
		}
		result.ObservationCount = len(observations)
		note(fmt.Sprintf("Found %d observations", len(observations)))

		picked, ok := p.policy.Observation.Pick(observations)
		if !ok {
			return model.NewStageError(model.ErrKindNoObservations, "no observation selected", nil)
		}
		obs = picked
		result.Observation = &obs
		return nil
	})
	if stageErr != nil {
		return p.fail(ctx, run, sm, stageErr)
	}

	stageErr = stage(model.RunStateSelecting, func() error {
		products, err := p.catalog.ListProducts(ctx, obs)
		if err != nil {
			return model.NewStageError(model.ErrKindQuery, "product list query failed", err)
		}
		var label string
		chosen, label = selector.Select(products, q.DataType)
		result.ProductLabel = label
		if len(chosen) == 0 {
			return model.NewStageError(model.ErrKindNoMatchingProduct, fmt.Sprintf("No %s found", label), nil)
		}
		result.Products = chosen
		return nil
	})
	if stageErr != nil {
		return p.fail(ctx, run, sm, stageErr)
	}

	stageErr = stage(model.RunStateRetrieving, func() error {
		files, err := p.retriever.Retrieve(ctx, chosen)
		if err != nil {
			return model.NewStageError(model.ErrKindRetrieval, "Failed to download data", err)
		}
		for _, f := range files {
			result.Files = append(result.Files, f.Path)
		}
		picked, ok := p.policy.File.Pick(files)
		if !ok {
			return model.NewStageError(model.ErrKindRetrieval, "no file was retrieved", nil)
		}
		active = picked
		result.ActiveFile = active.Path
		return nil
	})
	if stageErr != nil {
		return p.fail(ctx, run, sm, stageErr)
	}

	stageErr = stage(model.RunStateExtracting, func() error {
		ds, err := p.inspector.Extract(active.Path, q.DataType)
		if err != nil {
			if _, ok := model.AsStageError(err); ok {
				return err
			}
			return model.NewStageError(model.ErrKindContainerParse, "cannot read "+active.Path, err)
		}
		dataset = ds
		result.Dataset = model.Summarize(ds)
		return nil
	})
	if stageErr != nil {
		return p.fail(ctx, run, sm, stageErr)
	}

	stageErr = stage(model.RunStateRendering, func() error {
		instrument := q.Instrument
		if instrument == "" {
			instrument = obs.Instrument
		}
		out := render.New(p.presenter, p.renderOpts...).Render(ctx, dataset, render.Context{
			Target:     q.Target,
			Instrument: instrument,
		})
		result.Notes = append(result.Notes, out.Notes...)
		result.Warnings = append(result.Warnings, out.Warnings...)
		result.Metrics = out.Metrics
		return nil
	})
	if stageErr != nil {
		return run, eris.Wrap(stageErr, "pipeline: render")
	}

	if err := sm.advance(model.RunStateDone); err != nil {
		return run, err
	}
	run.UpdatedAt = time.Now().UTC()
	if p.store != nil {
		if err := p.store.CompleteRun(ctx, run.ID, result); err != nil {
			log.Warn("pipeline: failed to record result", zap.Error(err))
		}
	}
	log.Info("pipeline: run complete",
		zap.String("product_label", result.ProductLabel),
		zap.String("file", result.ActiveFile),
		zap.Int("warnings", len(result.Warnings)),
	)
	return run, nil
}

// fail moves the run to failed, presents the cause and records it.
func (p *Pipeline) fail(ctx context.Context, run *model.Run, sm *machine, err error) (*model.Run, error) {
	se, ok := model.AsStageError(err)
	if !ok {
		// Transition errors are programming mistakes; surface them as-is.
		return run, err
	}
	if se.Stage == "" {
		se.Stage = sm.state
	}

	category := model.ErrorCategoryPermanent
	if se.Kind == model.ErrKindQuery || se.Kind == model.ErrKindRetrieval {
		category = resilience.Categorize(se)
	}

	if tErr := sm.advance(model.RunStateFailed); tErr != nil {
		return run, eris.Wrap(tErr, se.Error())
	}
	run.UpdatedAt = time.Now().UTC()
	run.Error = &model.RunError{
		Kind:     se.Kind,
		Stage:    se.Stage,
		Message:  render.NewErrorReport(se).Message,
		Category: category,
		Details:  se.Extensions,
	}

	log := zap.L().With(zap.String("run_id", run.ID))
	if pErr := p.presenter.Error(ctx, render.NewErrorReport(se)); pErr != nil {
		log.Warn("pipeline: failed to present error", zap.Error(pErr))
	}
	if p.store != nil {
		if sErr := p.store.FailRun(ctx, run.ID, run.Error, run.Result); sErr != nil {
			log.Warn("pipeline: failed to record failure", zap.Error(sErr))
		}
	}
	log.Warn("pipeline: run failed",
		zap.String("kind", string(se.Kind)),
		zap.String("stage", string(se.Stage)),
		zap.String("category", string(category)),
	)
	return run, se
}
