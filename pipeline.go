package featurespace

import (
	"context"
	"fmt"
	"time"

	"github.com/cmunell/featurespace/config"
	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/featureset"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/persistence"
	"github.com/cmunell/featurespace/resource"
	"github.com/cmunell/featurespace/train"
)

// SectionConfig holds the configuration a model was trained with.
const SectionConfig = "config"

// Pipeline builds feature spaces from a configuration, trains models on them
// and persists the results. It is safe for concurrent use.
type Pipeline struct {
	cfg     *config.Config
	opts    options
	rc      *resource.Controller
	manager *persistence.Manager
}

// New creates a pipeline for cfg and opens its store.
func New(ctx context.Context, cfg *config.Config, optFns ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)

	rc := o.rc
	if rc == nil {
		rc = cfg.Resources.Controller()
	}
	store := o.store
	if store == nil {
		s, err := cfg.Storage.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store = s
	}

	return &Pipeline{
		cfg:  cfg,
		opts: o,
		rc:   rc,
		manager: persistence.NewManager(store,
			persistence.WithCompression(cfg.Storage.CompressionCodec()),
			persistence.WithResourceController(rc),
			persistence.WithLogger(o.logger.Logger),
		),
	}, nil
}

// Open loads the config file at path and creates a pipeline for it.
func Open(ctx context.Context, path string, optFns ...Option) (*Pipeline, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, optFns...)
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config { return p.cfg }

// Manager returns the document manager over the configured store.
func (p *Pipeline) Manager() *persistence.Manager { return p.manager }

func (p *Pipeline) featureSetOptions() []featureset.Option {
	return []featureset.Option{
		featureset.WithLogger(p.opts.logger.Logger),
		featureset.WithMaxWorkers(p.cfg.Workers),
		featureset.WithCacheCapacity(p.cfg.CacheCapacity),
		featureset.WithResourceController(p.rc),
		featureset.WithMetrics(p.opts.metrics),
		featureset.WithRegistry(p.opts.generators),
	}
}

// FeatureSet builds an unfitted feature set and the expansion rules from the
// configuration.
func (p *Pipeline) FeatureSet() (*featureset.FeatureSet, []grammar.Rule, error) {
	gens, rules, err := p.cfg.Build(p.opts.generators, p.opts.rules)
	if err != nil {
		return nil, nil, err
	}
	fs := featureset.New(p.featureSetOptions()...)
	for _, g := range gens {
		if err := fs.Add(g); err != nil {
			return nil, nil, err
		}
	}
	return fs, rules, nil
}

// Fit builds the feature set and fits it on ds.
func (p *Pipeline) Fit(ctx context.Context, ds *data.Dataset) (*featureset.FeatureSet, error) {
	start := time.Now()
	fs, _, err := p.FeatureSet()
	if err != nil {
		return nil, err
	}
	err = fs.Fit(ctx, ds)
	p.opts.logger.LogFit(ctx, len(fs.Generators()), fs.Size(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// Train fits the configured feature space on ds and trains a model. Two labels
// train one binary model, "true" being positive when present; more labels
// train one-vs-rest.
func (p *Pipeline) Train(ctx context.Context, ds *data.Dataset) (*Trained, error) {
	start := time.Now()
	labels := ds.Labels().Labels()
	t, err := p.train(ctx, ds, labels)
	p.opts.logger.LogTrain(ctx, len(labels), ds.Len(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	for _, l := range t.Labels() {
		m := t.model(l)
		expanded, derived := 0, 0
		if x := m.Expander(); x != nil {
			expanded = x.NumExpanded()
			derived = m.FeatureSet().Size() - x.PrimitiveSize()
		}
		p.opts.logger.LogExpansion(ctx, l.String(), expanded, derived, m.FeatureSet().Size())
		if t.Multi == nil {
			break
		}
	}
	return t, nil
}

func (p *Pipeline) train(ctx context.Context, ds *data.Dataset, labels []data.Label) (*Trained, error) {
	if len(labels) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewLabels, len(labels))
	}
	fs, rules, err := p.FeatureSet()
	if err != nil {
		return nil, err
	}
	tc := p.cfg.Training
	topts := []train.Option{
		train.WithLogger(p.opts.logger.Logger),
		train.WithMetrics(p.opts.metrics),
		train.WithResourceController(p.rc),
	}

	if len(labels) > 2 {
		mm, err := train.OneVsRest(ctx, fs, rules, ds, tc, topts...)
		if err != nil {
			return nil, err
		}
		return &Trained{Multi: mm}, nil
	}

	pos, neg := labels[0], labels[1]
	if neg == data.True {
		pos, neg = neg, pos
	}
	trainSet, eval := ds, train.Evaluator(nil)
	if p.cfg.Holdout > 0 {
		held, rest := ds.Split(p.cfg.Holdout, tc.Seed)
		if held.Len() > 0 && rest.Len() > 0 {
			trainSet, eval = rest, train.LogLikelihood(held)
		}
	}
	m, err := train.NewTrainer(fs, rules, tc, append(topts, train.WithLabels(pos, neg))...).Train(ctx, trainSet, eval)
	if err != nil {
		return nil, err
	}
	return &Trained{Binary: m}, nil
}

// Save writes t and the pipeline configuration under name.
func (p *Pipeline) Save(ctx context.Context, name string, t *Trained) error {
	doc := persistence.NewDocument(p.cfg.Storage.DocumentCodec())
	err := t.Save(doc)
	if err == nil {
		err = doc.Put(SectionConfig, p.cfg)
	}
	if err == nil {
		err = p.manager.Save(ctx, name, doc)
	}
	p.opts.logger.LogSave(ctx, name, len(doc.Sections()), err)
	return translateError("save", name, err)
}

// Load restores the model saved under name.
func (p *Pipeline) Load(ctx context.Context, name string) (*Trained, error) {
	doc, err := p.manager.Load(ctx, name)
	if err == nil {
		var t *Trained
		t, err = p.restore(doc)
		if err == nil {
			p.opts.logger.LogLoad(ctx, name, nil)
			return t, nil
		}
	}
	p.opts.logger.LogLoad(ctx, name, err)
	return nil, translateError("load", name, err)
}

func (p *Pipeline) restore(doc *persistence.Document) (*Trained, error) {
	opts := p.featureSetOptions()
	if train.IsMulti(doc) {
		mm, err := train.LoadMultiModel(doc, p.opts.generators, p.opts.rules, opts...)
		if err != nil {
			return nil, err
		}
		return &Trained{Multi: mm}, nil
	}
	m, err := train.LoadModel(doc, p.opts.generators, p.opts.rules, opts...)
	if err != nil {
		return nil, err
	}
	if !m.Fitted() {
		return nil, ErrNotTrained
	}
	return &Trained{Binary: m}, nil
}

// List returns the names of the models in the store.
func (p *Pipeline) List(ctx context.Context) ([]string, error) {
	return p.manager.List(ctx, "")
}

// Prediction is the classification of one example.
type Prediction struct {
	ID         int                    `json:"id"`
	Gold       data.Label             `json:"gold,omitempty"`
	Label      data.Label             `json:"label"`
	Posteriors map[data.Label]float64 `json:"posteriors"`
}

// Predict classifies every example of ds in parallel, in dataset order.
func (p *Pipeline) Predict(ctx context.Context, t *Trained, ds *data.Dataset) ([]Prediction, error) {
	return data.Map(ctx, ds, max(p.cfg.Workers, 1), func(_ context.Context, e *data.Example) (Prediction, error) {
		post := t.Posteriors(e)
		return Prediction{ID: e.ID, Gold: e.Label, Label: t.Classify(e), Posteriors: post}, nil
	})
}

// LabelSummary describes the model of one label.
type LabelSummary struct {
	Label    data.Label     `json:"label"`
	Features int            `json:"features"`
	Derived  int            `json:"derived"`
	Expanded int            `json:"expanded"`
	Bias     float64        `json:"bias"`
	Top      []train.Weight `json:"top"`
}

// Summary describes a stored model.
type Summary struct {
	Name     string         `json:"name"`
	Codec    string         `json:"codec"`
	Sections []string       `json:"sections"`
	Bytes    int            `json:"bytes"`
	Multi    bool           `json:"multi"`
	Labels   []LabelSummary `json:"labels"`
}

// Inspect loads the model saved under name and summarizes its n strongest
// features per label.
func (p *Pipeline) Inspect(ctx context.Context, name string, n int) (*Summary, error) {
	doc, err := p.manager.Load(ctx, name)
	if err != nil {
		return nil, translateError("inspect", name, err)
	}
	t, err := p.restore(doc)
	if err != nil {
		return nil, translateError("inspect", name, err)
	}
	s := &Summary{
		Name:     name,
		Codec:    doc.Codec().Name(),
		Sections: doc.Sections(),
		Bytes:    doc.Size(),
		Multi:    t.Multi != nil,
	}
	for _, l := range t.Labels() {
		m := t.model(l)
		ls := LabelSummary{Label: l, Features: m.FeatureSet().Size(), Bias: m.Bias(), Top: m.Weights()}
		if x := m.Expander(); x != nil {
			ls.Derived = ls.Features - x.PrimitiveSize()
			ls.Expanded = x.NumExpanded()
		}
		if n > 0 && len(ls.Top) > n {
			ls.Top = ls.Top[:n]
		}
		s.Labels = append(s.Labels, ls)
		if t.Multi == nil {
			break
		}
	}
	return s, nil
}
