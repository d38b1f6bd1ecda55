// Package pipeline runs one scrape: acquire a browser session, extract
// articles, translate their titles, analyze the translations and report,
// releasing the session on every path out.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/opinions/analysis"
	"github.com/pevans/opinions/article"
	"github.com/pevans/opinions/browser"
	"github.com/pevans/opinions/logger"
	"github.com/pevans/opinions/output"
	"github.com/pevans/opinions/report"
	"github.com/pevans/opinions/translate"
)

// SessionFactory acquires browser sessions.
type SessionFactory interface {
	Acquire(ctx context.Context, opts browser.Options) (browser.Session, error)
}

// Extractor produces articles from a listing page or a feed.
type Extractor interface {
	Extract(ctx context.Context, session browser.Session, listingURL string, limit int) ([]article.Article, error)
	ExtractFromFeed(ctx context.Context, session browser.Session, feedURL string, limit int) ([]article.Article, error)
}

// Translator translates titles, one result per title.
type Translator interface {
	TranslateTitles(ctx context.Context, titles []string) []article.Result[string]
}

// Analyzer counts recurring words.
type Analyzer interface {
	Analyze(titles []string) []analysis.Entry
}

// ImageSink persists downloaded images.
type ImageSink interface {
	Flush(articles []article.Article) *output.FlushResult
	Dir() string
}

// Options describe one run.
type Options struct {
	ListingURL string
	// FeedURL, when set, replaces the listing page for link discovery.
	FeedURL        string
	MaxArticles    int
	Browser        browser.Options
	MinOccurrences int
	// ReportPath, when set, receives the JSON report.
	ReportPath string
}

// Deps are the components a pipeline drives.
type Deps struct {
	Factory    SessionFactory
	Extractor  Extractor
	Translator Translator
	Analyzer   Analyzer
	Sink       ImageSink
	// Console receives the human-readable report. Nil discards it.
	Console io.Writer
	Logger  logger.Logger
	// OnTransition is called after every state change.
	OnTransition func(from, to State)
}

// Pipeline wires the components together.
type Pipeline struct {
	opts Options
	deps Deps
	log  logger.Logger
	now  func() time.Time
}

// New creates a pipeline.
func New(opts Options, deps Deps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Console == nil {
		deps.Console = io.Discard
	}
	return &Pipeline{opts: opts, deps: deps, log: log, now: time.Now}
}

// run tracks a single execution.
type run struct {
	p     *Pipeline
	state State
	rep   *report.Report
	log   logger.Logger
}

func (r *run) transition(next State) {
	if !r.state.CanTransition(next) {
		// Programming error; the sequence in Run is fixed.
		panic(fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, r.state, next))
	}
	prev := r.state
	r.state = next
	r.rep.State = string(next)
	r.log.Debug("State changed", logger.String("from", string(prev)), logger.String("to", string(next)))
	if r.p.deps.OnTransition != nil {
		r.p.deps.OnTransition(prev, next)
	}
}

// fail moves the run to Failed and wraps err with the stage it was trying
// to reach.
func (r *run) fail(stage State, err error) error {
	stageErr := &StageError{Stage: stage, Err: err}
	r.transition(StateFailed)
	r.rep.Error = stageErr.Error()
	r.rep.FinishedAt = r.p.now()
	r.log.Error("Run failed", logger.String("stage", string(stage)), logger.Error(err))
	return stageErr
}

// Run executes the pipeline. It returns the report and, when the run ended
// in Failed, a *StageError. Recoverable per-article problems are recorded
// on the articles and never fail the run. Images and the JSON report are
// only written once the run reaches Reported.
func (p *Pipeline) Run(ctx context.Context) (*report.Report, error) {
	r := &run{
		p:     p,
		state: StateInit,
		rep: &report.Report{
			RunID:          uuid.New(),
			StartedAt:      p.now(),
			Browser:        string(p.opts.Browser.Kind),
			Headless:       p.opts.Browser.Headless,
			Mobile:         p.opts.Browser.Mobile,
			ListingURL:     p.opts.ListingURL,
			State:          string(StateInit),
			MinOccurrences: p.opts.MinOccurrences,
		},
	}
	r.log = p.log.With(logger.String("run_id", r.rep.RunID.String()))
	if p.opts.FeedURL != "" {
		r.rep.ListingURL = p.opts.FeedURL
	}

	r.log.Info("Starting run",
		logger.String("browser", r.rep.Browser),
		logger.String("listing", r.rep.ListingURL),
		logger.Int("max_articles", p.opts.MaxArticles),
	)

	session, err := p.deps.Factory.Acquire(ctx, p.opts.Browser)
	if err != nil {
		return r.rep, r.fail(StateSessionAcquired, err)
	}
	r.transition(StateSessionAcquired)

	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			r.log.Warn("Failed to release browser session", logger.Error(closeErr))
		}
		if r.state == StateReported {
			r.transition(StateClosed)
		}
	}()

	articles, err := p.extract(ctx, session)
	if err != nil {
		return r.rep, r.fail(StateExtracted, err)
	}
	r.rep.Articles = articles
	r.transition(StateExtracted)

	results := p.deps.Translator.TranslateTitles(ctx, translate.Titles(articles))
	if err := ctx.Err(); err != nil {
		return r.rep, r.fail(StateTranslated, err)
	}
	if err := translate.Apply(articles, results); err != nil {
		return r.rep, r.fail(StateTranslated, err)
	}
	r.transition(StateTranslated)

	r.rep.Frequencies = p.deps.Analyzer.Analyze(TranslatedTitles(articles))
	r.transition(StateAnalyzed)

	if err := ctx.Err(); err != nil {
		return r.rep, r.fail(StateReported, err)
	}
	r.transition(StateReported)
	r.rep.FinishedAt = p.now()
	p.publish(r)

	r.log.Info("Run finished",
		logger.Int("articles", len(articles)),
		logger.Int("translated", r.rep.Translated()),
		logger.Int("frequent_words", len(r.rep.Frequencies)),
	)
	return r.rep, nil
}

func (p *Pipeline) extract(ctx context.Context, session browser.Session) ([]article.Article, error) {
	if p.opts.FeedURL != "" {
		return p.deps.Extractor.ExtractFromFeed(ctx, session, p.opts.FeedURL, p.opts.MaxArticles)
	}
	return p.deps.Extractor.Extract(ctx, session, p.opts.ListingURL, p.opts.MaxArticles)
}

// publish writes the Reported artifacts: images, the console report and the
// optional JSON report. Failures here are logged; the run has already
// produced its result.
func (p *Pipeline) publish(r *run) {
	if p.deps.Sink != nil {
		r.rep.ImageDir = p.deps.Sink.Dir()
		p.deps.Sink.Flush(r.rep.Articles)
	}

	report.Render(p.deps.Console, r.rep)

	if p.opts.ReportPath != "" {
		if err := output.WriteJSON(p.opts.ReportPath, r.rep); err != nil {
			r.log.Error("Failed to write JSON report", logger.String("path", p.opts.ReportPath), logger.Error(err))
		} else {
			r.log.Info("JSON report written", logger.String("path", p.opts.ReportPath))
		}
	}
}

// TranslatedTitles returns the translated titles of articles, skipping
// untranslated ones so the analysis only sees the target language.
func TranslatedTitles(articles []article.Article) []string {
	var titles []string
	for i := range articles {
		if articles[i].TranslatedTitle != nil {
			titles = append(titles, *articles[i].TranslatedTitle)
		}
	}
	return titles
}
