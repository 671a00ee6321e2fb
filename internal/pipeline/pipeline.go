// Package pipeline expands a batch of files into (file x template) jobs and drives each of them
// through decode, compose and encode on a bounded worker pool.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/UnendingLoop/PicDeck/internal/imageproc"
	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/mwlogger"
)

type Processor struct {
	workers      int
	legacyNaming bool
	render       renderFunc
}

type renderFunc func(src []byte, tpl model.Template, opts *model.ProcessingOptions) ([]byte, string, error)

type Option func(*Processor)

// WithWorkers bounds the number of jobs held in memory at once. n <= 0 keeps the default.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLegacyNaming switches base names to first-dot truncation.
func WithLegacyNaming(on bool) Option {
	return func(p *Processor) {
		p.legacyNaming = on
	}
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		workers: runtime.NumCPU(),
		render:  imageproc.Render,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Expand builds jobs in row-major order: files outer, effective templates inner.
func Expand(files []model.SourceFile, opts *model.ProcessingOptions) []model.Job {
	templates := opts.EffectiveTemplates()
	jobs := make([]model.Job, 0, len(files)*len(templates))

	for i := range files {
		for _, tpl := range templates {
			jobs = append(jobs, model.Job{
				Index:    len(jobs),
				Source:   &files[i],
				Template: tpl,
				Options:  opts,
			})
		}
	}

	return jobs
}

// Run processes every job and returns the results in expansion order. Job failures are
// recorded in JobResult.Err and never stop the batch. On cancellation no job is started
// anymore and all results are discarded.
func (p *Processor) Run(ctx context.Context, files []model.SourceFile, opts *model.ProcessingOptions) ([]model.JobResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	started := time.Now()

	jobs := Expand(files, opts)
	names := OutputNames(jobs, opts.Extension(), p.legacyNaming)
	results := make([]model.JobResult, len(jobs))

	logger.Info().Int("files", len(files)).Int("jobs", len(jobs)).Int("workers", p.workers).Msg("Batch started")

	queue := make(chan int)
	var wg sync.WaitGroup
	for range min(p.workers, len(jobs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				// каждый воркер пишет только в свой индекс - блокировки не нужны
				results[i] = p.runJob(jobs[i], names[i])
			}
		}()
	}

dispatch:
	for i := range jobs {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- i:
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn().Err(err).Msg("Batch cancelled, results discarded")
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.OK() {
			logger.Debug().Str("output", r.OutputName).Int("bytes", len(r.Data)).Msg("Job done")
			continue
		}
		failed++
		logger.Warn().Err(r.Err).
			Str("file", r.FileName).
			Str("template", r.Template.Name).
			Str("kind", string(model.KindOf(r.Err))).
			Msg("Job failed")
	}

	logger.Info().Int("jobs", len(results)).Int("failed", failed).Dur("took", time.Since(started)).Msg("Batch finished")

	return results, nil
}

func (p *Processor) runJob(job model.Job, name string) (res model.JobResult) {
	res = model.JobResult{
		Index:      job.Index,
		OutputName: name,
		FileName:   job.Source.Name,
		Template:   job.Template,
	}

	defer func() {
		if r := recover(); r != nil {
			res.Data, res.ContentType = nil, ""
			res.Err = fmt.Errorf("job %q panicked: %v", name, r)
		}
	}()

	data, cType, err := p.render(job.Source.Data, job.Template, job.Options)
	if err != nil {
		res.Err = err
		return res
	}

	res.Data = data
	res.ContentType = cType
	return res
}
