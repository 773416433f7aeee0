package planner

import (
	"github.com/nonibytes/pipeq/pipeq/query"
	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

const (
	DefaultSortField  = "createdAt"
	DefaultPage       = int64(1)
	DefaultLimit      = int64(10000)
	DefaultCountField = "total"
)

// Options tunes compilation. Zero values fall back to the defaults above.
type Options struct {
	DefaultSortField string
	DefaultLimit     int64
	CountField       string
}

func (o Options) withDefaults() Options {
	if o.DefaultSortField == "" {
		o.DefaultSortField = DefaultSortField
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = DefaultLimit
	}
	if o.CountField == "" {
		o.CountField = DefaultCountField
	}
	return o
}

// Output is the result of compiling one set of query parameters.
type Output struct {
	Pipeline      stage.Pipeline
	CountPipeline stage.Pipeline
	Page          int64
	Limit         int64
	ExplainSteps  []string
	// Issues lists every problem found. Compilation never fails on them;
	// callers decide whether to reject the query.
	Issues []Issue
}

// Compiler turns query parameters into a pipeline
type Compiler struct {
	schema       storage.Schema
	opts         Options
	issues       []Issue
	explainSteps []string
}

// Compile compiles params against schema. It is pure: params and schema are
// only read, and each call builds fresh stages.
func Compile(schema storage.Schema, params query.Params, opts Options) *Output {
	c := &Compiler{schema: schema, opts: opts.withDefaults()}

	match := c.compileFilter(params)
	if term := params.Get(query.ParamSearch); term != "" {
		match = c.compileSearch(match, term)
	}
	sortStage := c.compileSort(params.Get(query.ParamSort))
	project, hasProject := c.compileProject(params.Get(query.ParamFields))
	page, limit := c.compilePagination(params.Get(query.ParamPage), params.Get(query.ParamLimit))

	p := make(stage.Pipeline, 0, 5)
	if !match.Empty() {
		p = append(p, stage.Match{Cond: match})
	}
	p = append(p, sortStage)
	if hasProject {
		p = append(p, project)
	}
	p = append(p, stage.Skip{N: skipFor(page, limit)}, stage.Limit{N: limit})

	return &Output{
		Pipeline:      p,
		CountPipeline: p.CountPipeline(c.opts.CountField),
		Page:          page,
		Limit:         limit,
		ExplainSteps:  c.explainSteps,
		Issues:        c.issues,
	}
}

func (c *Compiler) issue(is Issue) {
	for _, seen := range c.issues {
		if seen == is {
			return
		}
	}
	c.issues = append(c.issues, is)
}
