package pipeline

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. A stage that records errors stops the run; the
// first error of a phase is fatal for the whole compilation.
func (p *Pipeline) Run(initialCtx *Context) *Context {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		if ctx.HasErrors() {
			return ctx
		}
	}
	return ctx
}
