package filtergraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStageOrder is returned when a stage is appended after a stage that
	// must follow it.
	ErrStageOrder = errors.New("filter stage out of order")
	// ErrStageDomain is returned when an audio stage is appended to a video
	// chain or the reverse.
	ErrStageDomain = errors.New("filter stage in wrong chain")
	// ErrUnknownStage is returned for stages outside the known set.
	ErrUnknownStage = errors.New("unknown filter stage")
)

// Op is one compiled filter expression tagged with its stage.
type Op struct {
	Stage Stage
	Expr  string
}

// Chain is an ordered list of ops for one stream. The zero value is not usable;
// use NewChain.
type Chain struct {
	domain Domain
	ops    []Op
}

// NewChain creates an empty chain for a stream.
func NewChain(domain Domain) *Chain {
	return &Chain{domain: domain}
}

// Append adds an op. Stages must arrive in precedence order; repeated stages
// are allowed and keep their relative order.
func (c *Chain) Append(stage Stage, expr string) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStage, int(stage))
	}
	if stage.Domain() != c.domain {
		return fmt.Errorf("%w: %s stage %s in %s chain", ErrStageDomain, stage.Domain(), stage, c.domain)
	}
	if n := len(c.ops); n > 0 && stage < c.ops[n-1].Stage {
		return fmt.Errorf("%w: %s after %s", ErrStageOrder, stage, c.ops[n-1].Stage)
	}
	c.ops = append(c.ops, Op{Stage: stage, Expr: expr})
	return nil
}

// Ops returns a copy of the chain's ops.
func (c *Chain) Ops() []Op {
	return append([]Op(nil), c.ops...)
}

// Stages returns the stage of each op in order.
func (c *Chain) Stages() []Stage {
	out := make([]Stage, len(c.ops))
	for i, op := range c.ops {
		out[i] = op.Stage
	}
	return out
}

// Len returns the number of ops.
func (c *Chain) Len() int {
	return len(c.ops)
}

// String joins the chain into an ffmpeg filter chain. An empty chain is a
// passthrough.
func (c *Chain) String() string {
	if len(c.ops) == 0 {
		if c.domain == DomainAudio {
			return "anull"
		}
		return "null"
	}
	exprs := make([]string, len(c.ops))
	for i, op := range c.ops {
		exprs[i] = op.Expr
	}
	return strings.Join(exprs, ",")
}
