package stage

import "fmt"

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// data pipelines run Match?, Sort, Project?, Skip, Limit in this order.
var dataRank = map[Kind]int{
	KindMatch:   0,
	KindSort:    1,
	KindProject: 2,
	KindSkip:    3,
	KindLimit:   4,
}

// Validate checks the shape of a data pipeline: at most one stage of each
// kind in fixed order, a Sort, and a trailing Skip/Limit pair.
func (p Pipeline) Validate() error {
	last := -1
	seen := map[Kind]bool{}
	for i, s := range p {
		if s == nil {
			return fmt.Errorf("stage %d is nil", i)
		}
		rank, ok := dataRank[s.Kind()]
		if !ok {
			return fmt.Errorf("stage %d: %s not allowed in a data pipeline", i, s.Kind())
		}
		if rank <= last {
			return fmt.Errorf("stage %d: %s out of order", i, s.Kind())
		}
		last = rank
		seen[s.Kind()] = true
	}
	if !seen[KindSort] {
		return fmt.Errorf("missing sort stage")
	}
	if !seen[KindSkip] || !seen[KindLimit] {
		return fmt.Errorf("skip and limit must both be present")
	}
	if n, _ := p.Skip(); n < 0 {
		return fmt.Errorf("negative skip %d", n)
	}
	if n, _ := p.Limit(); n <= 0 {
		return fmt.Errorf("non-positive limit %d", n)
	}
	return nil
}

// ValidateCount checks the shape of a count pipeline: the data stages minus
// Skip/Limit, followed by exactly one Count.
func (p Pipeline) ValidateCount() error {
	if len(p) == 0 {
		return fmt.Errorf("empty count pipeline")
	}
	last := -1
	for i, s := range p[:len(p)-1] {
		if s == nil {
			return fmt.Errorf("stage %d is nil", i)
		}
		rank, ok := dataRank[s.Kind()]
		if !ok || s.Kind() == KindSkip || s.Kind() == KindLimit {
			return fmt.Errorf("stage %d: %s not allowed in a count pipeline", i, s.Kind())
		}
		if rank <= last {
			return fmt.Errorf("stage %d: %s out of order", i, s.Kind())
		}
		last = rank
	}
	c, ok := p[len(p)-1].(Count)
	if !ok {
		return fmt.Errorf("count pipeline must end with a count stage")
	}
	if c.Field == "" {
		return fmt.Errorf("count stage needs a field name")
	}
	return nil
}

// CountPipeline derives the count pipeline: p without Skip/Limit, plus a
// trailing Count into field. p is not modified.
func (p Pipeline) CountPipeline(field string) Pipeline {
	out := make(Pipeline, 0, len(p)+1)
	for _, s := range p {
		switch s.Kind() {
		case KindSkip, KindLimit, KindCount:
			continue
		case KindMatch:
			out = append(out, Match{Cond: s.(Match).Cond.Clone()})
		default:
			out = append(out, s)
		}
	}
	return append(out, Count{Field: field})
}

func (p Pipeline) find(k Kind) (Stage, bool) {
	for _, s := range p {
		if s.Kind() == k {
			return s, true
		}
	}
	return nil, false
}

func (p Pipeline) Match() (MatchCondition, bool) {
	s, ok := p.find(KindMatch)
	if !ok {
		return MatchCondition{}, false
	}
	return s.(Match).Cond, true
}

func (p Pipeline) Sort() (Sort, bool) {
	s, ok := p.find(KindSort)
	if !ok {
		return Sort{}, false
	}
	return s.(Sort), true
}

func (p Pipeline) Project() (Project, bool) {
	s, ok := p.find(KindProject)
	if !ok {
		return Project{}, false
	}
	return s.(Project), true
}

func (p Pipeline) Skip() (int64, bool) {
	s, ok := p.find(KindSkip)
	if !ok {
		return 0, false
	}
	return s.(Skip).N, true
}

func (p Pipeline) Limit() (int64, bool) {
	s, ok := p.find(KindLimit)
	if !ok {
		return 0, false
	}
	return s.(Limit).N, true
}

func (p Pipeline) Count() (Count, bool) {
	s, ok := p.find(KindCount)
	if !ok {
		return Count{}, false
	}
	return s.(Count), true
}

// Kinds lists the stage kinds in order.
func (p Pipeline) Kinds() []Kind {
	out := make([]Kind, len(p))
	for i, s := range p {
		out[i] = s.Kind()
	}
	return out
}
