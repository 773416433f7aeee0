package stage

import "fmt"

// Kind tags a pipeline stage.
type Kind int

const (
	KindMatch Kind = iota
	KindSort
	KindProject
	KindSkip
	KindLimit
	KindCount
)

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindSort:
		return "sort"
	case KindProject:
		return "project"
	case KindSkip:
		return "skip"
	case KindLimit:
		return "limit"
	case KindCount:
		return "count"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Stage is one step of an aggregation pipeline.
type Stage interface {
	Kind() Kind
}

type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

type SortKey struct {
	Field string
	Dir   Direction
}

type Match struct{ Cond MatchCondition }

type Sort struct{ Keys []SortKey }

type Project struct{ Fields []string }

type Skip struct{ N int64 }

type Limit struct{ N int64 }

// Count replaces the stream with a single document holding the number of
// input documents under Field.
type Count struct{ Field string }

func (Match) Kind() Kind   { return KindMatch }
func (Sort) Kind() Kind    { return KindSort }
func (Project) Kind() Kind { return KindProject }
func (Skip) Kind() Kind    { return KindSkip }
func (Limit) Kind() Kind   { return KindLimit }
func (Count) Kind() Kind   { return KindCount }
