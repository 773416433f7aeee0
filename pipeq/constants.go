package pipeq

import "github.com/nonibytes/pipeq/pipeq/planner"

const (
	DefaultSortField  = planner.DefaultSortField
	DefaultLimit      = planner.DefaultLimit
	DefaultCountField = planner.DefaultCountField
	DefaultBatchSize  = 500
)
