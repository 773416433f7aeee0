package pipeq

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type BatchOpKind int

const (
	batchInsert BatchOpKind = iota
	batchDelete
)

type BatchOp struct {
	Kind BatchOpKind
	Doc  Document // for insert
	ID   string   // for delete
}

// Batch queues inserts and deletes for one collection
type Batch struct {
	ops []BatchOp
}

func NewBatch() Batch {
	return Batch{ops: make([]BatchOp, 0)}
}

func (b *Batch) InsertJSON(doc []byte) error {
	d, err := decodeDocument(doc)
	if err != nil {
		return err
	}
	b.ops = append(b.ops, BatchOp{Kind: batchInsert, Doc: d})
	return nil
}

func (b *Batch) Insert(doc Document) {
	b.ops = append(b.ops, BatchOp{Kind: batchInsert, Doc: doc})
}

func (b *Batch) Delete(id string) error {
	if id == "" {
		return New(ErrSchema, "id cannot be empty")
	}
	b.ops = append(b.ops, BatchOp{Kind: batchDelete, ID: id})
	return nil
}

func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) Empty() bool {
	return len(b.ops) == 0
}

// Apply runs the queued operations in order and returns how many
// succeeded. It stops at the first failure.
func (c *Collection) Apply(ctx context.Context, b Batch) (int, error) {
	done := 0
	for i, op := range b.ops {
		if err := ctx.Err(); err != nil {
			return done, Wrap(ErrIO, "batch cancelled", err)
		}
		switch op.Kind {
		case batchInsert:
			if _, err := c.Insert(ctx, op.Doc); err != nil {
				return done, fmt.Errorf("batch op %d: %w", i, err)
			}
		case batchDelete:
			if _, err := c.Delete(ctx, op.ID); err != nil {
				return done, fmt.Errorf("batch op %d: %w", i, err)
			}
		}
		done++
	}
	c.log.Debug("batch applied", zap.Int("ops", done))
	return done, nil
}
