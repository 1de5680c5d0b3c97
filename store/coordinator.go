package store

import (
	"context"
	"database/sql"
	"fmt"

	"objectstore/logger"
	"objectstore/models"
)

// Coordinator is the Request Coordinator: it wraps every request handler
// in a single database transaction, so a store/tag mutation and its tag
// snapshot refresh are always committed or rolled back together.
type Coordinator struct {
	engine *Engine
}

// NewCoordinator returns a Coordinator driving engine.
func NewCoordinator(engine *Engine) *Coordinator {
	return &Coordinator{engine: engine}
}

// Engine returns the Coordinator's underlying Engine, for handlers that
// need engine-level helpers outside of a WithTransaction call.
func (c *Coordinator) Engine() *Engine {
	return c.engine
}

// WithTransaction opens a transaction against the Coordinator's database,
// runs fn with it, and commits on success or rolls back on any error
// (including a panic, which is re-raised after rollback). This is the
// scope every HTTP handler runs inside: auth happens before it, the
// transaction brackets exactly one request's worth of engine calls.
func (c *Coordinator) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := c.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", models.ErrInternal, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Warn("rollback failed after error %v: %v", err, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("%w: commit transaction: %v", models.ErrInternal, cErr)
		}
	}()

	err = fn(tx)
	return err
}
