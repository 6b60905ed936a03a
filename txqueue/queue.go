// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txqueue

import (
	"sync"

	"github.com/luxfi/geth/log"

	"github.com/luxfi/dataworker/interfaces"
)

var _ interfaces.TransactionQueue = (*Queue)(nil)

// Queue is a fire-and-forget in-memory transaction sink shared across
// cycles. Double submission is safe-but-wasteful: the HubPool rejects
// duplicate proposals on-chain.
type Queue struct {
	mu     sync.Mutex
	txs    []interfaces.Transaction
	logger log.Logger
}

// New returns an empty queue.
func New(logger log.Logger) *Queue {
	return &Queue{logger: logger}
}

// Enqueue appends a transaction for submission.
func (q *Queue) Enqueue(tx interfaces.Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.txs = append(q.txs, tx)
	q.logger.Info("Enqueued transaction", "contract", tx.Contract, "method", tx.Method, "message", tx.Message)
	return nil
}

// Drain removes and returns all queued transactions.
func (q *Queue) Drain() []interfaces.Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	txs := q.txs
	q.txs = nil
	return txs
}

// Len returns the number of queued transactions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.txs)
}
