package domain

// TransactionQueue is the producer side of the commit engine.
type TransactionQueue interface {
	Enqueue(transaction Transaction) error
	Depth() int
	Pending() int
	Running() bool
}

// QueueStats represents the state of the transaction queue
type QueueStats struct {
	QueueID    string `json:"queue_id"`
	Durability string `json:"durability"`
	Backend    string `json:"backend"`
	Depth      int    `json:"depth"`
	Pending    int    `json:"pending"`
	Running    bool   `json:"running"`
}
