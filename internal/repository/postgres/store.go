package postgres

import "database/sql"

// Store bundles every repository over one connection pool.
type Store struct {
	Performance  *PerformanceRepo
	Funnel       *FunnelRepo
	Quality      *QualityRepo
	BidFiltering *BidFilteringRepo
	Batches      *BatchRepo
	Summaries    *SummaryRepo
	Queue        *QueueRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		Performance:  NewPerformanceRepo(db),
		Funnel:       NewFunnelRepo(db),
		Quality:      NewQualityRepo(db),
		BidFiltering: NewBidFilteringRepo(db),
		Batches:      NewBatchRepo(db),
		Summaries:    NewSummaryRepo(db),
		Queue:        NewQueueRepo(db),
	}
}
