package core

const (
	// AnalysisBatchSize is the default number of jobs popped per analysis cycle.
	AnalysisBatchSize = 10
	// AnalysisConcurrency is the default number of jobs analyzed in parallel.
	AnalysisConcurrency = 4

	// RecoveryBatchSize is the default number of stale submissions re-queued per cycle.
	RecoveryBatchSize = 100
)
