package ports

const (
	// SubmitDispatchBatchSize caps how many pending orders one dispatcher
	// tick picks up.
	SubmitDispatchBatchSize = 100
)
