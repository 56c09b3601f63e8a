package domain

import "context"

// SplitterPort is the public port of the split module
type SplitterPort interface {
	Split(ctx context.Context, inputPath string) (Result, error)
}

// PartitionWriter appends rendered records to the current file of their group
type PartitionWriter interface {
	Append(key string, header []byte, record string) error
	FilesCreated() int
	Close() error
}

// StatsRecorder counts accepted records
type StatsRecorder interface {
	CountryHit(key string)
	DateHit(key string)
	Snapshot() Snapshot
}
