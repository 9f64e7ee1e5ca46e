package domain

import "time"

// FileReport summarizes one session file consumed by the combiner.
type FileReport struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Rows   int    `json:"rows"`
	Chunks int    `json:"chunks"`
}

// CombineReport describes a completed combine run.
type CombineReport struct {
	OutputFile     string        `json:"output_file"`
	Header         []string      `json:"header"`
	Files          []FileReport  `json:"files"`
	FilesProcessed int           `json:"files_processed"`
	RowsWritten    int           `json:"rows_written"`
	ChunksWritten  int           `json:"chunks_written"`
	ChunkSize      int           `json:"chunk_size"`
	PeakChunkRows  int           `json:"peak_chunk_rows"`
	Duration       time.Duration `json:"duration"`
}

// SelectReport describes a completed feature selection run.
type SelectReport struct {
	InputFile   string        `json:"input_file"`
	OutputFile  string        `json:"output_file,omitempty"`
	RowsRead    int           `json:"rows_read"`
	RowsDropped int           `json:"rows_dropped"`
	RowsKept    int           `json:"rows_kept"`
	Duration    time.Duration `json:"duration"`
}
