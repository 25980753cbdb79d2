package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
)

// Processor extracts fields from one document
type Processor interface {
	ProcessDocument(ctx context.Context, location string) (*model.DocumentReport, error)
}

// DocumentJob represents one document to process
type DocumentJob struct {
	Location  string
	Processor Processor
	Limiter   *Limiter
	OnDone    func(*DocumentResult)
}

// Execute executes the document job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	res := &DocumentResult{Location: j.Location}
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Location); err != nil {
			res.Error = err
			j.done(res)
			return res
		}
	}

	report, err := j.Processor.ProcessDocument(ctx, j.Location)
	if err != nil {
		res.Error = err
	} else {
		res.Report = report
	}
	j.done(res)
	return res
}

func (j *DocumentJob) done(res *DocumentResult) {
	if j.OnDone != nil {
		j.OnDone(res)
	}
}

// DocumentResult represents the result of a document job
type DocumentResult struct {
	Location string
	Report   *model.DocumentReport
	Error    error
}

// GetError returns the error from the document result
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor processes multiple documents concurrently.
// A failing document is reported in its result and never stops the batch.
type BatchProcessor struct {
	processor   Processor
	concurrency int
	limiter     *Limiter
	onDone      func(*DocumentResult)
}

// NewBatchProcessor creates a new batch processor. Remote fetches are limited
// to requestsPerSecond per host; 0 disables the limit.
func NewBatchProcessor(processor Processor, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
		limiter:     NewLimiter(requestsPerSecond, burst),
	}
}

// OnDone registers a callback invoked as each document finishes. It may be
// called from several goroutines at once.
func (b *BatchProcessor) OnDone(fn func(*DocumentResult)) {
	b.onDone = fn
}

// ProcessDocuments processes documents concurrently; results keep input order
func (b *BatchProcessor) ProcessDocuments(ctx context.Context, locations []string) []*DocumentResult {
	if len(locations) == 0 {
		return []*DocumentResult{}
	}

	jobs := make([]Job, len(locations))
	for i, loc := range locations {
		jobs[i] = &DocumentJob{
			Location:  loc,
			Processor: b.processor,
			Limiter:   b.limiter,
			OnDone:    b.onDone,
		}
	}

	results := Run(ctx, b.concurrency, jobs)

	out := make([]*DocumentResult, len(locations))
	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("not processed")
			}
			out[i] = &DocumentResult{Location: locations[i], Error: err}
			continue
		}
		out[i] = r.(*DocumentResult)
	}
	return out
}

// ProcessFile reads locations from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*DocumentResult, error) {
	locations, err := ReadLocationsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read locations: %w", err)
	}

	return b.ProcessDocuments(ctx, locations), nil
}

// ReadLocationsFromFile reads document paths or URIs from a file (one per line)
func ReadLocationsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var locations []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			locations = append(locations, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return locations, nil
}
