package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"emlak-ingest/models"
)

// CSVWriter appends newly discovered listings to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var discoveryHeader = []string{
	"discovered_at", "user_id", "portal", "source_id", "title", "price", "currency",
	"district", "neighborhood", "url", "provenance", "customer_id", "rule_id",
}

// NewCSVWriter opens (or creates) the CSV file at the given path, writing the
// header row when the file is new. Intermediate directories are created
// automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(discoveryHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteDiscoveries appends one row per discovery.
func (c *CSVWriter) WriteDiscoveries(discoveries []models.Discovery) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range discoveries {
		p := d.Preview
		row := []string{
			d.DiscoveredAt.Format(time.RFC3339),
			d.UserID,
			string(d.Portal),
			p.SourceID,
			p.Title,
			strconv.FormatFloat(p.Price.Amount, 'f', -1, 64),
			p.Price.Currency,
			p.Location.District,
			p.Location.Neighborhood,
			p.SourceURL,
			string(d.Criteria.Provenance),
			d.Criteria.CustomerID,
			d.Criteria.RuleID,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
