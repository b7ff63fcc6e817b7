package assignment

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
	"github.com/veesix-networks/dhcp6d/pkg/provider"
)

func init() {
	Register("csv", NewCSV)
}

// CSVSource serves assignments from a file with the columns id, address and
// prefix. A first row starting with "id" is treated as a header and lines
// starting with '#' are comments.
type CSVSource struct {
	path    string
	entries map[string]Assignment
	mu      sync.RWMutex
	log     *slog.Logger
}

func NewCSV(cfg config.Assignments) (Source, error) {
	s := &CSVSource{
		path: cfg.Path,
		log:  logger.Get(logger.Assignment),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVSource) Info() provider.Info {
	return provider.Info{
		Name:    "csv",
		Version: "1.0.0",
		Author:  "dhcp6d",
	}
}

// Reload re-reads the file. The old entries stay in place if it fails.
func (s *CSVSource) Reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open assignments file: %w", err)
	}
	defer f.Close()

	entries, err := readCSV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.log.Info("Loaded static assignments", "path", s.path, "entries", len(entries))
	return nil
}

func readCSV(r io.Reader) (map[string]Assignment, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	entries := make(map[string]Assignment)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "id") {
			continue
		}
		if len(record) < 2 || len(record) > 3 {
			return nil, fmt.Errorf("record %d: want 2 or 3 fields, got %d", line, len(record))
		}

		key, err := NormalizeKey(record[0])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		prefix := ""
		if len(record) == 3 {
			prefix = record[2]
		}
		a, err := parseEntry(record[1], prefix)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		if err := validateEntry(a); err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		if _, dup := entries[key]; dup {
			return nil, fmt.Errorf("record %d: duplicate id %s", line, key)
		}
		entries[key] = a
	}
	return entries, nil
}

func (s *CSVSource) Assignment(ctx context.Context, b *transaction.Bundle) (Assignment, error) {
	return resolve(ctx, b, s.lookup)
}

func (s *CSVSource) lookup(_ context.Context, key string) (Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.entries[key]
	return a, ok, nil
}

func (s *CSVSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *CSVSource) Close() error {
	return nil
}
