package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/FranksOps/serpwalk/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// headers defines the CSV column order
var headers = []string{"Date", "Time", "Query", "Title", "URL"}

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
	loc  *time.Location
}

// Option customises the CSV backend.
type Option func(*csvBackend)

// WithLocation renders the Date and Time columns in loc. Default time.Local.
func WithLocation(loc *time.Location) Option {
	return func(b *csvBackend) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// New creates a CSV-backed storage.Backend appending to filePath. The header
// row is written only when the file is empty.
func New(filePath string, opts ...Option) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	b := &csvBackend{file: f, loc: time.Local}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *csvBackend) Save(ctx context.Context, record *storage.Record) error {
	at := record.CreatedAt.In(b.loc)
	row := []string{
		at.Format(dateLayout),
		at.Format(timeLayout),
		record.Query,
		record.Title,
		record.URL,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek csv: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Query reads the file back. IDs are not stored; ranks are rebuilt from row
// order within rows sharing date, time and query. A row repeating the first
// result of its group starts a new sequence, which separates two runs of the
// same query within one second. A page listing its top result twice is split
// the same way.
func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek csv: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Record{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var (
		all     []*storage.Record
		lastKey string
		first   [2]string // title and url of the group's rank 1 row
		rank    int
	)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(row) != len(headers) {
			continue // skip malformed rows
		}

		createdAt, err := time.ParseInLocation(dateLayout+" "+timeLayout, row[0]+" "+row[1], b.loc)
		if err != nil {
			continue
		}

		key := row[0] + row[1] + "\x00" + row[2]
		result := [2]string{row[3], row[4]}
		if key != lastKey || result == first {
			lastKey, first, rank = key, result, 0
		}
		rank++

		all = append(all, &storage.Record{
			Query:     row[2],
			Rank:      rank,
			Title:     row[3],
			URL:       row[4],
			CreatedAt: createdAt,
		})
	}

	return storage.Select(all, filter), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
