package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/chassis-cli/internal/fetch"
	"github.com/sells-group/chassis-cli/internal/store"
	"github.com/sells-group/chassis-cli/internal/table"
)

func newFetcher() *fetch.Fetcher {
	return fetch.New(fetch.Options{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RateLimit:  rate.Limit(cfg.Fetch.RateLimit),
		Burst:      cfg.Fetch.Burst,
	})
}

// loadTable fetches a source (local path, http(s), or ftp URL) and parses it
// as a workbook or delimited text based on its extension.
func loadTable(ctx context.Context, f *fetch.Fetcher, source, sheet string) (*table.Table, error) {
	data, err := f.ReadAll(ctx, source)
	if err != nil {
		return nil, err
	}

	if isWorkbook(source) {
		wb, err := table.OpenWorkbookBytes(data, source)
		if err != nil {
			return nil, err
		}
		return wb.Table(table.SheetOptions{SheetName: sheet})
	}

	if sheet != "" {
		return nil, eris.Errorf("%s is not a workbook; --sheet only applies to .xlsx files", source)
	}
	return table.ReadCSV(strings.NewReader(string(data)), source, table.CSVOptions{
		Delimiter: cfg.CSV.DelimiterRune(),
		Charset:   cfg.CSV.Charset,
	})
}

func isWorkbook(source string) bool {
	return strings.HasSuffix(strings.ToLower(source), ".xlsx")
}

// newStore opens the configured run-history backend. Driver "none" disables
// recording and returns nil.
func newStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
