package reference

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nikhilbhutani/promptcompliance/internal/metrics"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

const queryPrefix = "Human: "

// Matcher finds the reference pair whose chosen text best resembles a query.
// The JSONL dataset is reloaded lazily whenever its modification time changes.
type Matcher struct {
	path string

	reloadMu sync.Mutex

	mu      sync.RWMutex
	records []models.ReferenceRecord
	modTime time.Time
}

func NewMatcher(path string) *Matcher {
	return &Matcher{path: path}
}

// Match returns the best reference for query, or nil when the dataset is missing or empty.
func (m *Matcher) Match(query string) *models.ReferenceRecord {
	m.refresh()

	m.mu.RLock()
	records := m.records
	m.mu.RUnlock()

	if len(records) == 0 {
		return nil
	}

	target := queryPrefix + strings.TrimSpace(query)
	best := -1
	bestScore := -1.0
	for i := range records {
		if s := Similarity(target, records[i].Chosen); s > bestScore {
			best, bestScore = i, s
		}
	}

	ref := records[best]
	return &ref
}

func (m *Matcher) refresh() {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	info, err := os.Stat(m.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("reference dataset stat failed", "path", m.path, "error", err)
		}
		m.swap(nil, time.Time{})
		return
	}

	m.mu.RLock()
	unchanged := !m.modTime.IsZero() && m.modTime.Equal(info.ModTime())
	m.mu.RUnlock()
	if unchanged {
		return
	}

	records, err := load(m.path)
	if err != nil {
		slog.Warn("reference dataset load failed", "path", m.path, "error", err)
		m.swap(nil, time.Time{})
		return
	}

	m.swap(records, info.ModTime())
	metrics.DatasetReloadsTotal.Inc()
	slog.Info("reference dataset loaded", "path", m.path, "records", len(records))
}

func (m *Matcher) swap(records []models.ReferenceRecord, modTime time.Time) {
	m.mu.Lock()
	m.records = records
	m.modTime = modTime
	m.mu.Unlock()
}

func load(path string) ([]models.ReferenceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var records []models.ReferenceRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec models.ReferenceRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return records, nil
}
