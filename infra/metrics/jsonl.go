package metrics

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
)

const maxLineBytes = 16 << 20

// JSONLSink appends sensor states to a JSONL file with automatic rotation.
type JSONLSink struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

// NewJSONLSink creates a sink with rotation options in megabytes and days.
func NewJSONLSink(path string, maxSizeMB, maxBackups, maxAgeDays int, compress bool) (*JSONLSink, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   compress,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &JSONLSink{logger: lj, path: path}, nil
}

// RecordSensorState writes the state as one JSON line.
func (s *JSONLSink) RecordSensorState(ev coremetrics.SensorStateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.logger).Encode(ev)
}

// Query reads all log files including rotated ones. Compressed backups are skipped.
func (s *JSONLSink) Query(ctx context.Context, q coremetrics.HistoryQuery) ([]coremetrics.SensorStateEvent, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	var res []coremetrics.SensorStateEvent
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			var ev coremetrics.SensorStateEvent
			if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
				continue
			}
			if q.Matches(ev) {
				res = append(res, ev)
			}
		}
		_ = file.Close()
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Time.Before(res[j].Time) })
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

func (s *JSONLSink) files() ([]string, error) {
	ext := filepath.Ext(s.path)
	base := s.path[:len(s.path)-len(ext)]
	backups, err := filepath.Glob(base + "-*" + ext)
	if err != nil {
		return nil, err
	}
	files := append(backups, s.path)
	return files, nil
}

// Close closes the underlying writer.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger.Close()
}
