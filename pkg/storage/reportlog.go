package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vjranagit/lkext/pkg/types"
)

// ReportLog is an append-only JSON-lines log of update reports. Each
// process writes its own file so concurrent writers never interleave.
type ReportLog struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewReportLog opens a new log file under dataPath/reports
func NewReportLog(dataPath string) (*ReportLog, error) {
	logPath := filepath.Join(dataPath, "reports")
	if err := os.MkdirAll(logPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := filepath.Join(logPath, fmt.Sprintf("reports-%020d.jsonl", time.Now().UnixNano()))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open report log: %w", err)
	}

	return &ReportLog{
		path:   logPath,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Append writes a report and flushes it to disk
func (l *ReportLog) Append(report *types.UpdateReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush report log: %w", err)
	}
	return l.file.Sync()
}

// Close closes the log
func (l *ReportLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// ReplayReports calls handler for every logged report, oldest log file first
func ReplayReports(dataPath string, handler func(*types.UpdateReport) error) error {
	logPath := filepath.Join(dataPath, "reports")

	entries, err := os.ReadDir(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read report directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)

	for _, name := range names {
		filename := filepath.Join(logPath, name)
		if err := replayReportFile(filename, handler); err != nil {
			return fmt.Errorf("failed to replay %s: %w", filename, err)
		}
	}
	return nil
}

// replayReportFile replays a single log file
func replayReportFile(filename string, handler func(*types.UpdateReport) error) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// a report of a large first scan can be long
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var report types.UpdateReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			return fmt.Errorf("failed to unmarshal report: %w", err)
		}
		if err := handler(&report); err != nil {
			return fmt.Errorf("failed to handle report: %w", err)
		}
	}
	return scanner.Err()
}
