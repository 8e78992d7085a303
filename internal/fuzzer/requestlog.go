package fuzzer

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/su1ph3r/fencer/pkg/types"
)

// bodyPreviewLimit truncates logged response bodies
const bodyPreviewLimit = 500

// RequestLogger logs every probe as one element of a JSON array file
type RequestLogger struct {
	mu      sync.Mutex
	file    *os.File
	count   int
	enabled bool
}

// LogEntry represents a logged probe
type LogEntry struct {
	Timestamp  time.Time       `json:"timestamp"`
	RequestNum int             `json:"request_num"`
	ID         string          `json:"id"`
	TestTarget string          `json:"test_target"`
	Endpoint   string          `json:"endpoint"`
	Request    *LoggedRequest  `json:"request"`
	Response   *LoggedResponse `json:"response,omitempty"`
	Result     types.Result    `json:"result"`
	Severity   types.Severity  `json:"severity"`
	Duration   string          `json:"duration"`
	Error      string          `json:"error,omitempty"`
}

// LoggedRequest contains request details for logging
type LoggedRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Body   string `json:"body,omitempty"`
}

// LoggedResponse contains response details for logging
type LoggedResponse struct {
	StatusCode    int               `json:"status_code"`
	Status        string            `json:"status"`
	Headers       map[string]string `json:"headers,omitempty"`
	ContentLength int64             `json:"content_length"`
	ResponseTime  string            `json:"response_time"`
	BodyPreview   string            `json:"body_preview,omitempty"`
}

// NewRequestLogger creates a new request logger. An empty path disables logging.
func NewRequestLogger(filePath string) (*RequestLogger, error) {
	if filePath == "" {
		return &RequestLogger{enabled: false}, nil
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	// Write opening bracket for JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write log file: %w", err)
	}

	return &RequestLogger{
		file:    file,
		enabled: true,
	}, nil
}

// Log writes one sealed test case and its response to the log file
func (l *RequestLogger) Log(tc *types.TestCase, body string, resp *probeResponse) error {
	if l == nil || !l.enabled || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++

	entry := LogEntry{
		Timestamp:  tc.StartedAt,
		RequestNum: l.count,
		ID:         tc.ID,
		TestTarget: tc.TestTarget,
		Endpoint:   tc.Descriptor().Endpoint(),
		Request: &LoggedRequest{
			Method: tc.Method.String(),
			URL:    tc.URL,
			Body:   body,
		},
		Result:   tc.Result,
		Severity: tc.Severity,
		Duration: tc.Duration().String(),
		Error:    tc.Error,
	}

	if resp != nil {
		entry.Response = &LoggedResponse{
			StatusCode:    resp.StatusCode,
			Status:        resp.Status,
			Headers:       resp.Headers,
			ContentLength: resp.ContentLength,
			ResponseTime:  resp.ResponseTime.String(),
		}

		if len(resp.Body) > 0 {
			preview := resp.Body
			if len(preview) > bodyPreviewLimit {
				preview = preview[:bodyPreviewLimit] + "..."
			}
			entry.Response.BodyPreview = preview
		}
	}

	// Write comma separator after first entry
	if l.count > 1 {
		if _, err := l.file.WriteString(",\n"); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(entry, "  ", "  ")
	if err != nil {
		return err
	}

	_, err = l.file.Write(append([]byte("  "), data...))
	return err
}

// Close terminates the JSON array and closes the log file
func (l *RequestLogger) Close() error {
	if l == nil || !l.enabled || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.WriteString("\n]\n"); err != nil {
		l.file.Close()
		return err
	}

	return l.file.Close()
}

// Count returns the number of logged entries
func (l *RequestLogger) Count() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
