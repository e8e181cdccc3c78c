// Package obslog implements the two append-only JSONL observability streams
// every agent writes to: agent_logs/<conversationId>_<agentName>.jsonl and
// conversation_logs/<conversationId>.jsonl. Writes retry with bounded
// exponential backoff; a log-sink failure is swallowed and reported to
// stderr, never propagated into a pipeline outcome.
package obslog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentpipeline/core/coreengine/process"
)

const (
	AgentLogsDir        = "agent_logs"
	ConversationLogsDir = "conversation_logs"

	maxWriteRetries = 3
	retryBaseDelay  = 10 * time.Millisecond
)

// Source mirrors read_last_log.py's source discriminant.
type Source string

const (
	SourceAgent  Source = "Agent"
	SourceSubmit Source = "Submit"
	SourceLLM    Source = "LLM"
	SourceCLI    Source = "CLI"
)

// Level mirrors read_last_log.py's level discriminant.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Record is one line of either JSONL stream. Model-call records additionally
// populate Prompt/Response/Model/DurationMS.
type Record struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Level          Level  `json:"level"`
	Source         Source `json:"source"`
	AgentName      string `json:"agent_name,omitempty"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
	Prompt         string `json:"prompt,omitempty"`
	Response       string `json:"response,omitempty"`
	Model          string `json:"model,omitempty"`
	DurationMS     int64  `json:"duration_ms,omitempty"`
	PromptVersion  int    `json:"prompt_version_id,omitempty"`
	InputTokens    int    `json:"input_tokens,omitempty"`
	OutputTokens   int    `json:"output_tokens,omitempty"`
}

// Sink writes Records to both the per-agent and per-conversation streams
// rooted at a configured directory pair.
type Sink struct {
	agentLogsDir        string
	conversationLogsDir string
	mu                  sync.Mutex
}

// NewSink constructs a Sink rooted at the given directories, created lazily
// on first write.
func NewSink(agentLogsDir, conversationLogsDir string) *Sink {
	return &Sink{agentLogsDir: agentLogsDir, conversationLogsDir: conversationLogsDir}
}

// Write appends rec to both streams implied by rec.ConversationID and
// rec.AgentName. Failures are retried with bounded backoff, then swallowed
// and reported to stderr.
func (s *Sink) Write(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.AgentName != "" {
		path := filepath.Join(s.agentLogsDir, fmt.Sprintf("%s_%s.jsonl", rec.ConversationID, rec.AgentName))
		s.appendWithRetry(path, rec)
	}

	path := filepath.Join(s.conversationLogsDir, fmt.Sprintf("%s.jsonl", rec.ConversationID))
	s.appendWithRetry(path, rec)
}

// RecordModelCall implements process.ModelCallRecorder, writing the LLM-
// sourced auxiliary record a Model-backed stage attempt needs: without it,
// Stats/StatsByVersion have no Source == SourceLLM records to aggregate.
func (s *Sink) RecordModelCall(conversationID, agentName, modelName, prompt, response string, durationMS int64, callErr error) {
	level := LevelInfo
	message := fmt.Sprintf("model call to %s succeeded", modelName)
	if callErr != nil {
		level = LevelError
		message = fmt.Sprintf("model call to %s failed: %v", modelName, callErr)
	}

	s.Write(Record{
		Type:           "model_call",
		ConversationID: conversationID,
		Level:          level,
		Source:         SourceLLM,
		AgentName:      agentName,
		Message:        message,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Prompt:         prompt,
		Response:       response,
		Model:          modelName,
		DurationMS:     durationMS,
	})
}

func (s *Sink) appendWithRetry(path string, rec Record) {
	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		if err := appendLine(path, rec); err != nil {
			lastErr = err
			time.Sleep(retryBaseDelay << attempt)
			continue
		}
		return
	}
	fmt.Fprintf(os.Stderr, "obslog: failed to write %s after %d attempts: %v\n", path, maxWriteRetries, lastErr)
}

var _ process.ModelCallRecorder = (*Sink)(nil)

func appendLine(path string, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// ReadAll reads and decodes every record from a single JSONL file, skipping
// malformed lines rather than failing the whole read.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
