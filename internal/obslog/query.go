package obslog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AggregateStats mirrors manage_logs.py's overall summary.
type AggregateStats struct {
	TotalCalls      int
	TotalInputTok   int
	TotalOutputTok  int
	AvgLatencyMS    float64
	ErrorCount      int
}

// VersionStats is one row of manage_logs.py's per-version breakdown.
type VersionStats struct {
	PromptVersion int
	Calls         int
	AvgLatencyMS  float64
}

// Stats aggregates every LLM-sourced record across conversationLogsDir.
func Stats(conversationLogsDir string) (AggregateStats, error) {
	records, err := allConversationRecords(conversationLogsDir)
	if err != nil {
		return AggregateStats{}, err
	}

	var agg AggregateStats
	var totalLatency int64
	for _, r := range records {
		if r.Source != SourceLLM {
			continue
		}
		agg.TotalCalls++
		agg.TotalInputTok += r.InputTokens
		agg.TotalOutputTok += r.OutputTokens
		totalLatency += r.DurationMS
		if r.Level == LevelError {
			agg.ErrorCount++
		}
	}
	if agg.TotalCalls > 0 {
		agg.AvgLatencyMS = float64(totalLatency) / float64(agg.TotalCalls)
	}
	return agg, nil
}

// StatsByVersion buckets LLM-sourced records by prompt_version_id.
func StatsByVersion(conversationLogsDir string) ([]VersionStats, error) {
	records, err := allConversationRecords(conversationLogsDir)
	if err != nil {
		return nil, err
	}

	type acc struct {
		calls   int
		latency int64
	}
	byVersion := make(map[int]*acc)
	for _, r := range records {
		if r.Source != SourceLLM {
			continue
		}
		a, ok := byVersion[r.PromptVersion]
		if !ok {
			a = &acc{}
			byVersion[r.PromptVersion] = a
		}
		a.calls++
		a.latency += r.DurationMS
	}

	var result []VersionStats
	for version, a := range byVersion {
		result = append(result, VersionStats{
			PromptVersion: version,
			Calls:         a.calls,
			AvgLatencyMS:  float64(a.latency) / float64(a.calls),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PromptVersion < result[j].PromptVersion })
	return result, nil
}

// Recent returns the n most recent records across every conversation,
// ordered newest first, by Timestamp (ISO-8601 UTC sorts lexically).
func Recent(conversationLogsDir string, n int) ([]Record, error) {
	records, err := allConversationRecords(conversationLogsDir)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp > records[j].Timestamp })
	if n > 0 && n < len(records) {
		records = records[:n]
	}
	return records, nil
}

// ListConversations returns every conversation id with a log file under
// conversationLogsDir, derived from filenames, not file contents.
func ListConversations(conversationLogsDir string) ([]string, error) {
	entries, err := os.ReadDir(conversationLogsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".jsonl"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Conversation reads every record for a single conversation id.
func Conversation(conversationLogsDir, conversationID string) ([]Record, error) {
	return ReadAll(filepath.Join(conversationLogsDir, conversationID+".jsonl"))
}

func allConversationRecords(conversationLogsDir string) ([]Record, error) {
	ids, err := ListConversations(conversationLogsDir)
	if err != nil {
		return nil, err
	}

	var all []Record
	for _, id := range ids {
		recs, err := Conversation(conversationLogsDir, id)
		if err != nil {
			continue
		}
		all = append(all, recs...)
	}
	return all, nil
}
