// Command logs queries the JSONL observability streams: stats,
// stats-by-version, conversation <id>, recent [limit], list.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/agentpipeline/core/internal/obslog"
)

func main() {
	dir := flag.String("dir", obslog.ConversationLogsDir, "path to the conversation_logs directory")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "stats":
		stats, err := obslog.Stats(*dir)
		if err != nil {
			log.Fatalf("logs: stats: %v", err)
		}
		fmt.Printf("calls=%d input_tokens=%d output_tokens=%d avg_latency_ms=%.1f errors=%d\n",
			stats.TotalCalls, stats.TotalInputTok, stats.TotalOutputTok, stats.AvgLatencyMS, stats.ErrorCount)

	case "stats-by-version":
		rows, err := obslog.StatsByVersion(*dir)
		if err != nil {
			log.Fatalf("logs: stats-by-version: %v", err)
		}
		for _, r := range rows {
			fmt.Printf("version=%d calls=%d avg_latency_ms=%.1f\n", r.PromptVersion, r.Calls, r.AvgLatencyMS)
		}

	case "conversation":
		if len(args) < 2 {
			log.Fatal("logs: conversation requires an id")
		}
		records, err := obslog.Conversation(*dir, args[1])
		if err != nil {
			log.Fatalf("logs: conversation: %v", err)
		}
		printRecords(records)

	case "recent":
		n := 20
		if len(args) > 1 {
			parsed, err := strconv.Atoi(args[1])
			if err != nil {
				log.Fatalf("logs: invalid limit %q: %v", args[1], err)
			}
			n = parsed
		}
		records, err := obslog.Recent(*dir, n)
		if err != nil {
			log.Fatalf("logs: recent: %v", err)
		}
		printRecords(records)

	case "list":
		ids, err := obslog.ListConversations(*dir)
		if err != nil {
			log.Fatalf("logs: list: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}

	default:
		usage()
		os.Exit(2)
	}
}

func printRecords(records []obslog.Record) {
	for _, rec := range records {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", rec.Timestamp, rec.ConversationID, rec.AgentName, rec.Level, rec.Message)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: logs [-dir path] <stats|stats-by-version|conversation <id>|recent [limit]|list>")
}
