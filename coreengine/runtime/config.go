package runtime

import "time"

// Config is the ambient configuration every agent process needs to run,
// constructed once from flags/environment at process start and threaded
// explicitly into New — never stored in a package-level mutable singleton.
type Config struct {
	BrokerConnectRetries      int
	BrokerConnectRetrySpacing time.Duration
	Prefetch                  int
	IdlePollInterval          time.Duration
	DrainTimeout              time.Duration
	LogLevel                  string
	AgentLogsDir              string
	ConversationLogsDir       string
}

// DefaultConfig returns sane defaults for local/offline operation.
func DefaultConfig() Config {
	return Config{
		BrokerConnectRetries:      5,
		BrokerConnectRetrySpacing: 500 * time.Millisecond,
		Prefetch:                  10,
		IdlePollInterval:          50 * time.Millisecond,
		DrainTimeout:              10 * time.Second,
		LogLevel:                  "info",
		AgentLogsDir:              "agent_logs",
		ConversationLogsDir:       "conversation_logs",
	}
}
