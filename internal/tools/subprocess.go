// Package tools provides the two concrete tool shapes the core depends on:
// a subprocess executor and a model-wrapper, both registered against the
// generalized coreengine/tools.ToolRegistry interface so the Tool-backed
// process layer has one dispatch path regardless of which tool runs.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/agentpipeline/core/coreengine/tools"
)

// RegisterSubprocessTool registers the subprocess tool under name on
// registry. Input: {"code": string, "timeout_seconds": int}. Output:
// {"stdout": string, "stderr": string, "exit_code": int, "execution_time_ms": int64}.
// Timeout is enforced by the tool itself via context.WithTimeout wrapping
// os/exec.CommandContext; on expiry exit_code is -1 and stderr carries a
// timeout marker.
func RegisterSubprocessTool(registry tools.ToolRegistry, name string) error {
	return registry.Register(&tools.ToolDefinition{
		Name:        name,
		Description: "Executes generated code as a subprocess with a bounded timeout",
		Category:    "execution",
		RiskLevel:   "high",
		Handler:     subprocessHandler,
	})
}

func subprocessHandler(ctx context.Context, params map[string]any) (map[string]any, error) {
	code, _ := params["code"].(string)
	timeoutSeconds := 10
	if v, ok := params["timeout_seconds"].(int); ok && v > 0 {
		timeoutSeconds = v
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(timeoutCtx, "python3", "-c", code)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	durationMS := time.Since(start).Milliseconds()

	exitCode := 0
	stderrText := stderr.String()

	if timeoutCtx.Err() != nil {
		exitCode = -1
		stderrText += fmt.Sprintf("timeout after %ds", timeoutSeconds)
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			stderrText += err.Error()
		}
	}

	return map[string]any{
		"stdout":            stdout.String(),
		"stderr":            stderrText,
		"exit_code":         exitCode,
		"execution_time_ms": durationMS,
	}, nil
}
