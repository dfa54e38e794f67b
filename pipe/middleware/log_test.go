package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockLogger implements the Logger interface for testing
type mockLogger struct {
	mu         sync.Mutex
	debugCalls []logCall
	infoCalls  []logCall
	warnCalls  []logCall
	errorCalls []logCall
}

type logCall struct {
	msg  string
	args []any
}

func (l *mockLogger) Debug(msg string, args ...any) {
	l.mu.Lock()
	l.debugCalls = append(l.debugCalls, logCall{msg: msg, args: args})
	l.mu.Unlock()
}

func (l *mockLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	l.infoCalls = append(l.infoCalls, logCall{msg: msg, args: args})
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warnCalls = append(l.warnCalls, logCall{msg: msg, args: args})
	l.mu.Unlock()
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errorCalls = append(l.errorCalls, logCall{msg: msg, args: args})
	l.mu.Unlock()
}

func (l *mockLogger) reset() {
	l.mu.Lock()
	l.debugCalls = nil
	l.infoCalls = nil
	l.warnCalls = nil
	l.errorCalls = nil
	l.mu.Unlock()
}

func TestLogger_LogsSuccessfulProcessing(t *testing.T) {
	logger := &mockLogger{}
	SetDefaultLogger(logger)

	// Create a process func that always succeeds
	processFunc := func(ctx context.Context, in string) ([]string, error) {
		return []string{in + "-processed"}, nil
	}

	// Apply logger middleware with default config
	logMw := Log[string, string](LogConfig{})
	wrappedFunc := logMw(processFunc)

	// Process an item - should succeed and log
	_, err := wrappedFunc(context.Background(), "test-input")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Check debug logs (default success level is debug)
	logger.mu.Lock()
	debugCallsLen := len(logger.debugCalls)
	var debugCallMsg string
	if debugCallsLen > 0 {
		debugCallMsg = logger.debugCalls[0].msg
	}
	logger.mu.Unlock()

	if debugCallsLen != 1 {
		t.Fatalf("Expected 1 debug log, got %d", debugCallsLen)
	}

	if debugCallMsg != "stage completed" {
		t.Errorf("Expected success message, got %q", debugCallMsg)
	}
}

func TestLogger_LogsFailure(t *testing.T) {
	logger := &mockLogger{}
	SetDefaultLogger(logger)
	testError := errors.New("processing failed")

	// Create a process func that always fails
	processFunc := func(ctx context.Context, in string) ([]string, error) {
		return nil, testError
	}

	// Apply logger middleware with default config
	logMw := Log[string, string](LogConfig{})
	wrappedFunc := logMw(processFunc)

	// Process an item - should fail and log error
	_, err := wrappedFunc(context.Background(), "test-input")
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}

	// Check error logs
	logger.mu.Lock()
	errorCallsLen := len(logger.errorCalls)
	var errorCallMsg string
	var errorCallArgs []any
	if errorCallsLen > 0 {
		errorCallMsg = logger.errorCalls[0].msg
		errorCallArgs = logger.errorCalls[0].args
	}
	logger.mu.Unlock()

	if errorCallsLen != 1 {
		t.Fatalf("Expected 1 error log, got %d", errorCallsLen)
	}

	if errorCallMsg != "stage failed" {
		t.Errorf("Expected failure message, got %q", errorCallMsg)
	}

	// Check that error is included in log args
	hasErrorArg := false
	for i := 0; i < len(errorCallArgs); i += 2 {
		if i+1 < len(errorCallArgs) && errorCallArgs[i] == "error" {
			hasErrorArg = true
			break
		}
	}

	if !hasErrorArg {
		t.Errorf("Error log should include the error: %v", errorCallArgs)
	}
}

func TestLogger_CustomLogLevels(t *testing.T) {
	logger := &mockLogger{}
	SetDefaultLogger(logger)

	// Create a config with custom log levels
	config := LogConfig{
		LevelSuccess: LogLevelInfo, // Change from default debug
		LevelFailure: LogLevelError,
	}

	// Create a process func for testing
	processFunc := func(ctx context.Context, in string) ([]string, error) {
		return []string{in + "-processed"}, nil
	}

	// Apply logger middleware with custom config
	logMw := Log[string, string](config)
	wrappedFunc := logMw(processFunc)

	// Process an item successfully
	_, err := wrappedFunc(context.Background(), "test-input")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Check that it logged at info level (not debug)
	logger.mu.Lock()
	debugCallsLen := len(logger.debugCalls)
	infoCallsLen := len(logger.infoCalls)
	logger.mu.Unlock()

	if debugCallsLen != 0 {
		t.Errorf("Should not have debug logs, got %d", debugCallsLen)
	}
	if infoCallsLen != 1 {
		t.Errorf("Expected 1 info log, got %d", infoCallsLen)
	}
}

func TestLogger_CustomMessages(t *testing.T) {
	logger := &mockLogger{}
	SetDefaultLogger(logger)
	testError := errors.New("failure")

	// Create a config with custom messages
	config := LogConfig{
		MessageSuccess: "Custom success message",
		MessageFailure: "Custom failure message",
	}

	// Create a process func for testing
	processFunc := func(ctx context.Context, in string) ([]string, error) {
		if in == "fail" {
			return nil, testError
		}
		return []string{in + "-processed"}, nil
	}

	// Apply logger middleware with custom config
	logMw := Log[string, string](config)
	wrappedFunc := logMw(processFunc)

	// Test success
	_, err := wrappedFunc(context.Background(), "success")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	logger.mu.Lock()
	debugCallsLen := len(logger.debugCalls)
	var debugCallMsg string
	if debugCallsLen > 0 {
		debugCallMsg = logger.debugCalls[0].msg
	}
	logger.mu.Unlock()

	if debugCallsLen != 1 || debugCallMsg != "Custom success message" {
		t.Errorf("Expected custom success message, got len=%d msg=%q", debugCallsLen, debugCallMsg)
	}

	logger.reset()

	// Test failure
	_, err = wrappedFunc(context.Background(), "fail")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	logger.mu.Lock()
	errorCallsLen := len(logger.errorCalls)
	var errorCallMsg string
	if errorCallsLen > 0 {
		errorCallMsg = logger.errorCalls[0].msg
	}
	logger.mu.Unlock()

	if errorCallsLen != 1 || errorCallMsg != "Custom failure message" {
		t.Errorf("Expected custom failure message, got len=%d msg=%q", errorCallsLen, errorCallMsg)
	}
}

func TestLogger_Disabled(t *testing.T) {
	logger := &mockLogger{}
	SetDefaultLogger(logger)

	// Apply disabled log middleware
	fn := Log[string, string](LogConfig{Disabled: true})(
		func(ctx context.Context, in string) ([]string, error) {
			return []string{in + "-processed"}, nil
		},
	)

	// Process an item
	result, err := fn(context.Background(), "test-input")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Should succeed
	if len(result) != 1 || result[0] != "test-input-processed" {
		t.Errorf("Expected result [test-input-processed], got %v", result)
	}

	// Check that no logs were generated
	logger.mu.Lock()
	debugCallsLen := len(logger.debugCalls)
	infoCallsLen := len(logger.infoCalls)
	warnCallsLen := len(logger.warnCalls)
	errorCallsLen := len(logger.errorCalls)
	logger.mu.Unlock()

	if debugCallsLen != 0 || infoCallsLen != 0 || warnCallsLen != 0 || errorCallsLen != 0 {
		t.Errorf("Expected 0 logs when disabled, got debug=%d info=%d warn=%d error=%d",
			debugCallsLen, infoCallsLen, warnCallsLen, errorCallsLen)
	}
}
