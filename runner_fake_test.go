package main

import (
	"context"
	"strings"
	"sync"
)

// fakeRunner records every command and answers through the handler. Without a handler every command succeeds
// with empty output.
type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	handler  func(cmd Command) (CommandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (CommandResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	handler := f.handler
	f.mu.Unlock()

	if handler == nil {
		return CommandResult{}, nil
	}
	return handler(cmd)
}

// Lines returns each recorded command as a single string
func (f *fakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines := make([]string, 0, len(f.commands))
	for _, cmd := range f.commands {
		lines = append(lines, cmd.String())
	}
	return lines
}

// Count returns how many recorded commands start with the given prefix
func (f *fakeRunner) Count(prefix string) int {
	count := 0
	for _, line := range f.Lines() {
		if strings.HasPrefix(line, prefix) {
			count++
		}
	}
	return count
}
