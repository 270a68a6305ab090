package editor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
)

// Command is an editor command contributed by a plugin.
type Command func(ctx context.Context, args map[string]any) (any, error)

// Plugin declares the commands it adds to a host.
type Plugin interface {
	Name() string
	Commands() map[string]Command
}

// Host is the explicit command registry an editor integration exposes.
// Plugins register commands up front; nothing is patched in at runtime.
type Host struct {
	mu       sync.RWMutex
	commands map[string]Command
	owners   map[string]string
}

func NewHost() *Host {
	return &Host{
		commands: make(map[string]Command),
		owners:   make(map[string]string),
	}
}

// RegisterPlugin adds all of a plugin's commands or none of them.
func (h *Host) RegisterPlugin(p Plugin) error {
	commands := p.Commands()
	h.mu.Lock()
	defer h.mu.Unlock()
	for name := range commands {
		if owner, exists := h.owners[name]; exists {
			return fmt.Errorf("editor: command %q from plugin %s already provided by %s", name, p.Name(), owner)
		}
	}
	for name, command := range commands {
		h.commands[name] = command
		h.owners[name] = p.Name()
	}
	return nil
}

func (h *Host) Supports(command string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.commands[command]
	return ok
}

// Commands lists supported commands, sorted.
func (h *Host) Commands() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Host) Exec(ctx context.Context, command string, args map[string]any) (any, error) {
	h.mu.RLock()
	fn, ok := h.commands[command]
	h.mu.RUnlock()
	if !ok {
		return nil, apperr.ServiceUnavailable("editor.Exec", fmt.Sprintf("command %q is not supported", command), map[string]any{
			"supportedCommands": h.Commands(),
		})
	}
	return fn(ctx, args)
}
