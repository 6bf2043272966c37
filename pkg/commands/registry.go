package commands

import (
	"context"
	"sort"
	"strings"
	"sync"

	"termfolio/pkg/domain"
)

// Catalog is the read side of the command registry.
type Catalog interface {
	// ListActiveCommands returns active commands sorted by name ascending.
	ListActiveCommands(ctx context.Context) ([]domain.Command, error)
	GetActiveCommand(ctx context.Context, name string) (domain.Command, bool, error)
	// LatestResponse returns the highest-version active response for name.
	LatestResponse(ctx context.Context, name string) (domain.CommandResponse, bool, error)
}

// Normalize trims name and enforces a single leading "/".
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// StaticCatalog is an in-process Catalog, used offline and in tests.
type StaticCatalog struct {
	mu        sync.RWMutex
	commands  map[string]domain.Command
	responses map[string][]domain.CommandResponse
}

// NewStaticCatalog builds a catalog from the given rows.
func NewStaticCatalog(cmds []domain.Command, responses []domain.CommandResponse) *StaticCatalog {
	c := &StaticCatalog{
		commands:  make(map[string]domain.Command, len(cmds)),
		responses: make(map[string][]domain.CommandResponse),
	}
	for _, cmd := range cmds {
		c.UpsertCommand(cmd)
	}
	for _, resp := range responses {
		c.UpsertResponse(resp)
	}
	return c
}

// DefaultCatalog returns a StaticCatalog holding the seed data.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog(SeedCommands, SeedResponses)
}

// UpsertCommand inserts or replaces a command keyed by name.
func (c *StaticCatalog) UpsertCommand(cmd domain.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands[cmd.Name] = cmd
}

// UpsertResponse inserts or replaces a response keyed by (name, version).
func (c *StaticCatalog) UpsertResponse(resp domain.CommandResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.responses[resp.CommandName]
	for i := range list {
		if list[i].Version == resp.Version {
			list[i] = resp
			return
		}
	}
	c.responses[resp.CommandName] = append(list, resp)
}

func (c *StaticCatalog) ListActiveCommands(_ context.Context) ([]domain.Command, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		if cmd.Active {
			out = append(out, cmd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *StaticCatalog) GetActiveCommand(_ context.Context, name string) (domain.Command, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmd, ok := c.commands[name]
	if !ok || !cmd.Active {
		return domain.Command{}, false, nil
	}
	return cmd, true, nil
}

func (c *StaticCatalog) LatestResponse(_ context.Context, name string) (domain.CommandResponse, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return LatestActive(c.responses[name])
}

// LatestActive picks the highest-version active response.
func LatestActive(list []domain.CommandResponse) (domain.CommandResponse, bool, error) {
	var (
		best  domain.CommandResponse
		found bool
	)
	for _, resp := range list {
		if !resp.Active {
			continue
		}
		if !found || resp.Version > best.Version {
			best = resp
			found = true
		}
	}
	return best, found, nil
}
