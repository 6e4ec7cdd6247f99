package scanner

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	"FakeNewsScanner/internal/domain"
)

// Request carries all parameters required to execute a scan.
type Request struct {
	Community   string
	WindowStart time.Time
	WindowEnd   time.Time
	Limit       int
	Options     map[string]string
}

// Crossed reports whether t lies before the window start. A zero WindowStart
// never crosses.
func (r Request) Crossed(t time.Time) bool {
	return !r.WindowStart.IsZero() && t.Before(r.WindowStart)
}

// Beyond reports whether t lies after the window end. A zero WindowEnd is
// open-ended.
func (r Request) Beyond(t time.Time) bool {
	return !r.WindowEnd.IsZero() && t.After(r.WindowEnd)
}

// Capped reports whether produced items reached Limit.
func (r Request) Capped(produced int) bool {
	return r.Limit > 0 && produced >= r.Limit
}

// Scanner captures a single platform listing strategy.
//
// Scan yields items newest-first, skipping those past WindowEnd, and stops
// once a page crosses WindowStart or Limit items were produced. The sequence is single-use: ranging over it again
// re-queries upstream. A yielded error ends the sequence.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) iter.Seq2[domain.Item, error]
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered (have %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists registered scanners in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
