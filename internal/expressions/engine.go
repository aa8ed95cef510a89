package expressions

import (
	"context"
	"sync"
)

// Engine evaluates an expression language against a data map. Conditions on
// steps do not use engines; engines back the jq and expr.eval actions and
// event trigger filters.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// programCache memoizes compiled programs by source text. Safe for
// concurrent use; two goroutines may compile the same source once each on a
// cold cache, and the first stored result wins.
type programCache[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func newProgramCache[T any]() *programCache[T] {
	return &programCache[T]{items: make(map[string]T)}
}

func (c *programCache[T]) get(source string, compile func(string) (T, error)) (T, error) {
	c.mu.RLock()
	prg, ok := c.items[source]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := compile(source)
	if err != nil {
		return prg, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.items[source]; ok {
		return existing, nil
	}
	c.items[source] = prg
	return prg, nil
}

func (c *programCache[T]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
