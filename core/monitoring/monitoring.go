// Package monitoring forwards failures to an error tracker. The process has a
// single reporter; it discards everything until SetReporter is called.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Reporter sends errors to an external tracker.
type Reporter interface {
	Report(err error, tags map[string]string)
	// Flush waits until buffered reports are sent or timeout elapses.
	Flush(timeout time.Duration) bool
}

type NopReporter struct{}

func (NopReporter) Report(error, map[string]string) {}
func (NopReporter) Flush(time.Duration) bool        { return true }

var (
	mu      sync.RWMutex
	current Reporter = NopReporter{}
)

// SetReporter installs r. A nil reporter restores the no-op one.
func SetReporter(r Reporter) {
	mu.Lock()
	defer mu.Unlock()
	if r == nil {
		r = NopReporter{}
	}
	current = r
}

func reporter() Reporter {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Report sends err with optional tags. Nil errors are ignored.
func Report(err error, tags map[string]string) {
	if err == nil {
		return
	}
	reporter().Report(err, tags)
}

// Flush waits for buffered reports.
func Flush(timeout time.Duration) bool { return reporter().Flush(timeout) }

// Go runs fn on a new goroutine. A panic is reported with the component tag
// and then propagated.
func Go(component string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				Report(fmt.Errorf("panic in %s: %v", component, r), map[string]string{"component": component})
				Flush(2 * time.Second)
				panic(r)
			}
		}()
		fn()
	}()
}
