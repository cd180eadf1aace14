package telemetry

import "sync"

// Snapshot is an immutable point-in-time view of the collector's counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	ExtractionsStarted   int64
	ExtractionsSucceeded int64
	ExtractionsFailed    int64
	PasswordPrompts      int64
	PasswordRetries      int64
	CreationsSucceeded   int64
	CreationsFailed      int64
	EngineCrashes        int64
	FailuresByCode       map[string]int64
}

// Collector accumulates workflow counters in process. Thread-safe via
// sync.Mutex; all increment methods are nil-receiver safe so callers need no
// telemetry wiring to function.
type Collector struct {
	mu sync.Mutex

	extractionsStarted   int64
	extractionsSucceeded int64
	extractionsFailed    int64
	passwordPrompts      int64
	passwordRetries      int64
	creationsSucceeded   int64
	creationsFailed      int64
	engineCrashes        int64
	failuresByCode       map[string]int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{failuresByCode: make(map[string]int64)}
}

// IncExtractionStarted records the start of an extraction attempt.
func (c *Collector) IncExtractionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.extractionsStarted++
	c.mu.Unlock()
}

// IncExtractionSucceeded records a successful extraction.
func (c *Collector) IncExtractionSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.extractionsSucceeded++
	c.mu.Unlock()
}

// IncExtractionFailed records a failed extraction with its failure code.
func (c *Collector) IncExtractionFailed(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.extractionsFailed++
	c.failuresByCode[code]++
	c.mu.Unlock()
}

// IncPasswordPrompt records a password prompt being opened.
func (c *Collector) IncPasswordPrompt() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.passwordPrompts++
	c.mu.Unlock()
}

// IncPasswordRetry records a rejected password submission.
func (c *Collector) IncPasswordRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.passwordRetries++
	c.mu.Unlock()
}

// IncCreationSucceeded records a successful archive creation.
func (c *Collector) IncCreationSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.creationsSucceeded++
	c.mu.Unlock()
}

// IncCreationFailed records a failed archive creation with its failure code.
func (c *Collector) IncCreationFailed(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.creationsFailed++
	c.failuresByCode[code]++
	c.mu.Unlock()
}

// IncEngineCrash records an engine process death.
func (c *Collector) IncEngineCrash() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.engineCrashes++
	c.mu.Unlock()
}

// Snapshot returns a copy of all counters. Nil-receiver safe.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{FailuresByCode: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byCode := make(map[string]int64, len(c.failuresByCode))
	for k, v := range c.failuresByCode {
		byCode[k] = v
	}
	return Snapshot{
		ExtractionsStarted:   c.extractionsStarted,
		ExtractionsSucceeded: c.extractionsSucceeded,
		ExtractionsFailed:    c.extractionsFailed,
		PasswordPrompts:      c.passwordPrompts,
		PasswordRetries:      c.passwordRetries,
		CreationsSucceeded:   c.creationsSucceeded,
		CreationsFailed:      c.creationsFailed,
		EngineCrashes:        c.engineCrashes,
		FailuresByCode:       byCode,
	}
}
