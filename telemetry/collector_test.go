package telemetry

import (
	"sync"
	"testing"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	c.IncExtractionStarted()
	c.IncExtractionStarted()
	c.IncExtractionSucceeded()
	c.IncExtractionFailed("PASSWORD_REQUIRED")
	c.IncPasswordPrompt()
	c.IncPasswordRetry()
	c.IncCreationSucceeded()
	c.IncCreationFailed("CREATE_FAILED")
	c.IncEngineCrash()

	snap := c.Snapshot()
	if snap.ExtractionsStarted != 2 {
		t.Errorf("ExtractionsStarted = %d, want 2", snap.ExtractionsStarted)
	}
	if snap.ExtractionsSucceeded != 1 || snap.ExtractionsFailed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", snap.ExtractionsSucceeded, snap.ExtractionsFailed)
	}
	if snap.FailuresByCode["PASSWORD_REQUIRED"] != 1 || snap.FailuresByCode["CREATE_FAILED"] != 1 {
		t.Errorf("FailuresByCode = %v", snap.FailuresByCode)
	}
	if snap.EngineCrashes != 1 {
		t.Errorf("EngineCrashes = %d, want 1", snap.EngineCrashes)
	}
}

func TestCollectorNilSafe(t *testing.T) {
	var c *Collector
	c.IncExtractionStarted()
	c.IncExtractionSucceeded()
	c.IncExtractionFailed("X")
	c.IncPasswordPrompt()
	c.IncPasswordRetry()
	c.IncCreationSucceeded()
	c.IncCreationFailed("X")
	c.IncEngineCrash()

	snap := c.Snapshot()
	if snap.ExtractionsStarted != 0 {
		t.Errorf("nil collector recorded %d starts", snap.ExtractionsStarted)
	}
	if snap.FailuresByCode == nil {
		t.Error("nil collector snapshot has nil FailuresByCode")
	}
}

func TestCollectorSnapshotIsolation(t *testing.T) {
	c := NewCollector()
	c.IncExtractionFailed("A")
	snap := c.Snapshot()
	snap.FailuresByCode["A"] = 100

	if got := c.Snapshot().FailuresByCode["A"]; got != 1 {
		t.Errorf("snapshot mutation leaked into collector: %d", got)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncExtractionStarted()
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().ExtractionsStarted; got != 1600 {
		t.Errorf("ExtractionsStarted = %d, want 1600", got)
	}
}
