package conservation

import (
	"sync"
)

// BatchSummary aggregates one batch call, computed as the statistics delta
// across the call so concurrent validators elsewhere do not bleed in.
type BatchSummary struct {
	Validated     int64   `json:"validated"`
	Rejected      int64   `json:"rejected"`
	RejectionRate float64 `json:"rejection_rate"`
}

// BatchValidate runs Validate over a sequence of scenarios and returns the
// individual records plus a batch summary.
func (v *Validator) BatchValidate(scenarios []Scenario) ([]Record, BatchSummary) {
	before := v.Stats()

	records := make([]Record, len(scenarios))
	for i, s := range scenarios {
		records[i] = v.Validate(s)
	}

	return records, v.summarySince(before)
}

// BatchValidateParallel distributes scenarios over a worker pool. Scenarios
// are independent; only the shared counters are serialized (by the
// validator's mutex), so the records come back in input order while the
// telemetry stays exact.
func (v *Validator) BatchValidateParallel(scenarios []Scenario) ([]Record, BatchSummary) {
	numScenarios := len(scenarios)
	if numScenarios == 0 {
		return []Record{}, BatchSummary{}
	}

	before := v.Stats()

	jobs := make(chan batchJob, numScenarios)
	results := make(chan batchResult, numScenarios)

	numWorkers := v.workers
	if numScenarios < numWorkers {
		numWorkers = numScenarios
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- batchResult{
					index:  job.index,
					record: v.Validate(job.scenario),
				}
			}
		}()
	}

	for idx, s := range scenarios {
		jobs <- batchJob{index: idx, scenario: s}
	}
	close(jobs)

	wg.Wait()
	close(results)

	records := make([]Record, numScenarios)
	for r := range results {
		records[r.index] = r.record
	}

	return records, v.summarySince(before)
}

type batchJob struct {
	scenario Scenario
	index    int
}

type batchResult struct {
	record Record
	index  int
}

func (v *Validator) summarySince(before Stats) BatchSummary {
	after := v.Stats()
	summary := BatchSummary{
		Validated: after.TotalValidated - before.TotalValidated,
		Rejected:  after.TotalRejected - before.TotalRejected,
	}
	if summary.Validated > 0 {
		summary.RejectionRate = float64(summary.Rejected) / float64(summary.Validated)
	}
	return summary
}
