package domain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrawlStatePhases(t *testing.T) {
	t.Parallel()

	st := NewCrawlState()
	assert.Equal(t, PhaseNotStarted, st.Phase())

	st.SetPhase(PhaseResolvingCategories)
	assert.Equal(t, "ResolvingCategories", st.Phase().String())

	st.SetPhase(PhaseFetchingProducts)
	st.SetPhase(PhaseDone)
	assert.Equal(t, PhaseDone, st.Phase())
}

func TestCrawlStateConcurrentCounters(t *testing.T) {
	t.Parallel()

	st := NewCrawlState()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.AddPage()
			st.AddError()
			st.AppendRecords(ProductRecord{UID: "p"})
		}()
	}
	wg.Wait()

	results := st.Results("en")
	assert.Equal(t, 20, results.Pages)
	assert.Equal(t, 20, results.Errors)
	assert.Len(t, results.Records, 20)
	assert.Equal(t, "en", results.StoreCode)
}

func TestCrawlStateResultsSnapshot(t *testing.T) {
	t.Parallel()

	st := NewCrawlState()
	st.AppendRecords(ProductRecord{UID: "a"})

	results := st.Results("en")
	st.AppendRecords(ProductRecord{UID: "b"})

	assert.Len(t, results.Records, 1)
}
