package domain

import "sync"

// CrawlPhase is the lifecycle state of one crawl run.
type CrawlPhase int32

const (
	PhaseNotStarted CrawlPhase = iota
	PhaseResolvingCategories
	PhaseFetchingProducts
	PhaseDone
)

func (p CrawlPhase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseResolvingCategories:
		return "ResolvingCategories"
	case PhaseFetchingProducts:
		return "FetchingProducts"
	case PhaseDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// CrawlState tracks a single crawl run: the collected records and the
// counters mutated by every fetch completion. Safe for concurrent use by
// the per-category fetch goroutines.
type CrawlState struct {
	mu         sync.Mutex
	phase      CrawlPhase
	categories int
	pages      int
	errors     int
	records    []ProductRecord
}

func NewCrawlState() *CrawlState {
	return &CrawlState{phase: PhaseNotStarted}
}

func (s *CrawlState) SetPhase(p CrawlPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *CrawlState) Phase() CrawlPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *CrawlState) SetCategories(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = n
}

func (s *CrawlState) AddPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages++
}

func (s *CrawlState) AddError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// AppendRecords adds normalized records to the output collection. Records
// already appended are never removed or rewritten.
func (s *CrawlState) AppendRecords(records ...ProductRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// Results snapshots the state into an immutable summary.
func (s *CrawlState) Results(storeCode string) *CrawlResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]ProductRecord, len(s.records))
	copy(records, s.records)
	return &CrawlResults{
		StoreCode:  storeCode,
		Categories: s.categories,
		Pages:      s.pages,
		Errors:     s.errors,
		Records:    records,
	}
}

// CrawlResults summarizes one finished crawl run.
type CrawlResults struct {
	StoreCode  string
	Categories int
	Pages      int
	Errors     int
	Records    []ProductRecord
}
