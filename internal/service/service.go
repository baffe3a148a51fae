package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"electrichouse/crawler/internal/client"
	"electrichouse/crawler/internal/config"
	"electrichouse/crawler/internal/domain"
	"electrichouse/crawler/internal/domain/task"
	"electrichouse/crawler/internal/normalizer"
	"electrichouse/crawler/internal/output"
	"electrichouse/crawler/internal/queue"
	"electrichouse/crawler/internal/repository"
	"electrichouse/crawler/internal/state"

	"golang.org/x/sync/errgroup"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Service drives a full crawl: category resolution, per-category
// pagination, normalization, and persistence of the collected records.
// Repository, queue, and state manager are optional; the crawl runs
// without them.
type Service struct {
	client       client.ElectricHouseClient
	normalizer   *normalizer.Normalizer
	writer       output.Writer
	repository   repository.ProductRepository
	queue        queue.Queue
	stateManager state.StateManager
	storeCode    string
	sourceSite   string
	maxWorkers   int
	maxRetries   int
	groupName    string
	minIdleTime  time.Duration
}

func NewService(
	client client.ElectricHouseClient,
	normalizer *normalizer.Normalizer,
	writer output.Writer,
	repository repository.ProductRepository,
	queue queue.Queue,
	stateManager state.StateManager,
	cfg *config.Config,
) *Service {
	maxWorkers := cfg.Store.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Service{
		client:       client,
		normalizer:   normalizer,
		writer:       writer,
		repository:   repository,
		queue:        queue,
		stateManager: stateManager,
		storeCode:    cfg.Store.StoreCode,
		sourceSite:   cfg.Store.SourceSite,
		maxWorkers:   maxWorkers,
		maxRetries:   cfg.Store.MaxRetries,
		groupName:    cfg.Redis.ConsumerGroup,
		minIdleTime:  time.Duration(cfg.Redis.MinIdleTime) * time.Second,
	}
}

// Crawl runs the whole crawl to completion and writes the output document.
// Failures of individual pages or categories are logged and counted but
// never abort the run; the only fatal error is failing to persist the
// output itself.
func (s *Service) Crawl(ctx context.Context) (*domain.CrawlResults, error) {
	st := domain.NewCrawlState()

	if s.queue != nil {
		s.discardLeftoverRetries(ctx)
	}

	st.SetPhase(domain.PhaseResolvingCategories)
	leaves := s.resolveLeafCategories(ctx, st)

	st.SetPhase(domain.PhaseFetchingProducts)
	perCategory := make([][]domain.ProductRecord, len(leaves))

	g := new(errgroup.Group)
	g.SetLimit(s.maxWorkers)
	for i, leaf := range leaves {
		g.Go(func() error {
			perCategory[i] = s.fetchCategory(ctx, leaf, st)
			return nil
		})
	}
	_ = g.Wait() // category failures never surface as errors

	// Records recovered by the retry pass are spliced back into their
	// category's slice before flattening, so the output stays in resolver
	// order even when some pages only succeeded on retry.
	if s.queue != nil {
		recovered := s.drainRetries(ctx, st)
		for i, leaf := range leaves {
			if extra, ok := recovered[leaf.UID]; ok {
				perCategory[i] = append(perCategory[i], extra...)
			}
		}
	}

	// Flattening after the fact keeps the output in resolver order no
	// matter how the concurrent fetches interleaved.
	for _, records := range perCategory {
		st.AppendRecords(records...)
	}

	st.SetPhase(domain.PhaseDone)
	results := st.Results(s.storeCode)

	if err := s.writer.Write(results.Records); err != nil {
		return nil, fmt.Errorf("failed to persist crawl output: %w", err)
	}

	if s.repository != nil {
		if err := s.repository.SaveProducts(ctx, s.storeCode, results.Records); err != nil {
			log.Errorf("❌ Failed to mirror records to database: %v", err)
		}
	}

	if s.stateManager != nil {
		summary := state.CrawlSummary{
			StoreCode:  s.storeCode,
			SourceSite: s.sourceSite,
			Categories: results.Categories,
			Pages:      results.Pages,
			Records:    len(results.Records),
			Errors:     results.Errors,
			FinishedAt: time.Now().UTC(),
		}
		if err := s.stateManager.SaveCrawlSummary(ctx, summary); err != nil {
			log.Warnf("⚠️ Failed to save crawl summary: %v", err)
		}
	}

	log.Infof("✅ Crawl complete: %d categories, %d pages, %d records, %d errors",
		results.Categories, results.Pages, len(results.Records), results.Errors)
	return results, nil
}

func (s *Service) resolveLeafCategories(ctx context.Context, st *domain.CrawlState) []domain.Category {
	tree, err := s.client.GetCategoryTree(ctx)
	if err != nil {
		// A dead tree means an empty crawl, not a failed one.
		log.Errorf("❌ Failed to resolve category tree: %v", err)
		st.AddError()
		return nil
	}

	leaves := domain.Leaves(tree)
	st.SetCategories(len(leaves))
	log.Infof("🔄 Resolved %d leaf categories to scrape", len(leaves))
	return leaves
}

func (s *Service) fetchCategory(ctx context.Context, leaf domain.Category, st *domain.CrawlState) []domain.ProductRecord {
	if s.stateManager != nil {
		if last, err := s.stateManager.GetLastProcessedPage(ctx, leaf.UID); err == nil && last > 0 {
			log.Debugf("Previous run reached page %d for category %s", last, leaf.UID)
		}
	}

	records := s.fetchCategoryPages(ctx, leaf.UID, 1, 1, st)
	log.Infof("✅ Completed category %s (%s): %d records", leaf.Name, leaf.UID, len(records))
	return records
}

// fetchCategoryPages walks one category's listing page by page starting at
// startPage. Page N+1 is never requested before page N's response is
// consumed; the loop ends on the last page, an empty page, or any fetch
// failure. Failures end pagination for this category only.
func (s *Service) fetchCategoryPages(ctx context.Context, categoryUID string, startPage, startAttempt int, st *domain.CrawlState) []domain.ProductRecord {
	records := make([]domain.ProductRecord, 0)

	for page := startPage; ; page++ {
		result, err := s.client.GetProductPage(ctx, categoryUID, page)
		if err != nil {
			st.AddError()
			attempt := 1
			if page == startPage {
				attempt = startAttempt
			}
			s.handlePageFailure(ctx, categoryUID, page, attempt, err)
			return records
		}

		st.AddPage()
		log.Infof("📄 Scraped %d products from category %s page %d/%d",
			len(result.Items), categoryUID, page, result.TotalPages)

		for _, item := range result.Items {
			records = append(records, s.normalizer.Normalize(item))
		}

		if s.stateManager != nil {
			if err := s.stateManager.SetLastProcessedPage(ctx, categoryUID, page); err != nil {
				log.Warnf("⚠️ Failed to record progress for category %s: %v", categoryUID, err)
			}
		}

		if len(result.Items) == 0 || page >= result.TotalPages {
			return records
		}
	}
}

func (s *Service) handlePageFailure(ctx context.Context, categoryUID string, page, attempt int, cause error) {
	log.Errorf("❌ Failed to fetch page %d for category %s: %v", page, categoryUID, cause)

	if s.queue == nil {
		return
	}
	if errors.Is(cause, client.ErrGraphQL) {
		// Payload errors are deterministic; retrying re-fails identically.
		return
	}
	if attempt > s.maxRetries {
		log.Errorf("🛑 Giving up on category %s page %d after %d attempts", categoryUID, page, attempt)
		return
	}

	retry := &task.PageRetryTask{
		CategoryUID: categoryUID,
		Page:        page,
		RetryCount:  attempt,
		Error:       cause.Error(),
	}
	if _, err := s.queue.AddTask(ctx, retry); err != nil {
		log.Errorf("❌ Failed to add page %d to retry queue: %v", page, err)
	} else {
		log.Warnf("🔄 Added category %s page %d to retry queue (attempt %d)", categoryUID, page, attempt)
	}
}

// discardLeftoverRetries empties the retry stream before a run starts.
// Tasks parked by an earlier run belong to that run's output document;
// replaying them here would duplicate products this run crawls anyway.
func (s *Service) discardLeftoverRetries(ctx context.Context) {
	consumer := fmt.Sprintf("janitor-%d", time.Now().UnixNano())
	discarded := 0

	stale, err := s.queue.AutoClaim(ctx, s.groupName, consumer, queue.PageRetryStream, s.minIdleTime)
	if err != nil {
		log.Warnf("⚠️ Failed to claim stale retry tasks: %v", err)
	}
	for _, msg := range stale {
		if err := s.queue.AckTask(ctx, queue.PageRetryStream, s.groupName, msg.ID); err != nil {
			log.Warnf("⚠️ Failed to discard stale retry task %s: %v", msg.ID, err)
			continue
		}
		discarded++
	}

	for {
		msg, err := s.queue.GetTask(ctx, s.groupName, consumer, queue.PageRetryStream)
		if err != nil {
			log.Warnf("⚠️ Failed to read leftover retry tasks: %v", err)
			break
		}
		if msg == nil {
			break
		}
		if err := s.queue.AckTask(ctx, queue.PageRetryStream, s.groupName, msg.ID); err != nil {
			log.Warnf("⚠️ Failed to discard leftover retry task %s: %v", msg.ID, err)
			continue
		}
		discarded++
	}

	if discarded > 0 {
		log.Infof("🗑️ Discarded %d retry tasks left over from a previous run", discarded)
	}
}

// drainRetries processes the retry stream until it is empty, grouping the
// recovered records by category uid. Re-failures requeue themselves with a
// bumped attempt count, so the loop settles once every failed page either
// recovers or exhausts its attempts.
func (s *Service) drainRetries(ctx context.Context, st *domain.CrawlState) map[string][]domain.ProductRecord {
	recovered := make(map[string][]domain.ProductRecord)
	consumer := fmt.Sprintf("retry-worker-%d", time.Now().UnixNano())

	for {
		if ctx.Err() != nil {
			return recovered
		}

		msg, err := s.queue.GetTask(ctx, s.groupName, consumer, queue.PageRetryStream)
		if err != nil {
			log.Errorf("❌ Failed to read retry task: %v", err)
			return recovered
		}
		if msg == nil {
			return recovered // drained
		}

		uid, records := s.processRetry(ctx, msg, st)
		if len(records) > 0 {
			recovered[uid] = append(recovered[uid], records...)
		}

		if err := s.queue.AckTask(ctx, queue.PageRetryStream, s.groupName, msg.ID); err != nil {
			log.Warnf("⚠️ Failed to ack retry task %s: %v", msg.ID, err)
		}
	}
}

func (s *Service) processRetry(ctx context.Context, msg *redis.XMessage, st *domain.CrawlState) (string, []domain.ProductRecord) {
	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		log.Errorf("❌ Invalid task data in retry message %s", msg.ID)
		return "", nil
	}

	retry, err := task.UnmarshalTask[*task.PageRetryTask]([]byte(taskData))
	if err != nil {
		log.Errorf("❌ Failed to unmarshal retry task %s: %v", msg.ID, err)
		return "", nil
	}

	log.Infof("🔄 Retrying category %s from page %d (attempt %d)",
		retry.CategoryUID, retry.Page, retry.RetryCount+1)

	// Resuming from the failed page also picks up the pages after it that
	// the aborted pagination never reached.
	records := s.fetchCategoryPages(ctx, retry.CategoryUID, retry.Page, retry.RetryCount+1, st)
	if len(records) > 0 {
		log.Infof("✅ Recovered %d records for category %s from page %d",
			len(records), retry.CategoryUID, retry.Page)
	}
	return retry.CategoryUID, records
}
