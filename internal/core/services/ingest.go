package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driving"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

// Ensure IngestionCoordinator implements the interface.
var _ driving.Ingestor = (*IngestionCoordinator)(nil)

// IngestionCoordinator drives Segmenter → Embedder → VectorIndex for full
// documents and for incremental re-ingestion of revised documents. A
// content-hash diff against the previous DocumentVersion ensures unchanged
// units are never re-embedded or re-stored. The new version is committed to
// the version store only after index writes succeed; on failure the previous
// version remains authoritative.
type IngestionCoordinator struct {
	segmenter *Segmenter
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	versions  driven.VersionStore

	batchSize   int
	concurrency int
	limiter     *rate.Limiter

	// Run tracking. inFlight serializes ingestion per document ID;
	// runs keeps the current or most recent status per document.
	mu       sync.RWMutex
	inFlight map[string]bool
	runs     map[string]*driving.IngestStatus
}

// IngestionConfig holds batching parameters for the coordinator.
type IngestionConfig struct {
	// BatchSize is the number of units embedded per batch call.
	BatchSize int

	// Concurrency caps parallel batch embedding calls.
	Concurrency int

	// RatePerSecond limits embedding calls to respect external rate limits.
	RatePerSecond int
}

// NewIngestionCoordinator creates an ingestion coordinator.
func NewIngestionCoordinator(
	segmenter *Segmenter,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	versions driven.VersionStore,
	cfg IngestionConfig,
) *IngestionCoordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}

	return &IngestionCoordinator{
		segmenter:   segmenter,
		embedder:    embedder,
		index:       index,
		versions:    versions,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		inFlight:    make(map[string]bool),
		runs:        make(map[string]*driving.IngestStatus),
	}
}

// Ingest processes a document end to end and returns the committed version.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (c *IngestionCoordinator) Ingest(ctx context.Context, doc domain.ExtractedDocument) (*domain.DocumentVersion, error) {
	if doc.DocumentID == "" {
		return nil, fmt.Errorf("%w: missing document id", domain.ErrInvalidInput)
	}
	if c.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if c.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	// Serialize per document: concurrent re-ingestion would race the diff.
	if !c.begin(doc.DocumentID) {
		return nil, fmt.Errorf("document %s: %w", doc.DocumentID, domain.ErrIngestInProgress)
	}
	defer c.end(doc.DocumentID)

	logger.Section("Ingestion")
	logger.Info("Ingesting document %s (%s / %s / %s)", doc.DocumentID, doc.Board, doc.Grade, doc.Subject)

	// 1. Segment.
	c.setState(doc.DocumentID, domain.IngestStateSegmenting)
	units, err := c.segmenter.Segment(doc)
	if err != nil {
		return nil, c.fail(doc.DocumentID, fmt.Errorf("segment: %w", err))
	}
	c.setTotal(doc.DocumentID, len(units))

	// 2. Load the previous version for diffing.
	previous, err := c.versions.Get(ctx, doc.DocumentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, c.fail(doc.DocumentID, fmt.Errorf("get previous version: %w", err))
	}

	versionNumber := 1
	var toEmbed []domain.ContentUnit
	var toDelete []string

	if previous == nil {
		toEmbed = units
	} else {
		c.setState(doc.DocumentID, domain.IngestStateDiffing)
		versionNumber = previous.Number + 1
		toEmbed, toDelete = diffUnits(previous, units)
		logger.Info("Diff for %s: %d unchanged, %d to embed, %d to delete",
			doc.DocumentID, len(units)-len(toEmbed), len(toEmbed), len(toDelete))
	}

	// 3. Embed changed and new units in bounded batches.
	c.setState(doc.DocumentID, domain.IngestStateEmbedding)
	records, err := c.embedUnits(ctx, doc, versionNumber, toEmbed)
	if err != nil {
		return nil, c.fail(doc.DocumentID, fmt.Errorf("embed: %w", err))
	}

	// 4. Store. Upsert, drop superseded vectors, then commit the version.
	// Every index write happens before the commit: if one fails, the upserted
	// records are removed again and the previous version stays authoritative.
	// Crucially the superseded IDs still appear in the previous manifest, so
	// a retried ingest diffs against it and deletes them again.
	c.setState(doc.DocumentID, domain.IngestStateStoring)
	if len(records) > 0 {
		if err := c.index.Upsert(ctx, records); err != nil {
			c.compensate(ctx, records)
			return nil, c.fail(doc.DocumentID, fmt.Errorf("%w: upsert: %w", domain.ErrIndexWrite, err))
		}
	}

	if len(toDelete) > 0 {
		if err := c.index.DeleteByUnitIDs(ctx, toDelete); err != nil {
			c.compensate(ctx, records)
			return nil, c.fail(doc.DocumentID, fmt.Errorf("%w: delete superseded units: %w", domain.ErrIndexWrite, err))
		}
		c.addDeleted(doc.DocumentID, len(toDelete))
	}

	version := domain.DocumentVersion{
		ID:         uuid.New().String(),
		DocumentID: doc.DocumentID,
		Board:      doc.Board,
		Grade:      doc.Grade,
		Subject:    doc.Subject,
		Number:     versionNumber,
		Units:      unitRefs(units),
		CreatedAt:  time.Now(),
	}
	if err := c.versions.Save(ctx, version); err != nil {
		c.compensate(ctx, records)
		return nil, c.fail(doc.DocumentID, fmt.Errorf("commit version: %w", err))
	}

	c.setState(doc.DocumentID, domain.IngestStateReady)
	logger.Info("Ingestion complete: %s version %d, %d units (%d embedded, %d deleted)",
		doc.DocumentID, version.Number, len(units), len(records), len(toDelete))

	return &version, nil
}

// Status returns the state of the current or most recent run for a document.
func (c *IngestionCoordinator) Status(ctx context.Context, documentID string) (*driving.IngestStatus, error) {
	c.mu.RLock()
	if status, ok := c.runs[documentID]; ok {
		// Return a copy to avoid race conditions.
		snapshot := *status
		c.mu.RUnlock()
		return &snapshot, nil
	}
	c.mu.RUnlock()

	// No run this process lifetime; consult the system of record.
	if _, err := c.versions.Get(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &driving.IngestStatus{
				DocumentID: documentID,
				State:      domain.IngestStateNotIngested,
			}, nil
		}
		return nil, fmt.Errorf("get version: %w", err)
	}

	return &driving.IngestStatus{
		DocumentID: documentID,
		State:      domain.IngestStateReady,
	}, nil
}

// diffUnits compares the new unit set against the previous version by
// position-independent identity key. Units whose content hash is unchanged
// are skipped entirely; changed units supersede their predecessor; identity
// keys absent from the new set are deleted.
func diffUnits(previous *domain.DocumentVersion, units []domain.ContentUnit) (toEmbed []domain.ContentUnit, toDelete []string) {
	oldByIdentity := make(map[string]domain.UnitRef, len(previous.Units))
	for _, ref := range previous.Units {
		oldByIdentity[ref.IdentityKey] = ref
	}

	for _, unit := range units {
		old, ok := oldByIdentity[unit.IdentityKey()]
		if ok {
			delete(oldByIdentity, unit.IdentityKey())
			if old.ContentHash == unit.ContentHash {
				continue // Unchanged: no re-embedding, no re-storage.
			}
			toDelete = append(toDelete, old.UnitID)
		}
		toEmbed = append(toEmbed, unit)
	}

	// Whatever is left was removed from the document.
	for _, ref := range oldByIdentity {
		toDelete = append(toDelete, ref.UnitID)
	}

	return toEmbed, toDelete
}

// embedUnits embeds units in bounded batches with capped parallel fan-out.
// Batch embedding during ingestion is the one place parallel fan-out is
// safe; the limiter keeps the call rate inside external API limits.
func (c *IngestionCoordinator) embedUnits(
	ctx context.Context,
	doc domain.ExtractedDocument,
	versionNumber int,
	units []domain.ContentUnit,
) ([]domain.EmbeddingRecord, error) {
	if len(units) == 0 {
		return nil, nil
	}

	records := make([]domain.EmbeddingRecord, len(units))
	sem := make(chan struct{}, c.concurrency)

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for start := 0; start < len(units); start += c.batchSize {
		end := start + c.batchSize
		if end > len(units) {
			end = len(units)
		}

		wg.Add(1)
		go func(offset int, batch []domain.ContentUnit) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := c.limiter.Wait(ctx); err != nil {
				setErr(err)
				return
			}

			texts := make([]string, len(batch))
			for i, u := range batch {
				texts[i] = u.Text
			}

			vectors, err := c.embedBatchWithRetry(ctx, texts)
			if err != nil {
				setErr(fmt.Errorf("embed batch at %d: %w", offset, err))
				return
			}
			if len(vectors) != len(batch) {
				setErr(fmt.Errorf("embed batch at %d: got %d vectors for %d texts", offset, len(vectors), len(batch)))
				return
			}

			dims := c.embedder.Dimensions()
			for i, vec := range vectors {
				if dims > 0 && len(vec) != dims {
					setErr(fmt.Errorf("unit %s: %w: got %d, want %d",
						batch[i].ID, domain.ErrDimensionMismatch, len(vec), dims))
					return
				}
				records[offset+i] = domain.EmbeddingRecord{
					UnitID: batch[i].ID,
					Vector: vec,
					Metadata: domain.UnitMetadata{
						DocumentID:    doc.DocumentID,
						ChapterID:     batch[i].ChapterID,
						SectionTitle:  batch[i].SectionTitle,
						PageNumber:    batch[i].PageNumber,
						Type:          batch[i].Type,
						Board:         doc.Board,
						Grade:         doc.Grade,
						Subject:       doc.Subject,
						VersionNumber: versionNumber,
						Text:          batch[i].Text,
					},
				}
			}

			c.addEmbedded(doc.DocumentID, len(batch))
		}(start, units[start:end])
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

// embedBatchWithRetry retries transient embedding failures with exponential
// backoff; permanent failures abort the run immediately.
func (c *IngestionCoordinator) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !domain.IsRetryable(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := (500 * time.Millisecond) << (attempt - 1)
		logger.Debug("Embedding attempt %d failed (%v), retrying in %s", attempt, err, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// compensate removes freshly upserted records after a failed run so the
// index matches the still-authoritative previous version. Best effort.
func (c *IngestionCoordinator) compensate(ctx context.Context, records []domain.EmbeddingRecord) {
	if len(records) == 0 {
		return
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.UnitID
	}
	if err := c.index.DeleteByUnitIDs(ctx, ids); err != nil {
		logger.Warn("Rollback of %d upserted units failed: %v", len(ids), err)
	}
}

// unitRefs converts segmented units into version records.
func unitRefs(units []domain.ContentUnit) []domain.UnitRef {
	refs := make([]domain.UnitRef, len(units))
	for i, u := range units {
		refs[i] = domain.UnitRef{
			UnitID:       u.ID,
			IdentityKey:  u.IdentityKey(),
			ContentHash:  u.ContentHash,
			ChapterID:    u.ChapterID,
			SectionTitle: u.SectionTitle,
			PageNumber:   u.PageNumber,
			Type:         u.Type,
		}
	}
	return refs
}

// --- Run tracking ---

func (c *IngestionCoordinator) begin(documentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight[documentID] {
		return false
	}
	c.inFlight[documentID] = true
	c.runs[documentID] = &driving.IngestStatus{
		DocumentID: documentID,
		State:      domain.IngestStateNotIngested,
	}
	return true
}

func (c *IngestionCoordinator) end(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, documentID)
}

func (c *IngestionCoordinator) setState(documentID string, state domain.IngestState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status, ok := c.runs[documentID]; ok {
		status.State = state
	}
}

func (c *IngestionCoordinator) setTotal(documentID string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status, ok := c.runs[documentID]; ok {
		status.UnitsTotal = total
	}
}

func (c *IngestionCoordinator) addEmbedded(documentID string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status, ok := c.runs[documentID]; ok {
		status.UnitsEmbedded += n
	}
}

func (c *IngestionCoordinator) addDeleted(documentID string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status, ok := c.runs[documentID]; ok {
		status.UnitsDeleted += n
	}
}

// fail records a failed run and returns the error.
func (c *IngestionCoordinator) fail(documentID string, err error) error {
	c.mu.Lock()
	if status, ok := c.runs[documentID]; ok {
		status.State = domain.IngestStateFailed
		status.Error = err.Error()
	}
	c.mu.Unlock()

	logger.Warn("Ingestion of %s failed: %v", documentID, err)
	return err
}
