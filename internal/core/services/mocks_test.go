package services

import (
	"context"
	"sync"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Vectors are derived from the text so different texts embed differently.
type mockEmbeddingService struct {
	mu sync.Mutex

	dims      int
	embedErr  error
	batchErrs []error // consumed per EmbedBatch call; nil entries succeed

	embedCalls int
	batchCalls int
	batchTexts [][]string
}

func (m *mockEmbeddingService) vectorFor(text string) []float32 {
	dims := m.Dimensions()
	vec := make([]float32, dims)
	for i, r := range text {
		vec[i%dims] += float32(r) / 1000
	}
	if len(text) == 0 {
		vec[0] = 1
	}
	return vec
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()

	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	call := m.batchCalls
	m.batchCalls++
	m.batchTexts = append(m.batchTexts, texts)
	m.mu.Unlock()

	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if call < len(m.batchErrs) && m.batchErrs[call] != nil {
		return nil, m.batchErrs[call]
	}

	result := make([][]float32, len(texts))
	for i, t := range texts {
		result[i] = m.vectorFor(t)
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 8
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// embeddedTexts returns every text embedded across all batch calls.
func (m *mockEmbeddingService) embeddedTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var texts []string
	for _, batch := range m.batchTexts {
		texts = append(texts, batch...)
	}
	return texts
}

// mockVectorIndex implements driven.VectorIndex for testing. It records all
// writes and serves queries from scripted hits.
type mockVectorIndex struct {
	mu sync.Mutex

	hits      []driven.VectorHit
	queryErr  error
	upsertErr error
	deleteErr error

	upserted   []domain.EmbeddingRecord
	deletedIDs []string
}

func (m *mockVectorIndex) Upsert(_ context.Context, records []domain.EmbeddingRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockVectorIndex) DeleteByDocument(_ context.Context, _ string) error {
	return m.deleteErr
}

func (m *mockVectorIndex) DeleteByUnitIDs(_ context.Context, unitIDs []string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedIDs = append(m.deletedIDs, unitIDs...)
	return nil
}

func (m *mockVectorIndex) Query(_ context.Context, _ []float32, k int, _ domain.ScopeFilter) ([]driven.VectorHit, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockVectorIndex) Close() error {
	return nil
}

func (m *mockVectorIndex) upsertedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(m.upserted))
	for i, r := range m.upserted {
		ids[i] = r.UnitID
	}
	return ids
}

// mockVersionStore implements driven.VersionStore for testing.
type mockVersionStore struct {
	mu sync.Mutex

	versions map[string]domain.DocumentVersion
	saveErr  error
	getErr   error
}

func newMockVersionStore() *mockVersionStore {
	return &mockVersionStore{versions: make(map[string]domain.DocumentVersion)}
}

func (m *mockVersionStore) Save(_ context.Context, version domain.DocumentVersion) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[version.DocumentID] = version
	return nil
}

func (m *mockVersionStore) Get(_ context.Context, documentID string) (*domain.DocumentVersion, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (m *mockVersionStore) Delete(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.versions, documentID)
	return nil
}

func (m *mockVersionStore) List(_ context.Context) ([]domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DocumentVersion, 0, len(m.versions))
	for _, v := range m.versions {
		out = append(out, v)
	}
	return out, nil
}

// mockLLMService implements driven.LLMService for testing. Chat returns
// scripted errors per call, then the fixed response.
type mockLLMService struct {
	mu sync.Mutex

	response string
	chatErrs []error // consumed per Chat call; nil entries succeed

	chatCalls    int
	lastMessages []driven.ChatMessage
}

func (m *mockLLMService) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	return m.response, nil
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	call := m.chatCalls
	m.chatCalls++
	m.lastMessages = messages
	m.mu.Unlock()

	if call < len(m.chatErrs) && m.chatErrs[call] != nil {
		return "", m.chatErrs[call]
	}
	return m.response, nil
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}
