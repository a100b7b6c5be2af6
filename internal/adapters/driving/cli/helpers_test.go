package cli

import (
	"context"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driving"
)

// mockIngestor implements driving.Ingestor for command tests.
type mockIngestor struct {
	version   *domain.DocumentVersion
	ingestErr error
	status    *driving.IngestStatus
	statusErr error
}

func (m *mockIngestor) Ingest(_ context.Context, doc domain.ExtractedDocument) (*domain.DocumentVersion, error) {
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	if m.version != nil {
		return m.version, nil
	}
	return &domain.DocumentVersion{DocumentID: doc.DocumentID, Number: 1}, nil
}

func (m *mockIngestor) Status(_ context.Context, documentID string) (*driving.IngestStatus, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if m.status != nil {
		return m.status, nil
	}
	return &driving.IngestStatus{DocumentID: documentID, State: domain.IngestStateReady}, nil
}

// mockTutor implements driving.Tutor for command tests.
type mockTutor struct {
	answer   *domain.Answer
	askErr   error
	resetErr error

	lastAsk   driving.AskRequest
	resetKeys []string
}

func (m *mockTutor) AskQuestion(_ context.Context, req driving.AskRequest) (*domain.Answer, error) {
	m.lastAsk = req
	if m.askErr != nil {
		return nil, m.askErr
	}
	if m.answer != nil {
		return m.answer, nil
	}
	return &domain.Answer{Text: "mock answer", Language: req.Language, Grounded: true}, nil
}

func (m *mockTutor) ResetConversation(_ context.Context, studentID, chapterID string) error {
	m.resetKeys = append(m.resetKeys, studentID+"/"+chapterID)
	return m.resetErr
}

// setupTestServices wires mock services into the package and returns a
// cleanup that restores the previous ones.
func setupTestServices() func() {
	prevIngest := ingestService
	prevTutor := tutorService
	SetServices(&mockIngestor{}, &mockTutor{})
	return func() {
		ingestService = prevIngest
		tutorService = prevTutor
	}
}
