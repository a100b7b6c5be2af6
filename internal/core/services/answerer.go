package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

// citationMarker matches the [src N] markers the generator is instructed to
// emit after each claim.
var citationMarker = regexp.MustCompile(`\[src\s+(\d+)\]`)

// GroundedAnswerer composes a prompt from retrieved segments and conversation
// history, invokes the external generator, and enforces the grounding
// contract. The generator is untrusted: every citation it emits is
// cross-checked against the segments actually supplied, and citations that
// reference anything else are stripped with the answer marked ungrounded.
type GroundedAnswerer struct {
	llm driven.LLMService

	maxAttempts int
	backoffBase time.Duration
	maxTokens   int
}

// AnswererConfig configures generation behaviour.
type AnswererConfig struct {
	// MaxAttempts caps retries for timeouts and rate limits.
	MaxAttempts int

	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration

	// MaxTokens bounds the generated answer length.
	MaxTokens int
}

// NewGroundedAnswerer creates an answerer over the given generator.
func NewGroundedAnswerer(llm driven.LLMService, cfg AnswererConfig) *GroundedAnswerer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	return &GroundedAnswerer{
		llm:         llm,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		maxTokens:   cfg.MaxTokens,
	}
}

// Answer produces a citation-annotated answer for the question.
//
// If no segments survived retrieval, the fixed insufficient-content answer is
// returned without invoking the generator at all. Generator timeouts and
// rate limits are retried with exponential backoff; once the attempt cap is
// exhausted the answer degrades to the insufficient-content form rather than
// propagating the failure.
func (a *GroundedAnswerer) Answer(
	ctx context.Context,
	question string,
	segments []domain.RetrievedSegment,
	history []domain.Turn,
	language string,
) (*domain.Answer, error) {
	if len(segments) == 0 {
		logger.Info("No segments above threshold, returning insufficient-content answer")
		return a.InsufficientAnswer(language), nil
	}
	if a.llm == nil {
		return nil, domain.ErrGeneratorUnavailable
	}

	messages := a.buildMessages(question, segments, history, language)

	raw, err := a.generateWithRetry(ctx, messages)
	if err != nil {
		logger.Warn("Generation failed after %d attempts: %v", a.maxAttempts, err)
		return a.InsufficientAnswer(language), nil
	}

	text, citations, grounded := a.validateCitations(raw, segments)

	return &domain.Answer{
		Text:      text,
		Language:  language,
		Citations: citations,
		Grounded:  grounded,
	}, nil
}

// buildMessages assembles the chat payload: a system prompt that presents
// the segments as the only permissible factual source, the bounded
// conversation history, and the question.
func (a *GroundedAnswerer) buildMessages(
	question string,
	segments []domain.RetrievedSegment,
	history []domain.Turn,
	language string,
) []driven.ChatMessage {
	var sys strings.Builder
	sys.WriteString("You are a tutor answering questions from a student using their curriculum textbook. ")
	sys.WriteString("Answer using ONLY the numbered source excerpts below. ")
	sys.WriteString("After every claim, cite the excerpt that supports it by writing its marker, e.g. [src 1]. ")
	sys.WriteString("If the excerpts do not support a claim, do not make it. ")
	sys.WriteString("Never invent information that is not in the excerpts.\n")
	if language != "" {
		fmt.Fprintf(&sys, "Answer in %s.\n", language)
	}

	sys.WriteString("\nSource excerpts:\n")
	for i, seg := range segments {
		fmt.Fprintf(&sys, "[src %d] (chapter %s, %q, page %d, %s):\n%s\n\n",
			i+1, seg.ChapterID, seg.SectionTitle, seg.PageNumber, seg.Type, seg.Text)
	}

	messages := make([]driven.ChatMessage, 0, len(history)+2)
	messages = append(messages, driven.ChatMessage{Role: "system", Content: sys.String()})

	for _, turn := range history {
		role := "user"
		if turn.Role == domain.RoleTutor {
			role = "assistant"
		}
		messages = append(messages, driven.ChatMessage{Role: role, Content: turn.Text})
	}

	messages = append(messages, driven.ChatMessage{Role: "user", Content: question})
	return messages
}

// generateWithRetry calls the generator, retrying transient failures with
// exponential backoff up to the attempt cap.
func (a *GroundedAnswerer) generateWithRetry(ctx context.Context, messages []driven.ChatMessage) (string, error) {
	opts := driven.ChatOptions{
		MaxTokens:   a.maxTokens,
		Temperature: 0.2,
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		raw, err := a.llm.Chat(ctx, messages, opts)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !domain.IsRetryable(err) && !errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if attempt == a.maxAttempts {
			break
		}

		delay := a.backoffBase << (attempt - 1)
		logger.Debug("Generation attempt %d failed (%v), retrying in %s", attempt, err, delay)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", lastErr
}

// validateCitations extracts [src N] markers, maps valid ones to citations
// of the segments actually supplied, strips the markers from the text, and
// reports whether every marker was valid. A marker referencing a source that
// was never supplied flips grounded to false.
func (a *GroundedAnswerer) validateCitations(
	raw string,
	segments []domain.RetrievedSegment,
) (text string, citations []domain.Citation, grounded bool) {
	grounded = true
	seen := make(map[domain.Citation]bool)

	for _, match := range citationMarker.FindAllStringSubmatch(raw, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(segments) {
			logger.Warn("Generator cited unknown source %q, stripping", match[0])
			grounded = false
			continue
		}

		seg := segments[n-1]
		citation := domain.Citation{
			ChapterID:    seg.ChapterID,
			SectionTitle: seg.SectionTitle,
			PageNumber:   seg.PageNumber,
		}
		if !seen[citation] {
			seen[citation] = true
			citations = append(citations, citation)
		}
	}

	// An answer with no verifiable citation at all is not grounded.
	if len(citations) == 0 {
		grounded = false
	}

	text = citationMarker.ReplaceAllString(raw, "")
	text = strings.Join(strings.Fields(text), " ")
	return text, citations, grounded
}

// InsufficientAnswer is the fixed answer for questions the curriculum cannot
// support: ungrounded, no citations, and an invitation to stay in scope.
func (a *GroundedAnswerer) InsufficientAnswer(language string) *domain.Answer {
	return &domain.Answer{
		Text: "I could not find anything in your textbook that covers this question. " +
			"Try rephrasing it, or ask me about a topic from the chapter you are currently studying.",
		Language:  language,
		Citations: nil,
		Grounded:  false,
	}
}
