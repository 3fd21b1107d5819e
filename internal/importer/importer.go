// Package importer loads markdown card files from a local directory or a git
// repository into a deck, deduplicating by content fingerprint.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seanharte/mnemo/internal/deck"
	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/parser"
	"github.com/seanharte/mnemo/internal/storage"
)

// Report summarizes one import run.
type Report struct {
	Parsed     int      `json:"parsed"`
	Created    int      `json:"created"`
	Existing   int      `json:"existing"`
	AddedCount int      `json:"addedToDeck"`
	Errors     []string `json:"errors,omitempty"`
}

// Importer reconciles card files into decks.
type Importer struct {
	db       *storage.DB
	decks    *deck.Service
	reposDir string
}

// NewImporter creates an importer. reposDir is where git checkouts live.
func NewImporter(db *storage.DB, decks *deck.Service, reposDir string) *Importer {
	return &Importer{db: db, decks: decks, reposDir: reposDir}
}

// ImportDir walks dir for .md files, parses card drafts, creates cards that
// do not exist yet for this user (by fingerprint), and adds all of them to
// the deck. Unchanged content re-imports as a no-op. A deck at its cap fails
// the whole add with no partial insert.
func (i *Importer) ImportDir(ctx context.Context, userID, deckID, dir string) (*Report, error) {
	if _, err := i.decks.Get(ctx, deckID); err != nil {
		return nil, err
	}

	report := &Report{}
	var drafts []parser.Card

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("parsing %s: %v", path, parseErr))
		}
		drafts = append(drafts, fileCards...)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, walkErr)
	}
	report.Parsed = len(drafts)

	now := time.Now()
	seen := make(map[string]bool, len(drafts))
	var cardIDs []string
	for _, draft := range drafts {
		fp := Fingerprint(draft)
		if seen[fp] {
			continue
		}
		seen[fp] = true

		existing, err := i.db.FindCardByFingerprint(ctx, userID, fp)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			report.Existing++
			cardIDs = append(cardIDs, existing.ID)
			continue
		}

		card := &domain.Flashcard{
			ID:          uuid.NewString(),
			UserID:      userID,
			Front:       draft.Front,
			Back:        draft.Back,
			Context:     draft.Context,
			Fingerprint: fp,
			Scheduling:  domain.NewSchedulingState(now),
			CreatedAt:   now,
		}
		if err := i.db.InsertCard(ctx, card); err != nil {
			return nil, err
		}
		report.Created++
		cardIDs = append(cardIDs, card.ID)
	}

	added, err := i.decks.AddCards(ctx, deckID, cardIDs)
	if err != nil {
		return report, err
	}
	report.AddedCount = added

	slog.Info("import complete",
		"dir", dir, "deck_id", deckID,
		"parsed", report.Parsed, "created", report.Created,
		"existing", report.Existing, "added", added,
		"errors", len(report.Errors))
	return report, nil
}

// ImportGit clones or pulls the repository and imports its card files.
func (i *Importer) ImportGit(ctx context.Context, userID, deckID, repoURL string) (*Report, error) {
	localPath, err := gitURLToLocalPath(i.reposDir, repoURL)
	if err != nil {
		return nil, err
	}
	if err := syncGitRepo(ctx, repoURL, localPath); err != nil {
		return nil, err
	}
	return i.ImportDir(ctx, userID, deckID, localPath)
}
