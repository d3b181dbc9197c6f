package access

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gatehouse-app/gatehouse/internal/settings"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// DefaultCacheTTL bounds how stale a loaded document may be. A save in
// this process invalidates the cache immediately; other processes wait
// out the TTL (accepted bounded-staleness window).
const DefaultCacheTTL = time.Minute

// Store loads and saves the access configuration document through the
// app_settings repository, with a short-TTL in-process cache.
type Store struct {
	repo   settings.Repository
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	cached *cachedDoc
}

type cachedDoc struct {
	doc           Document
	usingDefaults bool
	expires       time.Time
}

// NewStore constructs a Store. repo may be nil when no database is
// configured; every Load then yields the default document with the
// usingDefaults flag set so the UI can warn the operator.
func NewStore(repo settings.Repository, logger *slog.Logger, ttl time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Store{repo: repo, logger: logger, ttl: ttl, now: time.Now}
}

// Load returns the current document and whether hard-coded defaults are
// in effect because persistence is unconfigured. It never fails: a
// missing row, a load error or a corrupt value all degrade to the
// default document.
func (s *Store) Load(ctx context.Context) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Before(s.cached.expires) {
		return s.cached.doc.Clone(), s.cached.usingDefaults
	}

	doc, usingDefaults := s.fetch(ctx)
	s.cached = &cachedDoc{doc: doc, usingDefaults: usingDefaults, expires: s.now().Add(s.ttl)}
	return doc.Clone(), usingDefaults
}

func (s *Store) fetch(ctx context.Context) (Document, bool) {
	if s.repo == nil {
		return DefaultDocument(), true
	}

	setting, err := s.repo.GetByKey(ctx, SettingKey)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("load page access config", slog.Any("error", err))
		}
		return DefaultDocument(), false
	}

	var doc Document
	if err := json.Unmarshal([]byte(setting.Value), &doc); err != nil {
		s.logger.Error("decode page access config, falling back to defaults", slog.Any("error", err))
		return DefaultDocument(), false
	}
	if doc.Pages == nil {
		doc.Pages = map[string]Rule{}
	}
	if !doc.DefaultAccess.Valid() {
		doc.DefaultAccess = DefaultAuthenticated
	}
	return doc, false
}

// Save serializes the whole document and upserts the single settings
// row. On success the cache is invalidated so subsequent loads observe
// the new rules; on failure the prior document stays active.
func (s *Store) Save(ctx context.Context, doc Document) error {
	if s.repo == nil {
		return shared.ErrPersistenceUnavailable
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, SettingKey, string(data), SettingDescription); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate drops the cached document.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Persistent reports whether a backing repository is configured.
func (s *Store) Persistent() bool {
	return s.repo != nil
}
