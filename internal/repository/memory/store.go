// Package memory provides in-process repositories for local development and
// tests. Data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/3Health-View/backend/internal/domain"
	apperrors "github.com/3Health-View/backend/pkg/errors"
)

// UserRepository implements repository.UserRepository in memory.
type UserRepository struct {
	mu      sync.RWMutex
	byEmail map[string]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byEmail: make(map[string]domain.User)}
}

func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return apperrors.AlreadyExists("User already exists.")
	}
	r.byEmail[u.Email] = *u
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byEmail[email]
	if !ok {
		return nil, apperrors.NotFound("User does not exist")
	}
	return &u, nil
}

func (r *UserRepository) UpdateOuraTokens(_ context.Context, email, ouraToken, ouraRefresh string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byEmail[email]
	if !ok {
		return apperrors.NotFound("User does not exist")
	}
	u.OuraToken = ouraToken
	u.OuraRefresh = ouraRefresh
	r.byEmail[email] = u
	return nil
}

// docKey identifies a stored document. sourceID is empty except for the
// main series.
type docKey struct {
	email    string
	day      string
	sourceID string
}

// DocumentRepository implements repository.DocumentRepository in memory.
// Documents are kept in insertion order per collection.
type DocumentRepository struct {
	mu      sync.RWMutex
	display []domain.DisplayRecord
	raw     map[domain.Collection][]domain.RawRecord
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{raw: make(map[domain.Collection][]domain.RawRecord)}
}

func (r *DocumentRepository) LatestDay(_ context.Context, email string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := ""
	for _, rec := range r.display {
		if rec.Email == email && rec.Day > latest {
			latest = rec.Day
		}
	}
	if latest == "" {
		return domain.EpochDay, nil
	}
	return latest, nil
}

func (r *DocumentRepository) ListDisplay(_ context.Context, email string) ([]domain.DisplayRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.DisplayRecord
	for _, rec := range r.display {
		if rec.Email == email {
			out = append(out, rec)
		}
	}
	domain.SortByDayDesc(out)
	return out, nil
}

func (r *DocumentRepository) UpsertDisplay(_ context.Context, records []domain.DisplayRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		kept := r.display[:0]
		for _, existing := range r.display {
			if existing.Email != rec.Email || existing.Day != rec.Day {
				kept = append(kept, existing)
			}
		}
		r.display = append(kept, rec)
	}
	return nil
}

func (r *DocumentRepository) UpsertRaw(_ context.Context, series domain.Series, records []domain.RawRecord) error {
	collection := series.Collection()
	if !collection.Valid() {
		return fmt.Errorf("unknown collection %q", collection)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keyOf := func(rec domain.RawRecord) docKey {
		k := docKey{email: rec.Email, day: rec.Day}
		if series == domain.SeriesMain {
			k.sourceID = rec.SourceID
		}
		return k
	}

	docs := r.raw[collection]
	for _, rec := range records {
		key := keyOf(rec)
		kept := docs[:0]
		for _, existing := range docs {
			if keyOf(existing) != key {
				kept = append(kept, existing)
			}
		}
		docs = append(kept, rec)
	}
	r.raw[collection] = docs
	return nil
}

func (r *DocumentRepository) DeleteByEmail(_ context.Context, collection domain.Collection, email string) (int64, error) {
	if !collection.Valid() {
		return 0, fmt.Errorf("unknown collection %q", collection)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	if collection == domain.CollectionDisplay {
		kept := r.display[:0]
		for _, rec := range r.display {
			if rec.Email == email {
				deleted++
				continue
			}
			kept = append(kept, rec)
		}
		r.display = kept
		return deleted, nil
	}

	docs := r.raw[collection]
	kept := docs[:0]
	for _, rec := range docs {
		if rec.Email == email {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.raw[collection] = kept
	return deleted, nil
}

// Raw returns a copy of the raw documents stored in collection.
func (r *DocumentRepository) Raw(collection domain.Collection) []domain.RawRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.RawRecord(nil), r.raw[collection]...)
}
