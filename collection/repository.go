package collection

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/collection-engine/generic"
)

// =============================================================================
// REPOSITORY - Persistence collaborator
// =============================================================================

// Repository persists agreements and their occurrences.
//
// Save is a compare-and-swap on the agreement's version: it fails with
// generic.ErrConcurrentModification when the stored version is not
// expectedVersion, and returns the new version otherwise. Occurrences are
// upserted by id and never deleted.
type Repository interface {
	Create(ctx context.Context, a Agreement) (Snapshot, error)
	Load(ctx context.Context, id AgreementID) (Snapshot, error)
	Save(ctx context.Context, t *Transition, expectedVersion int64) (int64, error)
	List(ctx context.Context, status AgreementStatus) ([]Snapshot, error)
}

// =============================================================================
// MEMORY REPOSITORY - For tests, the CLI and local development
// =============================================================================

type MemoryRepository struct {
	mu    sync.RWMutex
	snaps map[AgreementID]Snapshot
	order []AgreementID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{snaps: make(map[AgreementID]Snapshot)}
}

func (m *MemoryRepository) Create(_ context.Context, a Agreement) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.snaps[a.ID]; exists {
		return Snapshot{}, generic.Invalid("id", "agreement %s already exists", a.ID)
	}
	snap := Snapshot{Agreement: a.clone(), Version: 1}
	m.snaps[a.ID] = snap
	m.order = append(m.order, a.ID)
	return snap.clone(), nil
}

func (m *MemoryRepository) Load(_ context.Context, id AgreementID) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snaps[id]
	if !ok {
		return Snapshot{}, &generic.NotFoundError{Kind: "agreement", ID: string(id)}
	}
	return snap.clone(), nil
}

func (m *MemoryRepository) Save(_ context.Context, t *Transition, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.snaps[t.Agreement.ID]
	if !ok {
		return 0, &generic.NotFoundError{Kind: "agreement", ID: string(t.Agreement.ID)}
	}
	if current.Version != expectedVersion {
		return 0, generic.ErrConcurrentModification
	}

	stored := t.Snapshot(expectedVersion + 1).clone()
	m.snaps[t.Agreement.ID] = stored
	return stored.Version, nil
}

func (m *MemoryRepository) List(_ context.Context, status AgreementStatus) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Snapshot
	for _, id := range m.order {
		snap := m.snaps[id]
		if status != "" && snap.Agreement.Status != status {
			continue
		}
		out = append(out, snap.clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Agreement.CreatedAt.Before(out[j].Agreement.CreatedAt)
	})
	return out, nil
}
