package items

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Item
	gets   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Item{}}
}

func (m *memoryRepo) List(ctx context.Context, filters Filters) ([]Item, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, it := range m.items {
		if filters.Search != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(filters.Search)) {
			continue
		}
		if filters.Category != "" && it.Category != filters.Category {
			continue
		}
		if filters.LowStock && !it.BelowReorder() {
			continue
		}
		if filters.IsActive != nil && it.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	it, ok := m.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: item", shared.ErrNotFound)
	}
	return it, nil
}

func (m *memoryRepo) Create(ctx context.Context, item Item) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Code == item.Code {
			return Item{}, fmt.Errorf("%w: item", shared.ErrDuplicate)
		}
	}
	m.nextID++
	item.ID = m.nextID
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = item
	return item, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, item Item) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: item", shared.ErrNotFound)
	}
	item.ID = id
	item.QuantityOnHand = current.QuantityOnHand
	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = time.Now()
	m.items[id] = item
	return item, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%w: item", shared.ErrNotFound)
	}
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) CountLowStock(ctx context.Context) (int, error) {
	list, _, _ := m.List(ctx, Filters{LowStock: true})
	return len(list), nil
}

func (m *memoryRepo) setStock(id int64, qty float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.items[id]
	it.QuantityOnHand = qty
	m.items[id] = it
}

type recordingAudit struct {
	actions []string
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *miniredis.Miniredis, *recordingAudit) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	return NewService(repo, NewRedisCache(client, time.Minute), audit, nil), repo, mr, audit
}

func TestCreateNormalisesAndValidates(t *testing.T) {
	svc, _, _, audit := newTestService(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, ItemInput{Code: " bolt-10 ", Name: "Bolt M10", UnitPrice: 2.5, ReorderLevel: 50})
	require.NoError(t, err)
	require.Equal(t, "BOLT-10", item.Code)
	require.Equal(t, "NOS", item.UOM)
	require.True(t, item.IsActive)
	require.Zero(t, item.QuantityOnHand)

	_, err = svc.Create(ctx, ItemInput{Code: "BOLT-10", Name: "Duplicate"})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	_, err = svc.Create(ctx, ItemInput{Code: "X", Name: "Negative", UnitPrice: -1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, ItemInput{Code: "   ", Name: "Blank"})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.Equal(t, []string{"item.create"}, audit.actions)
}

func TestGetReadsThroughCache(t *testing.T) {
	svc, repo, mr, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, ItemInput{Code: "NUT", Name: "Nut"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, item.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.gets)
	require.True(t, mr.Exists(cacheKey(item.ID)))

	_, err = svc.Update(ctx, item.ID, ItemInput{Code: "NUT", Name: "Hex Nut"})
	require.NoError(t, err)
	require.False(t, mr.Exists(cacheKey(item.ID)))

	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Hex Nut", got.Name)
	require.Equal(t, 2, repo.gets)
}

func TestUpdateKeepsStockOnHand(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, ItemInput{Code: "PIPE", Name: "Pipe"})
	require.NoError(t, err)
	repo.setStock(item.ID, 40)

	updated, err := svc.Update(ctx, item.ID, ItemInput{Code: "PIPE", Name: "Steel pipe", ReorderLevel: 10})
	require.NoError(t, err)
	require.Equal(t, 40.0, updated.QuantityOnHand)

	_, err = svc.Update(ctx, 999, ItemInput{Code: "NOPE", Name: "Missing"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLowStockAndDelete(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, ItemInput{Code: "A", Name: "Alpha", ReorderLevel: 10})
	b, _ := svc.Create(ctx, ItemInput{Code: "B", Name: "Beta", ReorderLevel: 10})
	repo.setStock(a.ID, 3)
	repo.setStock(b.ID, 30)

	low, meta, err := svc.LowStock(ctx, Filters{ListFilters: shared.ListFilters{Page: 1, Limit: 20}})
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "A", low[0].Code)
	require.Equal(t, 1, meta.Total)

	n, err := svc.CountLowStock(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, svc.Delete(ctx, b.ID))
	require.ErrorIs(t, svc.Delete(ctx, b.ID), shared.ErrNotFound)
}

type gatedRepo struct {
	*memoryRepo
	gate chan struct{}
}

func (g gatedRepo) Get(ctx context.Context, id int64) (Item, error) {
	<-g.gate
	return g.memoryRepo.Get(ctx, id)
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	repo := newMemoryRepo()
	item, err := repo.Create(context.Background(), Item{Code: "WASHER", Name: "Washer"})
	require.NoError(t, err)
	svc := NewService(gatedRepo{memoryRepo: repo, gate: make(chan struct{})}, nil, nil, nil)
	gate := svc.repo.(gatedRepo).gate

	var wg sync.WaitGroup
	names := make([]string, 5)
	for i := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Get(context.Background(), item.ID)
			if err == nil {
				names[i] = got.Name
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.Equal(t, []string{"Washer", "Washer", "Washer", "Washer", "Washer"}, names)
	require.Equal(t, 1, repo.gets)
}

func TestGetGivesUpWhenCallerCancels(t *testing.T) {
	repo := newMemoryRepo()
	item, err := repo.Create(context.Background(), Item{Code: "SHIM", Name: "Shim"})
	require.NoError(t, err)
	gate := make(chan struct{})
	defer close(gate)
	svc := NewService(gatedRepo{memoryRepo: repo, gate: gate}, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Get(ctx, item.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// slowRowRepo reads the row, then holds it until release is closed.
type slowRowRepo struct {
	*memoryRepo
	read    chan struct{}
	release chan struct{}
}

func (r slowRowRepo) Get(ctx context.Context, id int64) (Item, error) {
	item, err := r.memoryRepo.Get(ctx, id)
	close(r.read)
	<-r.release
	return item, err
}

func TestLoadDoesNotCacheRowInvalidatedMidway(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newMemoryRepo()
	item, err := repo.Create(context.Background(), Item{Code: "VALVE", Name: "Valve"})
	require.NoError(t, err)
	slow := slowRowRepo{memoryRepo: repo, read: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(slow, NewRedisCache(client, time.Minute), nil, nil)

	done := make(chan Item)
	go func() {
		got, _ := svc.Get(context.Background(), item.ID)
		done <- got
	}()
	<-slow.read
	repo.setStock(item.ID, 25)
	svc.Invalidate(context.Background(), item.ID)
	close(slow.release)

	stale := <-done
	require.Zero(t, stale.QuantityOnHand)
	require.False(t, mr.Exists(cacheKey(item.ID)), "row read before the stock change must not be cached")

	fresh, err := NewService(repo, NewRedisCache(client, time.Minute), nil, nil).Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 25.0, fresh.QuantityOnHand)
	require.True(t, mr.Exists(cacheKey(item.ID)))
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, shared.AuditLog) error {
	return errors.New("audit table unavailable")
}

func TestAuditFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(newMemoryRepo(), nil, failingAudit{}, logger)

	_, err := svc.Create(context.Background(), ItemInput{Code: "CLAMP", Name: "Clamp"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "item audit")
	require.Contains(t, buf.String(), "action=item.create")
	require.Contains(t, buf.String(), "audit table unavailable")
}
