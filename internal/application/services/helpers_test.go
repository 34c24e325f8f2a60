package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aimarket/aimarket-go/internal/domain/identity"
	"github.com/aimarket/aimarket-go/internal/domain/onboarding"
	"github.com/aimarket/aimarket-go/internal/domain/user"
	schema "github.com/aimarket/aimarket-go/internal/infrastructure/database"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/localstore"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToConsole: false,
		OutputToFile:    false,
		DefaultLevel:    slog.LevelError,
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	require.NoError(t, err)
	return logger
}

func newTestLocalStore(t *testing.T, logger *logging.ChanneledLogger) *localstore.Store {
	t.Helper()
	db, err := database.NewConnection("file:" + filepath.Join(t.TempDir(), "local_state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, schema.NewTableCreator().CreateLocalStoreSchema(db.DB))
	return localstore.NewStore(db, logger)
}

// fakeOptionRepo serves a fixed catalog and counts fetches so tests can tell
// cache hits from remote round-trips.
type fakeOptionRepo struct {
	mu        sync.Mutex
	main      []onboarding.Option
	subs      map[int64][]onboarding.Option
	tags      []onboarding.Option
	err       error
	mainCalls int
	subCalls  int
	tagCalls  int
}

func (r *fakeOptionRepo) MainCategories(ctx context.Context) ([]onboarding.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mainCalls++
	if r.err != nil {
		return nil, r.err
	}
	return r.main, nil
}

func (r *fakeOptionRepo) SubCategories(ctx context.Context, parentID int64) ([]onboarding.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subCalls++
	if r.err != nil {
		return nil, r.err
	}
	return r.subs[parentID], nil
}

func (r *fakeOptionRepo) Tags(ctx context.Context) ([]onboarding.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tagCalls++
	if r.err != nil {
		return nil, r.err
	}
	return r.tags, nil
}

func (r *fakeOptionRepo) calls() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mainCalls, r.subCalls, r.tagCalls
}

func seededOptionRepo() *fakeOptionRepo {
	return &fakeOptionRepo{
		main: []onboarding.Option{{ID: 1, Name: "Digital Goods"}, {ID: 2, Name: "Services"}},
		subs: map[int64][]onboarding.Option{
			1: {{ID: 10, Name: "Templates"}, {ID: 11, Name: "Datasets"}},
			2: {{ID: 20, Name: "Consulting"}},
		},
		tags: []onboarding.Option{{ID: 100, Name: "open-source"}, {ID: 101, Name: "commercial"}},
	}
}

type fakeProfileRepo struct {
	mu        sync.Mutex
	records   map[string]*user.ProfileRecord
	upserts   int
	upsertErr error
	findErr   error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{records: make(map[string]*user.ProfileRecord)}
}

func (r *fakeProfileRepo) Upsert(ctx context.Context, rec *user.ProfileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if existing, ok := r.records[rec.ID]; ok {
		// Mirrors the SQL upsert: identity fields sync, nickname survives.
		existing.Email = rec.Email
		existing.Name = rec.Name
		existing.AvatarURL = rec.AvatarURL
		existing.Provider = rec.Provider
		return nil
	}
	stored := *rec
	if stored.Role == "" {
		stored.Role = user.DefaultRole
	}
	r.records[rec.ID] = &stored
	return nil
}

func (r *fakeProfileRepo) FindByID(ctx context.Context, id string) (*user.ProfileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

type fakeInterestRepo struct {
	mu         sync.Mutex
	sets       map[string][]int64
	replaceErr error
	listErr    error
}

func newFakeInterestRepo() *fakeInterestRepo {
	return &fakeInterestRepo{sets: make(map[string][]int64)}
}

func (r *fakeInterestRepo) ListByUser(ctx context.Context, userID string) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]int64(nil), r.sets[userID]...), nil
}

func (r *fakeInterestRepo) ReplaceAll(ctx context.Context, userID string, interestIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.sets[userID] = append([]int64(nil), interestIDs...)
	return nil
}

// fakeProvider implements identity.Provider with a controllable event stream.
type fakeProvider struct {
	mu          sync.Mutex
	subscribers map[int]func(identity.Event)
	nextID      int
	current     *identity.Session
	signOuts    int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subscribers: make(map[int]func(identity.Event))}
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	return p.current, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.current = nil
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) CurrentSession(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakeProvider) Subscribe(fn func(identity.Event)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) emit(event identity.Event) {
	p.mu.Lock()
	fns := make([]func(identity.Event), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(event)
	}
}

func (p *fakeProvider) signOutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	published []string
	signedOut []string
}

func (b *fakeBroadcaster) AddTab(userID, tabID string) chan string { return make(chan string, 1) }

func (b *fakeBroadcaster) RemoveTab(ch chan string, userID, tabID string) {}

func (b *fakeBroadcaster) GetTabCount(userID string) int { return 0 }

func (b *fakeBroadcaster) PublishActivity(userID, tabID string, lastActivity time.Time) {
	b.mu.Lock()
	b.published = append(b.published, userID)
	b.mu.Unlock()
}

func (b *fakeBroadcaster) BroadcastSignOut(userID string) {
	b.mu.Lock()
	b.signedOut = append(b.signedOut, userID)
	b.mu.Unlock()
}

func (b *fakeBroadcaster) publishCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *fakeBroadcaster) signOutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.signedOut)
}

type fakeMail struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMail) SendWelcomeEmail(toEmail, name, marketplaceURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, toEmail)
	return nil
}

func (m *fakeMail) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
