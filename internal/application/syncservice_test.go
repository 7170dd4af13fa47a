package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/appbridge/internal/application"
	"github.com/ericfisherdev/appbridge/internal/domain/model"
)

// --- Mock implementations shared by the application tests ---

type mockGitHubClient struct {
	repos        []model.Repository
	listErr      error
	probeErr     error
	probeRepoErr error
	probed       []string
}

func (m *mockGitHubClient) ListAccessibleRepos(context.Context) ([]model.Repository, error) {
	return m.repos, m.listErr
}

func (m *mockGitHubClient) Probe(context.Context) error {
	return m.probeErr
}

func (m *mockGitHubClient) ProbeRepository(_ context.Context, fullName string) error {
	m.probed = append(m.probed, fullName)
	return m.probeRepoErr
}

type healthWrite struct {
	Status  model.HealthStatus
	Message string
}

type replaceCall struct {
	ConnectionID int64
	FullNames    []string
}

type mockConnStore struct {
	conns    []model.AppConnection
	listErr  error
	replaces []replaceCall
	installs map[int64]int64
	health   map[int64]healthWrite
}

func newMockConnStore(conns ...model.AppConnection) *mockConnStore {
	return &mockConnStore{
		conns:    conns,
		installs: make(map[int64]int64),
		health:   make(map[int64]healthWrite),
	}
}

func (m *mockConnStore) Add(_ context.Context, conn model.AppConnection) error {
	m.conns = append(m.conns, conn)
	return nil
}

func (m *mockConnStore) GetByID(_ context.Context, id int64) (*model.AppConnection, error) {
	for i := range m.conns {
		if m.conns[i].ID == id {
			return &m.conns[i], nil
		}
	}
	return nil, nil
}

func (m *mockConnStore) GetBySlug(_ context.Context, slug string) (*model.AppConnection, error) {
	for i := range m.conns {
		if m.conns[i].Slug == slug {
			return &m.conns[i], nil
		}
	}
	return nil, nil
}

func (m *mockConnStore) ListAll(_ context.Context) ([]model.AppConnection, error) {
	return m.conns, m.listErr
}

func (m *mockConnStore) SetInstallationID(_ context.Context, id int64, installationID int64) error {
	m.installs[id] = installationID
	for i := range m.conns {
		if m.conns[i].ID == id {
			m.conns[i].InstallationID = &installationID
		}
	}
	return nil
}

func (m *mockConnStore) SetHealth(_ context.Context, id int64, status model.HealthStatus, message string) error {
	m.health[id] = healthWrite{Status: status, Message: message}
	return nil
}

func (m *mockConnStore) ReplaceAccessibleRepos(_ context.Context, id int64, fullNames []string) error {
	m.replaces = append(m.replaces, replaceCall{ConnectionID: id, FullNames: fullNames})
	return nil
}

type mockRepoStore struct {
	byName    map[string]model.Repository
	upserts   []model.Repository
	upsertErr map[string]error
	health    map[string]healthWrite
}

func newMockRepoStore() *mockRepoStore {
	return &mockRepoStore{
		byName:    make(map[string]model.Repository),
		upsertErr: make(map[string]error),
		health:    make(map[string]healthWrite),
	}
}

func (m *mockRepoStore) Upsert(_ context.Context, repo model.Repository) error {
	if err := m.upsertErr[repo.FullName]; err != nil {
		return err
	}
	m.upserts = append(m.upserts, repo)
	m.byName[repo.FullName] = repo
	return nil
}

func (m *mockRepoStore) GetByFullName(_ context.Context, fullName string) (*model.Repository, error) {
	if repo, ok := m.byName[fullName]; ok {
		return &repo, nil
	}
	return nil, nil
}

func (m *mockRepoStore) ListAll(_ context.Context) ([]model.Repository, error) {
	repos := make([]model.Repository, 0, len(m.byName))
	for _, repo := range m.byName {
		repos = append(repos, repo)
	}
	return repos, nil
}

func (m *mockRepoStore) SetHealth(_ context.Context, fullName string, status model.HealthStatus, message string) error {
	m.health[fullName] = healthWrite{Status: status, Message: message}
	return nil
}

type enqueueCall struct {
	Hook    string
	Payload map[string]string
}

type mockQueue struct {
	enqueues   []enqueueCall
	enqueueErr error
}

func (m *mockQueue) ScheduleRecurring(_ string, _, _ time.Duration) error {
	return nil
}

func (m *mockQueue) EnqueueAsync(hook string, payload map[string]string) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueues = append(m.enqueues, enqueueCall{Hook: hook, Payload: payload})
	return nil
}

func installID(v int64) *int64 { return &v }

// --- SyncService tests ---

func TestSyncService_Run_EndToEnd(t *testing.T) {
	client := &mockGitHubClient{
		repos: []model.Repository{
			{FullName: "o/r1", GitHubID: 1, IsPrivate: false, HTMLURL: "https://github.com/o/r1"},
			{FullName: "o/r2", GitHubID: 2, IsPrivate: true, HTMLURL: "https://github.com/o/r2"},
		},
	}
	provider := application.NewGitHubClientProvider(client)
	connStore := newMockConnStore(model.AppConnection{ID: 7, Slug: "app-1", InstallationID: installID(42)})
	repoStore := newMockRepoStore()
	queue := &mockQueue{}

	svc := application.NewSyncService(provider, connStore, repoStore, queue)
	require.NoError(t, svc.Run(context.Background()))

	// Two repository rows, both managed by the connection.
	require.Len(t, repoStore.upserts, 2)
	assert.Equal(t, "o/r1", repoStore.upserts[0].FullName)
	assert.Equal(t, int64(7), repoStore.upserts[0].ManagingAppID)
	assert.False(t, repoStore.upserts[0].LastSyncedAt.IsZero())
	assert.Equal(t, "o/r2", repoStore.upserts[1].FullName)
	assert.True(t, repoStore.upserts[1].IsPrivate)

	// Accessible repos replaced wholesale with the fetched set.
	require.Len(t, connStore.replaces, 1)
	assert.Equal(t, replaceCall{ConnectionID: 7, FullNames: []string{"o/r1", "o/r2"}}, connStore.replaces[0])

	// One health check task per repository.
	require.Len(t, queue.enqueues, 2)
	assert.Equal(t, "health-check-single-repository", queue.enqueues[0].Hook)
	assert.Equal(t, map[string]string{"full_name": "o/r1"}, queue.enqueues[0].Payload)
	assert.Equal(t, map[string]string{"full_name": "o/r2"}, queue.enqueues[1].Payload)
}

func TestSyncService_Run_EmptyResult(t *testing.T) {
	client := &mockGitHubClient{repos: []model.Repository{}}
	provider := application.NewGitHubClientProvider(client)
	connStore := newMockConnStore(model.AppConnection{ID: 7, Slug: "app-1", InstallationID: installID(42)})
	repoStore := newMockRepoStore()
	queue := &mockQueue{}

	svc := application.NewSyncService(provider, connStore, repoStore, queue)
	require.NoError(t, svc.Run(context.Background()))

	// Accessible repos cleared, no rows created, no checks enqueued.
	require.Len(t, connStore.replaces, 1)
	assert.Empty(t, connStore.replaces[0].FullNames)
	assert.Empty(t, repoStore.upserts)
	assert.Empty(t, queue.enqueues)
}

func TestSyncService_Run_SkipsConnectionWithoutInstallation(t *testing.T) {
	client := &mockGitHubClient{repos: []model.Repository{{FullName: "o/r1"}}}
	provider := application.NewGitHubClientProvider(client)
	connStore := newMockConnStore(model.AppConnection{ID: 7, Slug: "app-1"})
	repoStore := newMockRepoStore()
	queue := &mockQueue{}

	svc := application.NewSyncService(provider, connStore, repoStore, queue)
	require.NoError(t, svc.Run(context.Background()))

	assert.Empty(t, repoStore.upserts)
	assert.Empty(t, connStore.replaces)
}

func TestSyncService_Run_PartialFailureIsolation(t *testing.T) {
	// One client per slug: app-1 fails its first page, app-2 succeeds.
	provider := application.NewGitHubClientProvider(nil)
	provider.Set("app-1", &mockGitHubClient{listErr: errors.New("network down")})
	provider.Set("app-2", &mockGitHubClient{repos: []model.Repository{{FullName: "o/r2", GitHubID: 2}}})

	connStore := newMockConnStore(
		model.AppConnection{ID: 1, Slug: "app-1", InstallationID: installID(10)},
		model.AppConnection{ID: 2, Slug: "app-2", InstallationID: installID(20)},
	)
	repoStore := newMockRepoStore()
	queue := &mockQueue{}

	svc := application.NewSyncService(provider, connStore, repoStore, queue)
	require.NoError(t, svc.Run(context.Background()), "one failing connection must not abort the run")

	// Only app-2 synced; app-1's accessible set was not touched.
	require.Len(t, repoStore.upserts, 1)
	assert.Equal(t, "o/r2", repoStore.upserts[0].FullName)
	require.Len(t, connStore.replaces, 1)
	assert.Equal(t, int64(2), connStore.replaces[0].ConnectionID)
}

func TestSyncService_Run_UpsertFailureSkipsEntity(t *testing.T) {
	client := &mockGitHubClient{
		repos: []model.Repository{
			{FullName: "o/bad", GitHubID: 1},
			{FullName: "o/good", GitHubID: 2},
		},
	}
	provider := application.NewGitHubClientProvider(client)
	connStore := newMockConnStore(model.AppConnection{ID: 7, Slug: "app-1", InstallationID: installID(42)})
	repoStore := newMockRepoStore()
	repoStore.upsertErr["o/bad"] = errors.New("disk full")
	queue := &mockQueue{}

	svc := application.NewSyncService(provider, connStore, repoStore, queue)
	require.NoError(t, svc.Run(context.Background()))

	// The failed entity is excluded from the new set and from fan-out.
	require.Len(t, connStore.replaces, 1)
	assert.Equal(t, []string{"o/good"}, connStore.replaces[0].FullNames)
	require.Len(t, queue.enqueues, 1)
	assert.Equal(t, map[string]string{"full_name": "o/good"}, queue.enqueues[0].Payload)
}

func TestSyncService_Run_NoConnections(t *testing.T) {
	provider := application.NewGitHubClientProvider(nil)
	svc := application.NewSyncService(provider, newMockConnStore(), newMockRepoStore(), &mockQueue{})

	assert.NoError(t, svc.Run(context.Background()))
}
