package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/hubble-cli/internal/model"
	"github.com/sells-group/hubble-cli/internal/store"
)

// --- Catalog Mock ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) QueryObservations(ctx context.Context, q model.ObservationQuery) ([]model.ObservationRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ObservationRecord), args.Error(1)
}

func (m *mockCatalog) ListProducts(ctx context.Context, obs model.ObservationRecord) ([]model.ProductRecord, error) {
	args := m.Called(ctx, obs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProductRecord), args.Error(1)
}

// --- Retriever Mock ---

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Retrieve(ctx context.Context, products []model.ProductRecord) ([]model.RetrievedFile, error) {
	args := m.Called(ctx, products)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RetrievedFile), args.Error(1)
}

// --- Inspector Mock ---

type mockInspector struct {
	mock.Mock
}

func (m *mockInspector) Extract(path string, dt model.DataType) (model.Dataset, error) {
	args := m.Called(path, dt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Dataset), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, q model.ObservationQuery) (*model.Run, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunState(ctx context.Context, runID string, state model.RunState) error {
	return m.Called(ctx, runID, state).Error(0)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, runErr *model.RunError, result *model.RunResult) error {
	return m.Called(ctx, runID, runErr, result).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
