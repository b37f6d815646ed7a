package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorageBackend implements interfaces.StorageBackend for testing
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	args := m.Called(ctx, id, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	args := m.Called(ctx, data, contentType)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.name
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock:" + m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiStorageBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{"all backends available", []bool{true, true, true}, true},
		{"some backends available", []bool{false, true, false}, true},
		{"no backends available", []bool{false, false, false}, false},
		{"no backends", []bool{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.StorageBackend
			for i, available := range tt.backends {
				m := &MockStorageBackend{name: fmt.Sprintf("mock-%d", i)}
				m.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, m)
			}

			multi := NewMultiStorageBackend(backends, discardLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))
		})
	}
}

func TestMultiStorageBackend_Fetch(t *testing.T) {
	testData := []byte(`[{"protocol":"groth16"}]`)
	testID := interfaces.ComputeID(testData)
	testErr := errors.New("test error")
	vkType := interfaces.VerifyingKeyType

	tests := []struct {
		name       string
		setupMocks func() []interfaces.StorageBackend
		expected   []byte
		wantErr    error
	}{
		{
			name: "first backend successful",
			setupMocks: func() []interfaces.StorageBackend {
				m1 := &MockStorageBackend{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Fetch", mock.Anything, testID, vkType).Return(testData, nil)
				return []interfaces.StorageBackend{m1, &MockStorageBackend{name: "mock-B"}}
			},
			expected: testData,
		},
		{
			name: "first backend fails, second succeeds",
			setupMocks: func() []interfaces.StorageBackend {
				m1 := &MockStorageBackend{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Fetch", mock.Anything, testID, vkType).Return(nil, testErr)
				m2 := &MockStorageBackend{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Fetch", mock.Anything, testID, vkType).Return(testData, nil)
				return []interfaces.StorageBackend{m1, m2}
			},
			expected: testData,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.StorageBackend {
				m1 := &MockStorageBackend{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(false)
				m2 := &MockStorageBackend{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Fetch", mock.Anything, testID, vkType).Return(testData, nil)
				return []interfaces.StorageBackend{m1, m2}
			},
			expected: testData,
		},
		{
			name: "missing everywhere",
			setupMocks: func() []interfaces.StorageBackend {
				m1 := &MockStorageBackend{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Fetch", mock.Anything, testID, vkType).Return(nil, interfaces.ErrContentNotFound)
				m2 := &MockStorageBackend{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Fetch", mock.Anything, testID, vkType).Return(nil, interfaces.ErrContentNotFound)
				return []interfaces.StorageBackend{m1, m2}
			},
			wantErr: interfaces.ErrContentNotFound,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.StorageBackend {
				m1 := &MockStorageBackend{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Fetch", mock.Anything, testID, vkType).Return(nil, testErr)
				m2 := &MockStorageBackend{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Fetch", mock.Anything, testID, vkType).Return(nil, interfaces.ErrContentNotFound)
				return []interfaces.StorageBackend{m1, m2}
			},
			wantErr: testErr,
		},
		{
			name: "nothing reachable",
			setupMocks: func() []interfaces.StorageBackend {
				m1 := &MockStorageBackend{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(false)
				return []interfaces.StorageBackend{m1}
			},
			wantErr: interfaces.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, discardLogger())

			data, err := multi.Fetch(context.Background(), testID, vkType)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, data)
			for _, b := range backends {
				b.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Store(t *testing.T) {
	data := []byte("sealed input")
	id := interfaces.ComputeID(data)
	keyType := interfaces.KeyInputType

	failing := &MockStorageBackend{name: "failing"}
	failing.On("Available", mock.Anything).Return(true)
	failing.On("Store", mock.Anything, data, keyType).Return(id, errors.New("disk full"))

	down := &MockStorageBackend{name: "down"}
	down.On("Available", mock.Anything).Return(false)

	ok := &MockStorageBackend{name: "ok"}
	ok.On("Available", mock.Anything).Return(true)
	ok.On("Store", mock.Anything, data, keyType).Return(id, nil)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{failing, down, ok}, discardLogger())
	got, err := multi.Store(context.Background(), data, keyType)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	ok.AssertExpectations(t)
	down.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)

	multi = NewMultiStorageBackend([]interfaces.StorageBackend{failing}, discardLogger())
	_, err = multi.Store(context.Background(), data, keyType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	multi = NewMultiStorageBackend([]interfaces.StorageBackend{down}, discardLogger())
	_, err = multi.Store(context.Background(), data, keyType)
	require.ErrorIs(t, err, interfaces.ErrBackendUnavailable)

	assert.Equal(t, "multi:[mock:failing]", NewMultiStorageBackend([]interfaces.StorageBackend{failing}, nil).LocationURI())
}
