package batch

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/your-org/mediascribe/internal/provider"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Process(ctx context.Context, call provider.Call) (string, error) {
	args := m.Called(ctx, call)
	return args.String(0), args.Error(1)
}

// payload matches a call whose staged file holds exactly data.
func payload(data string) interface{} {
	return mock.MatchedBy(func(c provider.Call) bool {
		b, err := os.ReadFile(c.Path)
		return err == nil && string(b) == data
	})
}
