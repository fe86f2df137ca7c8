package llm

import (
	"context"

	"github.com/siderealhq/genesis/internal/domain"
)

// MockClient is a configurable question client for testing.
// Set the response fields to control what GenerateQuestion returns.
type MockClient struct {
	GenerateResponse *domain.GeneratedQuestion
	GenerateError    error

	// Call tracking for assertions
	GenerateCalls []domain.QuestionRequest
}

func NewMockClient() *MockClient {
	return &MockClient{
		GenerateResponse: &domain.GeneratedQuestion{
			Question: "Do your best ideas show up early in the day or late at night?",
			Options:  []string{"early", "late"},
			Mappings: map[string]map[string]float32{},
		},
	}
}

func (c *MockClient) GenerateQuestion(ctx context.Context, req domain.QuestionRequest) (*domain.GeneratedQuestion, error) {
	c.GenerateCalls = append(c.GenerateCalls, req)
	if c.GenerateError != nil {
		return nil, c.GenerateError
	}
	return c.GenerateResponse, nil
}

// Reset clears recorded calls and restores the default response.
func (c *MockClient) Reset() {
	c.GenerateResponse = &domain.GeneratedQuestion{
		Question: "Do your best ideas show up early in the day or late at night?",
		Options:  []string{"early", "late"},
		Mappings: map[string]map[string]float32{},
	}
	c.GenerateError = nil
	c.GenerateCalls = nil
}
