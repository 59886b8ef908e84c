package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScreening(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		score     int
		rationale string
		wantErr   bool
	}{
		{"envelope", "$85$ Clear photos and a plausible price.", 85, "Clear photos and a plausible price.", false},
		{"envelope after text", "Score: $40$", 40, "Score:", false},
		{"fallback number", "72 - price is low for the category", 72, "price is low for the category", false},
		{"clamped high", "150", 100, "", false},
		{"decimal rounds", "49.6 ok", 50, "ok", false},
		{"no match", "nothing here", 0, "", true},
		{"multiple envelopes", "$1$ and $2$", 1, "and $2$", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScreening(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrParseFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.rationale, got.Rationale)
		})
	}
}

func TestBuildScreeningPrompt(t *testing.T) {
	p := BuildScreeningPrompt(Listing{Title: "Desk Lamp", Description: "LED", Category: "Furniture", Price: "15.00", ImageCount: 2})
	assert.Contains(t, p, "Desk Lamp")
	assert.Contains(t, p, "Furniture")
	assert.Contains(t, p, "15.00")
	assert.Contains(t, p, "Images: 2")
}
