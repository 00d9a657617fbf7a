package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		pipeline Pipeline
		errors   []string
	}{
		{
			name:     "default pipeline",
			pipeline: DefaultPipeline(),
		},
		{
			name: "forward references are allowed",
			pipeline: Pipeline{
				Sum{ID: "total", Components: []string{"metal"}},
				Percentage{ID: "markup", AppliesTo: "metal"},
				Computed{ID: "metal"},
			},
		},
		{
			name: "duplicate id",
			pipeline: Pipeline{
				Computed{ID: "metal"},
				Fixed{ID: "metal"},
			},
			errors: []string{"duplicate step id: metal"},
		},
		{
			name: "unknown percentage base",
			pipeline: Pipeline{
				Computed{ID: "metal"},
				Percentage{ID: "tax", AppliesTo: "subtotal"},
			},
			errors: []string{"step tax references non-existent base: subtotal"},
		},
		{
			name: "unknown sum component",
			pipeline: Pipeline{
				Computed{ID: "metal"},
				Sum{ID: "total", Components: []string{"metal", "stones", "labour"}},
			},
			errors: []string{
				"step total references non-existent component: stones",
				"step total references non-existent component: labour",
			},
		},
		{
			name:     "empty pipeline",
			pipeline: Pipeline{},
			errors:   []string{"pipeline has no steps"},
		},
		{
			name:     "missing id",
			pipeline: Pipeline{Computed{}},
			errors:   []string{"step 0 missing id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.pipeline)
			if len(tt.errors) == 0 {
				assert.True(t, result.Valid)
				assert.Empty(t, result.Errors)
				return
			}
			assert.False(t, result.Valid)
			assert.Equal(t, tt.errors, result.Errors)
		})
	}
}
