package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]JobStatus]bool{
		{JobStatusQueued, JobStatusRunning}:    true,
		{JobStatusRunning, JobStatusSucceeded}: true,
		{JobStatusRunning, JobStatusFailed}:    true,
	}

	statuses := []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed}
	for _, from := range statuses {
		for _, to := range statuses {
			got := CanTransition(from, to)
			want := allowed[[2]JobStatus{from, to}]
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesNeverLeave(t *testing.T) {
	for _, terminal := range []JobStatus{JobStatusSucceeded, JobStatusFailed} {
		require.True(t, terminal.Terminal())
		for _, to := range []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed} {
			assert.False(t, CanTransition(terminal, to), "%s -> %s must not be allowed", terminal, to)
		}
	}
}

func TestJobParamsValidate(t *testing.T) {
	valid := JobParams{
		Complexity:    ComplexityStandard,
		LineThickness: LineMedium,
		CustomPrompt:  "a cat on a skateboard",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*JobParams)
	}{
		{"unknown complexity", func(p *JobParams) { p.Complexity = "extreme" }},
		{"empty complexity", func(p *JobParams) { p.Complexity = "" }},
		{"unknown thickness", func(p *JobParams) { p.LineThickness = "hairline" }},
		{"no subject", func(p *JobParams) { p.CustomPrompt = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestJobParamsValidateAcceptsSourceAssetWithoutPrompt(t *testing.T) {
	p := JobParams{
		Complexity:    ComplexitySimple,
		LineThickness: LineThick,
		SourceAssetID: "7e0deb6e-3b55-4a61-9cf8-26a5ad8a8b0f",
	}
	require.NoError(t, p.Validate())
}

func TestValidateEditPrompt(t *testing.T) {
	require.NoError(t, ValidateEditPrompt("add a friendly dragon"))

	assert.ErrorIs(t, ValidateEditPrompt("ab"), ErrValidation)
	assert.ErrorIs(t, ValidateEditPrompt(strings.Repeat("x", 201)), ErrValidation)
	assert.ErrorIs(t, ValidateEditPrompt("add some BLOOD everywhere"), ErrValidation)
	assert.NoError(t, ValidateEditPrompt(strings.Repeat("y", 200)))
}

func TestValidateEditPromptCountsRunes(t *testing.T) {
	// Multi-byte text is measured in characters, not bytes.
	require.NoError(t, ValidateEditPrompt(strings.Repeat("å", 150)))
	require.NoError(t, ValidateEditPrompt(strings.Repeat("空", 200)))
	assert.ErrorIs(t, ValidateEditPrompt(strings.Repeat("空", 201)), ErrValidation)
	assert.ErrorIs(t, ValidateEditPrompt("空空"), ErrValidation)
}
