package mathtool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateArithmetic(t *testing.T) {
	e := New()

	got, err := e.Evaluate("(120.5 - 98.2) / 98.2 * 100", nil)
	require.NoError(t, err)
	assert.Equal(t, "22.708757637474537", got)

	got, err = e.Evaluate("2 + 3 * 4", nil)
	require.NoError(t, err)
	assert.Equal(t, "14", got)
}

func TestEvaluateWithVariables(t *testing.T) {
	e := New()
	got, err := e.Evaluate("(current - prior) / prior * 100", map[string]any{
		"current": 110.0,
		"prior":   100.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "10", got)
}

func TestEvaluateErrors(t *testing.T) {
	e := New()

	_, err := e.Evaluate("", nil)
	assert.Error(t, err)

	_, err = e.Evaluate("2 +* 3", nil)
	assert.ErrorContains(t, err, "compile")

	_, err = e.Evaluate(`"strings are" + " not numbers"`, nil)
	assert.ErrorContains(t, err, "non-numeric")

	_, err = e.Evaluate("num / den", map[string]any{"num": 1.0, "den": 0.0})
	assert.ErrorContains(t, err, "not finite")
}
