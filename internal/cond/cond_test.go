// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package cond

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/tagx/internal/scanner"
)

// propGuard reads cond=true/false and records every evaluation.
func propGuard(seen *[]string) Guard {
	return func(tag *scanner.Tag) (bool, error) {
		p, _ := tag.Prop("cond")
		id, _ := tag.Prop("id")
		*seen = append(*seen, id.Value)
		return p.Value == "true", nil
	}
}

func TestSelectsFirstTrueBranch(t *testing.T) {
	src := `[@IF cond=false id=a][@ELSEIF cond=true id=b]A[@ELSE]B[/@IF]tail`
	var seen []string
	res, err := Parse(src, 0, propGuard(&seen))
	require.NoError(t, err)
	assert.Equal(t, "A", res.Body)
	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, 3, res.Branches)
	assert.Equal(t, "tail", src[res.End:])
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestLaterGuardsNotEvaluated(t *testing.T) {
	src := `[@IF cond=true id=a]first[@ELSEIF cond=true id=b]second[@ELSEIF cond=true id=c]third[/@IF]`
	var seen []string
	res, err := Parse(src, 0, propGuard(&seen))
	require.NoError(t, err)
	assert.Equal(t, "first", res.Body)
	assert.Equal(t, []string{"a"}, seen)
}

func TestElseBranchAndNone(t *testing.T) {
	var seen []string
	res, err := Parse(`[@IF cond=false]x[@ELSE]y[@ENDIF]`, 0, propGuard(&seen))
	require.NoError(t, err)
	assert.Equal(t, "y", res.Body)

	res, err = Parse(`[@IF cond=false]x[/@IF]`, 0, propGuard(&seen))
	require.NoError(t, err)
	assert.Equal(t, -1, res.Selected)
	assert.Equal(t, "", res.Body)
}

func TestNestedIfIsOpaque(t *testing.T) {
	src := `[@IF cond=true id=outer]a[@IF cond=false id=inner]b[@ELSE]c[/@IF]d[@ELSE]e[/@IF]`
	var seen []string
	res, err := Parse(src, 0, propGuard(&seen))
	require.NoError(t, err)
	assert.Equal(t, `a[@IF cond=false id=inner]b[@ELSE]c[/@IF]d`, res.Body)
	assert.Equal(t, []string{"outer"}, seen)
	assert.Equal(t, len(src), res.End)
}

func TestEscapedAndDeferredTokensIgnored(t *testing.T) {
	src := `[@IF cond=true]a[[/@IF][@@ELSE]b[/@IF]`
	var seen []string
	res, err := Parse(src, 0, propGuard(&seen))
	require.NoError(t, err)
	assert.Equal(t, `a[[/@IF][@@ELSE]b`, res.Body)
}

func TestLiteralBodiesHoldNoTokens(t *testing.T) {
	var seen []string
	src := `[@IF cond=true]a[@LITERAL][@ELSE][@IF x][/@LITERAL]b[@ELSE]c[/@IF]tail`
	res, err := Parse(src, 0, propGuard(&seen))
	require.NoError(t, err)
	assert.Equal(t, "a[@LITERAL][@ELSE][@IF x][/@LITERAL]b", res.Body)
	assert.Equal(t, 2, res.Branches)
	assert.Equal(t, "tail", src[res.End:])

	res, err = Parse(`[@IF cond=false]x[@ELSE][@LITERAL][/@IF][/@LITERAL]y[/@IF]`, 0, propGuard(&seen))
	require.NoError(t, err)
	assert.Equal(t, "[@LITERAL][/@IF][/@LITERAL]y", res.Body)
}

func TestParseErrors(t *testing.T) {
	var seen []string
	tests := []struct {
		src  string
		want error
	}{
		{`[@IF cond=true]never closed`, ErrMissingEndIf},
		{`[@IF cond=true]a[@IF cond=true]b[/@IF]`, ErrMissingEndIf},
		{`[@IF cond=true]a[@ELSE]b[@ELSEIF cond=true]c[/@IF]`, ErrOrder},
		{`[@IF cond=true]a[@ELSE]b[@ELSE]c[/@IF]`, ErrOrder},
	}
	for _, tt := range tests {
		_, err := Parse(tt.src, 0, propGuard(&seen))
		assert.True(t, errors.Is(err, tt.want), "%q: expected %v, got %v", tt.src, tt.want, err)
		var ce *Error
		assert.True(t, errors.As(err, &ce), "%q: expected positioned error", tt.src)
	}
	assert.Empty(t, seen, "guards must not run when the structure is invalid")
}
