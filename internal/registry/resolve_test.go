package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcsmops/panelbot/internal/mcsm"
)

func resolvedDirectory(t *testing.T) *Directory {
	t.Helper()
	dir := New(twoNodePanel(), nil, nil)
	require.NoError(t, dir.Refresh(context.Background()))
	return dir
}

func TestResolveByIndex(t *testing.T) {
	dir := resolvedDirectory(t)

	rec, err := dir.Resolve("1")
	require.NoError(t, err)
	assert.Equal(t, uuidAlphaA, rec.UUID)

	rec, err = dir.Resolve(" 2 ")
	require.NoError(t, err)
	assert.Equal(t, uuidBeta, rec.UUID, "identifiers are trimmed")

	_, err = dir.Resolve("0")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = dir.Resolve("4")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = dir.Resolve("99999999999999999999")
	assert.ErrorIs(t, err, ErrNotFound, "overflowing index is simply not found")
}

func TestResolveNumberNeverFallsBackToName(t *testing.T) {
	// One instance literally named "7": a numeric identifier is always an
	// index, so "7" is out of range rather than a name hit.
	dir := New(&fakePanel{
		overview: overviewWithNodes("A"),
		instances: func(context.Context, string, int, int) ([]mcsm.Instance, error) {
			return []mcsm.Instance{inst("7", "uuid-seven", mcsm.StatusRunning)}, nil
		},
	}, nil, nil)
	require.NoError(t, dir.Refresh(context.Background()))

	_, err := dir.Resolve("7")
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := dir.Resolve("1")
	require.NoError(t, err)
	assert.Equal(t, "uuid-seven", rec.UUID, "the instance stays reachable by index")
}

func TestResolveByUUID(t *testing.T) {
	dir := resolvedDirectory(t)

	rec, err := dir.Resolve(uuidBeta)
	require.NoError(t, err)
	assert.Equal(t, "Beta", rec.Name)

	_, err = dir.Resolve("ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveByName(t *testing.T) {
	dir := resolvedDirectory(t)

	rec, err := dir.Resolve("Beta")
	require.NoError(t, err)
	assert.Equal(t, uuidBeta, rec.UUID)

	_, err = dir.Resolve("Alpha")
	assert.ErrorIs(t, err, ErrAmbiguousName, "ambiguity is distinct from not-found")

	_, err = dir.Resolve("Gamma")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveOnEmptyDirectory(t *testing.T) {
	dir := New(&fakePanel{}, nil, nil)
	assert.True(t, dir.Empty())

	_, err := dir.Resolve("1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = dir.Resolve("Beta")
	assert.ErrorIs(t, err, ErrNotFound)
}
