package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rubric/internal/domain"
)

func overall(id string, d domain.Dimension, mode domain.ScoreMode, v float64) domain.ScoreWrite {
	return domain.ScoreWrite{SampleID: id, Scope: domain.ScopeOverall, Dimension: d, Mode: mode, Value: v}
}

func turnWrite(id string, turn int, d domain.Dimension, mode domain.ScoreMode, v float64) domain.ScoreWrite {
	return domain.ScoreWrite{SampleID: id, Scope: domain.ScopeTurn, TurnIndex: &turn, Dimension: d, Mode: mode, Value: v}
}

func value(t *testing.T, v domain.ScoreValue) float64 {
	t.Helper()
	f, ok := v.Float64()
	require.True(t, ok)
	return f
}

func TestLedger_WriteScore(t *testing.T) {
	l := New()

	require.NoError(t, l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeContinuous, 75)))
	require.NoError(t, l.WriteScore(turnWrite("s1", 2, domain.DimFactualAccuracy, domain.ModeCategorical, 3)))

	rec := l.ReadSample("s1")
	assert.Equal(t, domain.ModeContinuous, rec.Overall.Mode)
	assert.InDelta(t, 75.0, value(t, rec.Overall.Criteria[domain.DimVisualGrounding]), 1e-9)

	require.Contains(t, rec.Turns, 2)
	assert.Equal(t, domain.ModeCategorical, rec.Turns[2].Mode)
	assert.InDelta(t, 3.0, value(t, rec.Turns[2].Criteria[domain.DimFactualAccuracy]), 1e-9)
	assert.NotContains(t, rec.Turns, 0, "turn scopes are sparse")

	assert.True(t, l.Has("s1"))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_WriteOverwrites(t *testing.T) {
	l := New()
	require.NoError(t, l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeContinuous, 10)))
	require.NoError(t, l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeContinuous, 20)))

	rec := l.ReadSample("s1")
	assert.Len(t, rec.Overall.Criteria, 1)
	assert.InDelta(t, 20.0, value(t, rec.Overall.Criteria[domain.DimVisualGrounding]), 1e-9)
}

func TestLedger_WriteRetagsScope(t *testing.T) {
	l := New()
	require.NoError(t, l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeContinuous, 2)))
	require.NoError(t, l.WriteScore(overall("s1", domain.DimInstructionFollowing, domain.ModeCategorical, 1)))

	rec := l.ReadSample("s1")
	assert.Equal(t, domain.ModeCategorical, rec.Overall.Mode)
	c1, ok := rec.Overall.Criterion(domain.DimVisualGrounding)
	require.True(t, ok)
	assert.Equal(t, domain.ModeCategorical, c1.Mode, "sibling values take the scope's latest mode")
}

func TestLedger_WriteRejectsInvalid(t *testing.T) {
	l := New()

	err := l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeContinuous, 150))
	require.ErrorIs(t, err, domain.ErrInvalidScoreValue)

	err = l.WriteScore(overall("s1", "c9", domain.ModeContinuous, 5))
	require.ErrorIs(t, err, domain.ErrUnknownDimension)

	err = l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeCategorical, 0.5))
	require.ErrorIs(t, err, domain.ErrInvalidScoreValue)

	assert.False(t, l.Has("s1"), "rejected writes never create a record")
}

func TestLedger_ResetSample(t *testing.T) {
	l := New()
	require.NoError(t, l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeContinuous, 1)))

	assert.True(t, l.ResetSample("s1"))
	assert.False(t, l.Has("s1"))
	assert.False(t, l.ResetSample("s1"), "reset is idempotent")
	assert.False(t, l.ResetSample("never"))
}

func TestLedger_ReadSampleNeverCreates(t *testing.T) {
	l := New()
	rec := l.ReadSample("ghost")

	assert.Empty(t, rec.Overall.Criteria)
	assert.NotNil(t, rec.Overall.Criteria)
	assert.Empty(t, rec.Turns)
	assert.False(t, l.Has("ghost"))
	assert.Zero(t, l.Len())
}

func TestLedger_ReadSampleReturnsCopy(t *testing.T) {
	l := New()
	require.NoError(t, l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeContinuous, 1)))

	rec := l.ReadSample("s1")
	rec.Overall.Criteria[domain.DimVisualGrounding] = domain.NumberValue(99)

	again := l.ReadSample("s1")
	assert.InDelta(t, 1.0, value(t, again.Overall.Criteria[domain.DimVisualGrounding]), 1e-9)
}

func TestLedger_SnapshotRestore(t *testing.T) {
	l := New()
	require.NoError(t, l.WriteScore(overall("b", domain.DimVisualGrounding, domain.ModeContinuous, 1)))
	require.NoError(t, l.WriteScore(overall("a", domain.DimVisualGrounding, domain.ModeContinuous, 2)))
	assert.Equal(t, []string{"a", "b"}, l.IDs())

	snap := l.Snapshot()
	require.NoError(t, l.WriteScore(overall("c", domain.DimVisualGrounding, domain.ModeContinuous, 3)))
	assert.Len(t, snap, 2, "snapshots are detached")

	restored := FromSnapshot(snap)
	assert.Equal(t, []string{"a", "b"}, restored.IDs())
}

func TestLedger_JSON(t *testing.T) {
	l := New()
	require.NoError(t, l.WriteScore(overall("s1", domain.DimVisualGrounding, domain.ModeContinuous, 40)))
	require.NoError(t, l.WriteScore(turnWrite("s1", 0, domain.DimDialogueCoherence, domain.ModeCategorical, -1)))

	raw, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{"s1":{
		"overall":{"mode":"continuous","criteria":{"c1":40}},
		"turns":{"0":{"mode":"categorical","criteria":{"c4":-1}}}
	}}`, string(raw))

	back := New()
	require.NoError(t, json.Unmarshal(raw, back))
	assert.Equal(t, l.Snapshot(), back.Snapshot())

	assert.Error(t, json.Unmarshal([]byte(`[1]`), back))
	assert.Equal(t, 1, back.Len(), "failed decode leaves contents")
}

func TestLedger_LegacyUntaggedData(t *testing.T) {
	back := New()
	require.NoError(t, json.Unmarshal([]byte(`{"old":{"overall":{"criteria":{"c1":2,"c2":"n/a"}},"turns":{}}}`), back))

	rec := back.ReadSample("old")
	assert.Empty(t, rec.Overall.Mode)
	_, ok := rec.Overall.Criteria[domain.DimInstructionFollowing].Float64()
	assert.False(t, ok, "non-numeric values are kept but not numeric")
}
