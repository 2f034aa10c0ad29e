package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_Constants(t *testing.T) {
	tests := []struct {
		event    EventType
		expected string
	}{
		{EventTypeDatasetLoaded, "DatasetLoaded"},
		{EventTypeScoreRecorded, "ScoreRecorded"},
		{EventTypeSampleReset, "SampleReset"},
		{EventTypeStatisticsComputed, "StatisticsComputed"},
		{EventTypeExportPublished, "ExportPublished"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.event))
		})
	}
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("valid payload", func(t *testing.T) {
		ev, err := NewEvent(EventTypeSampleReset, "session-1", "7", "session", at,
			SampleResetPayload{SampleID: "s1", Existed: true})
		require.NoError(t, err)

		assert.Equal(t, EventTypeSampleReset, ev.EventType)
		assert.Equal(t, 1, ev.Version)
		assert.Equal(t, "session-1", ev.CorrelationID)
		assert.Equal(t, at, ev.OccurredAt)

		var payload SampleResetPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		assert.Equal(t, "s1", payload.SampleID)
		assert.True(t, payload.Existed)
	})

	t.Run("idempotency key is deterministic", func(t *testing.T) {
		p := DatasetLoadedPayload{Samples: 3}
		a, err := NewEvent(EventTypeDatasetLoaded, "c", "1", "session", at, p)
		require.NoError(t, err)
		b, err := NewEvent(EventTypeDatasetLoaded, "c", "1", "session", at.Add(time.Hour), p)
		require.NoError(t, err)
		c, err := NewEvent(EventTypeDatasetLoaded, "c", "2", "session", at, p)
		require.NoError(t, err)

		assert.Equal(t, a.IdempotencyKey, b.IdempotencyKey)
		assert.NotEqual(t, a.IdempotencyKey, c.IdempotencyKey)
		assert.Len(t, a.IdempotencyKey, 64)
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := NewEvent(EventTypeSampleReset, "c", "1", "session", at, SampleResetPayload{})
		assert.Error(t, err)
	})

	t.Run("missing correlation id", func(t *testing.T) {
		_, err := NewEvent(EventTypeSampleReset, "", "1", "session", at, SampleResetPayload{SampleID: "s"})
		assert.Error(t, err)
	})

	t.Run("harmful rate bounded", func(t *testing.T) {
		_, err := NewEvent(EventTypeStatisticsComputed, "c", "1", "agg", at,
			StatisticsComputedPayload{HarmfulRate: 1.5})
		assert.Error(t, err)
	})
}

func TestEventEnvelope_Envelope(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev, err := NewEvent(EventTypeExportPublished, "req-9", "publish", "activity.publish_export", at,
		ExportPublishedPayload{
			Results: ArtifactRef{Key: "mem://r.json", Size: 10, Kind: ArtifactResults},
			Report:  ArtifactRef{Key: "mem://r.md", Size: 4, Kind: ArtifactReport},
			Samples: 2,
		})
	require.NoError(t, err)

	env := ev.Envelope()
	assert.Equal(t, ev.IdempotencyKey, env.ID)
	assert.Equal(t, "ExportPublished", env.Type)
	assert.Equal(t, "activity.publish_export", env.Source)
	assert.Equal(t, "1.0.0", env.Version)
	assert.Equal(t, "req-9", env.CorrelationID)
	assert.Equal(t, at, env.Timestamp)
	assert.JSONEq(t, string(ev.Payload), string(env.Payload))
}
