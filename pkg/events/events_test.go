package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEncodesData(t *testing.T) {
	ev, err := New(TypeCommandExecuted, map[string]string{"command": "/about"})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, TypeCommandExecuted, ev.Type)
	require.False(t, ev.OccurredAt.IsZero())

	var data map[string]string
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	require.Equal(t, "/about", data["command"])
}

func TestRecordingPublisher(t *testing.T) {
	rec := &Recording{}
	ev, err := New(TypeFileDownloaded, struct{}{})
	require.NoError(t, err)
	require.NoError(t, rec.Publish(context.Background(), ev))
	require.Len(t, rec.Events(), 1)
}

func TestNewAMQPPublisherRequiresURL(t *testing.T) {
	_, err := NewAMQPPublisher("  ", "")
	require.Error(t, err)
}
