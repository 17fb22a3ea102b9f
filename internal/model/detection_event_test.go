package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefectClass(t *testing.T) {
	cls, ok := ParseDefectClass("crack")
	require.True(t, ok)
	assert.Equal(t, DefectClassCrack, cls)

	cls, ok = ParseDefectClass("CRACK")
	require.True(t, ok)
	assert.Equal(t, DefectClassCrack, cls)

	cls, ok = ParseDefectClass("pothole")
	require.True(t, ok)
	assert.Equal(t, DefectClassPothole, cls)

	_, ok = ParseDefectClass("something else")
	assert.False(t, ok)
	_, ok = ParseDefectClass("")
	assert.False(t, ok)
}

func TestParseSeverity(t *testing.T) {
	sev, ok := ParseSeverity("high")
	require.True(t, ok)
	assert.Equal(t, SeverityHigh, sev)

	sev, ok = ParseSeverity("MEDIUM")
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, sev)

	_, ok = ParseSeverity("extreme")
	assert.False(t, ok)
}

func TestBeforeCreateAssignsIDAndTimestamp(t *testing.T) {
	event := &DetectionEvent{}
	require.NoError(t, event.BeforeCreate(nil))

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	// Existing values are preserved.
	id := event.ID
	ts := event.Timestamp
	require.NoError(t, event.BeforeCreate(nil))
	assert.Equal(t, id, event.ID)
	assert.Equal(t, ts, event.Timestamp)
}

func TestPrincipalPermissions(t *testing.T) {
	assert.True(t, Principal{Role: RoleAdmin}.CanMarkRepaired())
	assert.True(t, Principal{Role: RoleOperator}.CanMarkRepaired())
	assert.False(t, Principal{Role: RoleViewer}.CanMarkRepaired())
	assert.False(t, Principal{}.CanMarkRepaired())
}
