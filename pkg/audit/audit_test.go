package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayline/governor/pkg/audit"
	"github.com/relayline/governor/pkg/contracts"
)

func TestLogger_Record_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter("agent-1", &buf)

	err := logger.Record(context.Background(), audit.EventDecision, "validate", "dec-42", nil)
	require.NoError(t, err)

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "AUDIT: "))

	jsonPart := strings.TrimSpace(strings.TrimPrefix(output, "AUDIT: "))

	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))

	assert.Equal(t, audit.EventDecision, event.Type)
	assert.Equal(t, "validate", event.Action)
	assert.Equal(t, "dec-42", event.Resource)
	assert.Equal(t, "agent-1", event.AgentID)
	assert.NotEmpty(t, event.ID)
	// UUID format: 8-4-4-4-12
	assert.Len(t, event.ID, 36)
	assert.Empty(t, event.ContentHash)
}

func TestLogger_Record_MetadataHashIsOrderIndependent(t *testing.T) {
	record := func(meta map[string]interface{}) audit.Event {
		var buf bytes.Buffer
		logger := audit.NewLoggerWithWriter("agent-1", &buf)
		require.NoError(t, logger.Record(context.Background(), audit.EventMutation, "update_limits", "limits", meta))
		jsonPart := strings.TrimSpace(strings.TrimPrefix(buf.String(), "AUDIT: "))
		var event audit.Event
		require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))
		return event
	}

	a := record(map[string]interface{}{"daily_limit": 5000, "currency": "USD"})
	b := record(map[string]interface{}{"currency": "USD", "daily_limit": 5000})

	require.True(t, strings.HasPrefix(a.ContentHash, "sha256:"))
	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.Equal(t, "USD", a.Metadata["currency"])
}

func TestViolationLog_EvictsOldestWhenFull(t *testing.T) {
	log := audit.NewViolationLog(3)
	for i := 0; i < 5; i++ {
		log.RecordViolation(contracts.GuardrailViolation{
			Type:        "content_policy",
			Severity:    contracts.SeverityError,
			Description: fmt.Sprintf("violation %d", i),
			Timestamp:   time.Now(),
		})
	}

	all := log.All()
	require.Len(t, all, 3)
	assert.Equal(t, "violation 2", all[0].Description)
	assert.Equal(t, "violation 4", all[2].Description)
	assert.Equal(t, 3, log.Len())
}

func TestViolationLog_AllReturnsCopy(t *testing.T) {
	log := audit.NewViolationLog(10)
	log.RecordViolation(contracts.GuardrailViolation{Type: "content_policy"})

	all := log.All()
	all[0].Type = "mutated"

	assert.Equal(t, "content_policy", log.All()[0].Type)
}

func TestDecisionHistory_RecentNewestFirst(t *testing.T) {
	h := audit.NewDecisionHistory(10)
	for i := 0; i < 4; i++ {
		h.Append(contracts.DecisionRecord{
			Decision: contracts.Decision{ID: fmt.Sprintf("dec-%d", i)},
		})
	}

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "dec-3", recent[0].Decision.ID)
	assert.Equal(t, "dec-2", recent[1].Decision.ID)

	all := h.Recent(0)
	assert.Len(t, all, 4)
	assert.Equal(t, "dec-3", all[0].Decision.ID)
}

func TestDecisionHistory_EvictsOldestWhenFull(t *testing.T) {
	h := audit.NewDecisionHistory(2)
	for i := 0; i < 3; i++ {
		h.Append(contracts.DecisionRecord{
			Decision: contracts.Decision{ID: fmt.Sprintf("dec-%d", i)},
		})
	}

	require.Equal(t, 2, h.Len())
	recent := h.Recent(0)
	assert.Equal(t, "dec-2", recent[0].Decision.ID)
	assert.Equal(t, "dec-1", recent[1].Decision.ID)
}
