package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablemesh/converse/core"
)

var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_LoadUnknownAgent(t *testing.T) {
	s := NewInMemoryStore()
	mem, err := s.Load("Mira")
	require.NoError(t, err)
	assert.Empty(t, mem.History)
	assert.NotNil(t, mem.Relations)
}

func TestInMemoryStore_SaveIsolation(t *testing.T) {
	s := NewInMemoryStore()
	mem := &core.AgentMemory{
		Persona:   "blacksmith",
		History:   []core.Message{core.NewSystemMessage("prompt")},
		Relations: map[string]int{"Steve": 10},
	}
	require.NoError(t, s.Save("Mira", mem))

	// mutate original after save
	mem.History[0].Text = "mutated"
	mem.Relations["Steve"] = -50

	loaded, err := s.Load("Mira")
	require.NoError(t, err)
	assert.Equal(t, "prompt", loaded.History[0].Text)
	assert.Equal(t, 10, loaded.Relations["Steve"])

	// mutate loaded copy
	loaded.Relations["Steve"] = 99
	again, _ := s.Load("Mira")
	assert.Equal(t, 10, again.Relations["Steve"])
}

func TestInMemoryStore_AppendSystemEntry(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.AppendSystemEntry("Mira", "they met a traveler"))

	mem, err := s.Load("Mira")
	require.NoError(t, err)
	require.Len(t, mem.History, 1)
	assert.Equal(t, core.RoleSystem, mem.History[0].Role)
	assert.Equal(t, "they met a traveler", mem.History[0].Text)
}

func TestInMemoryStore_HistoryTrimKeepsLeadingEntry(t *testing.T) {
	s := NewInMemoryStore()
	s.maxHistory = 3

	require.NoError(t, s.Save("Mira", &core.AgentMemory{
		History: []core.Message{core.NewSystemMessage("persona prompt")},
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, s.AppendSystemEntry("Mira", fmt.Sprintf("entry %d", i)))
	}

	mem, err := s.Load("Mira")
	require.NoError(t, err)
	require.Len(t, mem.History, 4)
	assert.Equal(t, "persona prompt", mem.History[0].Text)
	assert.Equal(t, "entry 7", mem.History[1].Text)
	assert.Equal(t, "entry 9", mem.History[3].Text)
}

func TestInMemoryStore_AdjustRelationClamps(t *testing.T) {
	s := NewInMemoryStore()

	require.NoError(t, s.AdjustRelation("Mira", "Steve", 10))
	mem, _ := s.Load("Mira")
	assert.Equal(t, 10, mem.Relations["Steve"])

	require.NoError(t, s.AdjustRelation("Mira", "Steve", 500))
	mem, _ = s.Load("Mira")
	assert.Equal(t, core.RelationMax, mem.Relations["Steve"])

	require.NoError(t, s.AdjustRelation("Mira", "Steve", -1000))
	mem, _ = s.Load("Mira")
	assert.Equal(t, core.RelationMin, mem.Relations["Steve"])
}
