package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentMemory_Window(t *testing.T) {
	mem := &AgentMemory{}
	assert.Nil(t, mem.Window(5), "empty history yields no entries")

	mem.History = []Message{NewSystemMessage("persona prompt")}
	for i := 0; i < 10; i++ {
		mem.History = append(mem.History, NewSystemMessage(fmt.Sprintf("entry %d", i)))
	}

	got := mem.Window(3)
	assert.Len(t, got, 4)
	assert.Equal(t, "persona prompt", got[0].Text, "leading entry always survives")
	assert.Equal(t, "entry 7", got[1].Text)
	assert.Equal(t, "entry 9", got[3].Text)

	got = mem.Window(100)
	assert.Len(t, got, 11, "window larger than history returns everything")
}

func TestMessageConstructors(t *testing.T) {
	assert.Equal(t, Message{Role: RoleAssistant, Text: "Mira: hello"}, NewAgentMessage("Mira", "hello"))
	assert.Equal(t, Message{Role: RoleUser, Text: "Steve: hi"}, NewUserMessage("Steve", "hi"))
	assert.Equal(t, Message{Role: RoleUser, Text: "Tomas listens"}, NewListeningMarker("Tomas"))
	assert.Equal(t, Message{Role: RoleSystem, Text: "note"}, NewSystemMessage("note"))
}
