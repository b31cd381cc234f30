package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablemesh/converse/core"
	"github.com/fablemesh/converse/internal/testutil"
	"github.com/fablemesh/converse/memory"
	"github.com/fablemesh/converse/model"
)

// fastConfig shrinks every delay so full rounds finish within a test run.
func fastConfig() Config {
	cfg := DefaultConfig
	cfg.ResponseDelay = 2 * time.Millisecond
	cfg.TurnStagger = 2 * time.Millisecond
	cfg.ThinkDelay = 2 * time.Millisecond
	cfg.IndicatorSyncInterval = time.Millisecond
	return cfg
}

type engineFixture struct {
	engine    *Engine
	world     *testutil.FakeWorld
	store     *memory.InMemoryStore
	completer *model.ScriptedCompleter
	rumors    *testutil.FakeRumorSink
}

func newEngineFixture(t *testing.T, responses ...string) *engineFixture {
	t.Helper()
	f := &engineFixture{
		world:     testutil.NewFakeWorld(),
		store:     memory.NewInMemoryStore(),
		completer: model.NewScriptedCompleter(responses...),
		rumors:    &testutil.FakeRumorSink{},
	}
	f.engine = New(f.completer,
		WithConfig(fastConfig()),
		WithMemoryStore(f.store),
		WithPositioner(f.world),
		WithIndicatorRenderer(f.world),
		WithBroadcaster(f.world),
		WithRumorSink(f.rumors),
	)
	t.Cleanup(f.engine.Close)
	return f
}

func (f *engineFixture) placeAgents(agents ...core.AgentID) {
	for _, a := range agents {
		f.world.PlaceAgent(a, core.Position{X: 1, Y: 64, Z: 1})
	}
}

func TestEngine_StartSession(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira", "Tomas")

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira", "Tomas"})
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.Same(t, sess, f.engine.ActiveSession("Steve"))
	assert.Same(t, sess, f.engine.AgentSession("Mira"))

	notices := f.world.Notices()
	require.NotEmpty(t, notices)
	assert.Equal(t, "You started a conversation with: Mira, Tomas", notices[0].Text)
}

func TestEngine_StartSessionSupersedesExisting(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira", "Tomas")

	first, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	// same player again: old session ends, a fresh one takes over
	second, err := f.engine.StartSession("Steve", []core.AgentID{"Tomas"})
	require.NoError(t, err)
	assert.False(t, first.Active())
	assert.Same(t, second, f.engine.ActiveSession("Steve"))

	// another player drafting Tomas: the agent's session ends first
	third, err := f.engine.StartSession("Alex", []core.AgentID{"Tomas"})
	require.NoError(t, err)
	assert.False(t, second.Active())
	assert.Nil(t, f.engine.ActiveSession("Steve"))
	assert.Same(t, third, f.engine.AgentSession("Tomas"))
}

func TestEngine_PlayerMessageTriggersRound(t *testing.T) {
	f := newEngineFixture(t, "Welcome to the forge, Steve.")
	f.placeAgents("Mira")

	_, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "hello Mira", true))

	require.Eventually(t, func() bool {
		return len(f.world.Broadcasts()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "Welcome to the forge, Steve.", f.world.Broadcasts()[0].Text)
	assert.Equal(t, "Mira", f.world.Broadcasts()[0].Speaker)

	sess := f.engine.ActiveSession("Steve")
	require.NotNil(t, sess)
	history := sess.History()
	require.Len(t, history, 3)
	assert.Equal(t, "Steve: hello Mira", history[0].Text)
	assert.Equal(t, "Mira: Welcome to the forge, Steve.", history[1].Text)
	assert.Equal(t, "Mira listens", history[2].Text)
}

func TestEngine_PostWithoutSession(t *testing.T) {
	f := newEngineFixture(t)
	err := f.engine.PostPlayerMessage("Steve", "anyone there?", true)
	assert.ErrorIs(t, err, core.ErrNoActiveSession)

	notices := f.world.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "You are not currently in an active conversation.", notices[0].Text)
}

func TestEngine_BroadcastDisabledSkipsRound(t *testing.T) {
	f := newEngineFixture(t, "never spoken")
	f.placeAgents("Mira")

	_, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "quiet note", false))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.completer.CallCount())
	sess := f.engine.ActiveSession("Steve")
	require.Len(t, sess.History(), 1, "message is recorded even without a round")
}

func TestEngine_EndSessionRunsConsequences(t *testing.T) {
	f := newEngineFixture(t, "[SUMMARY]\nThey argued.\n[SIGNIFICANCE: 1]")
	f.placeAgents("Mira")

	_, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "one", false))
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "two", false))
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "three", false))

	require.NoError(t, f.engine.EndSessionForPlayer("Steve"))
	assert.Nil(t, f.engine.ActiveSession("Steve"))

	// rumor propagation fires once per ended session regardless of rating
	require.Eventually(t, func() bool {
		return len(f.rumors.Calls()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []core.AgentID{"Mira"}, f.rumors.Calls()[0].Participants)

	notices := f.world.Notices()
	assert.Equal(t, "The conversation has ended.", notices[len(notices)-1].Text)

	// agents are free for a new session right away
	_, err = f.engine.StartSession("Alex", []core.AgentID{"Mira"})
	assert.NoError(t, err)
}

func TestEngine_EndSessionWithoutSession(t *testing.T) {
	f := newEngineFixture(t)
	assert.ErrorIs(t, f.engine.EndSessionForPlayer("Steve"), core.ErrNoActiveSession)
}

func TestEngine_EndTokenEndsSession(t *testing.T) {
	f := newEngineFixture(t, "Safe travels. [End]")
	f.placeAgents("Mira")

	_, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "farewell", true))

	require.Eventually(t, func() bool {
		return f.engine.ActiveSession("Steve") == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEngine_RemoveAgentKeepsSessionWhenOthersRemain(t *testing.T) {
	f := newEngineFixture(t, "A private recap.")
	f.placeAgents("Mira", "Tomas")

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira", "Tomas"})
	require.NoError(t, err)
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "hello both", false))

	require.NoError(t, f.engine.RemoveAgent("Steve", "Mira", false))
	assert.True(t, sess.Active())
	assert.Equal(t, []core.AgentID{"Tomas"}, sess.Agents())

	history := sess.History()
	assert.Equal(t, "Mira has left the conversation.", history[len(history)-1].Text)

	// the departing agent gets a private summary of what it heard
	require.Eventually(t, func() bool {
		mem, _ := f.store.Load("Mira")
		return len(mem.History) == 1
	}, 2*time.Second, 5*time.Millisecond)
	mem, _ := f.store.Load("Mira")
	assert.Equal(t, "A private recap.", mem.History[0].Text)
}

func TestEngine_RemoveLastAgentEndsSession(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira")

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	require.NoError(t, f.engine.RemoveAgent("Steve", "Mira", false))
	assert.False(t, sess.Active())
	assert.Nil(t, f.engine.ActiveSession("Steve"))
}

func TestEngine_RemoveLastAgentWithOthersNearbyKeepsSession(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira")

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	require.NoError(t, f.engine.RemoveAgent("Steve", "Mira", true))
	assert.True(t, sess.Active(), "nearby agents may still join")
	assert.Equal(t, 0, sess.AgentCount())
}

func TestEngine_RemoveAgentNotInSession(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira")

	_, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	require.NoError(t, f.engine.RemoveAgent("Steve", "Edda", false))
	notices := f.world.Notices()
	assert.Equal(t, "Edda is not part of the conversation.", notices[len(notices)-1].Text)
}

func TestEngine_AddAgent(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira", "Edda")

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	assert.True(t, f.engine.AddAgent(sess.ID, "Edda"))
	assert.Equal(t, []core.AgentID{"Mira", "Edda"}, sess.Agents())
	history := sess.History()
	assert.Equal(t, "Edda has joined the conversation.", history[len(history)-1].Text)

	assert.False(t, f.engine.AddAgent(sess.ID, "Edda"), "already a member")
	assert.False(t, f.engine.AddAgent("no-such-session", "Edda"))
}

func TestEngine_AddAgentInAnotherSessionRefused(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira", "Edda")

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)
	_, err = f.engine.StartSession("Alex", []core.AgentID{"Edda"})
	require.NoError(t, err)

	assert.False(t, f.engine.AddAgent(sess.ID, "Edda"))
}

func TestEngine_AmbientSessionRunsOneRoundAndEnds(t *testing.T) {
	f := newEngineFixture(t, "Morning, Tomas.", "Morning, Mira.")
	f.placeAgents("Mira", "Tomas")

	sess, err := f.engine.StartAmbientSession([]core.AgentID{"Mira", "Tomas"})
	require.NoError(t, err)
	require.NotNil(t, sess)

	require.Eventually(t, func() bool {
		return !sess.Active() && f.engine.AgentSession("Mira") == nil
	}, 2*time.Second, 5*time.Millisecond)

	broadcasts := f.world.Broadcasts()
	require.Len(t, broadcasts, 2)
	assert.Equal(t, "Mira", broadcasts[0].Speaker)
	assert.Equal(t, "Tomas", broadcasts[1].Speaker)

	// light teardown: no consequence pipeline for ambient chatter
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.rumors.Calls())
}

func TestEngine_AmbientSessionRequiresTwoAgents(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira")

	_, err := f.engine.StartAmbientSession([]core.AgentID{"Mira"})
	assert.Error(t, err)
	assert.Nil(t, f.engine.AgentSession("Mira"))
}

func TestEngine_RadiantDisabled(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira", "Tomas")

	f.engine.SetRadiantEnabled(false)
	assert.False(t, f.engine.RadiantEnabled())

	_, err := f.engine.StartAmbientSession([]core.AgentID{"Mira", "Tomas"})
	assert.ErrorIs(t, err, ErrRadiantDisabled)

	f.engine.SetRadiantEnabled(true)
	_, err = f.engine.StartAmbientSession([]core.AgentID{"Mira", "Tomas"})
	assert.NoError(t, err)
}

func TestEngine_DisabledAgentSkipsTurns(t *testing.T) {
	f := newEngineFixture(t, "Only Tomas talks.")
	f.placeAgents("Mira", "Tomas")

	f.engine.SetAgentDisabled("Mira", true)
	_, err := f.engine.StartSession("Steve", []core.AgentID{"Mira", "Tomas"})
	require.NoError(t, err)
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "hello", true))

	require.Eventually(t, func() bool {
		return len(f.world.Broadcasts()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Tomas", f.world.Broadcasts()[0].Speaker)
}

func TestEngine_PostAgentMessage(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira")

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	assert.True(t, f.engine.PostAgentMessage("Mira", "scripted line"))
	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, "Mira: scripted line", history[0].Text)
	assert.Equal(t, "*Rest are listening...*", history[1].Text)

	assert.False(t, f.engine.PostAgentMessage("Edda", "nobody home"))
}

func TestEngine_AddPlayerByAgentAndParticipants(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira")

	_, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	assert.True(t, f.engine.AddPlayerByAgent("Alex", "Mira"))
	assert.False(t, f.engine.AddPlayerByAgent("Alex", "Mira"), "already a member")
	assert.False(t, f.engine.AddPlayerByAgent("Alex", "Edda"), "agent has no session")

	assert.Equal(t, []string{"Mira", "Steve", "Alex"}, f.engine.Participants("Steve"))
	assert.Nil(t, f.engine.Participants("Nobody"))
}

func TestEngine_StopAll(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira", "Tomas", "Edda", "Finn")

	_, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)
	_, err = f.engine.StartSession("Alex", []core.AgentID{"Tomas"})
	require.NoError(t, err)
	_, err = f.engine.StartAgentSession([]core.AgentID{"Edda", "Finn"})
	require.NoError(t, err)

	f.engine.StopAll()

	assert.Nil(t, f.engine.ActiveSession("Steve"))
	assert.Nil(t, f.engine.ActiveSession("Alex"))
	assert.Nil(t, f.engine.AgentSession("Edda"))
}

func TestEngine_AddAgentByApproach(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira", "Edda")
	f.world.PlacePlayer("Steve", core.Position{X: 10, Y: 64, Z: 10})

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	require.True(t, f.engine.AddAgentByApproach("Edda", sess.ID, "Room for one more?"))

	require.Eventually(t, func() bool {
		return sess.HasAgent("Edda")
	}, 2*time.Second, 5*time.Millisecond)

	// the agent walked to the player before joining
	pos, ok := f.world.CurrentLocation("Edda")
	require.True(t, ok)
	assert.Equal(t, 10.0, pos.X)

	require.Eventually(t, func() bool {
		return len(f.world.Broadcasts()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Room for one more?", f.world.Broadcasts()[0].Text)
	assert.Equal(t, "Edda", f.world.Broadcasts()[0].Speaker)
}

func TestEngine_AddAgentByApproachGeneratedGreeting(t *testing.T) {
	f := newEngineFixture(t, "Evening, all. What did I miss?")
	f.placeAgents("Mira", "Edda")
	f.world.PlacePlayer("Steve", core.Position{X: 10, Y: 64, Z: 10})

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)
	require.NoError(t, f.engine.PostPlayerMessage("Steve", "quiet evening", false))

	require.True(t, f.engine.AddAgentByApproach("Edda", sess.ID, ""))

	require.Eventually(t, func() bool {
		for _, b := range f.world.Broadcasts() {
			if b.Speaker == "Edda" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	var eddaLine string
	for _, b := range f.world.Broadcasts() {
		if b.Speaker == "Edda" {
			eddaLine = b.Text
		}
	}
	assert.Equal(t, "Evening, all. What did I miss?", eddaLine)

	found := false
	for _, m := range sess.History() {
		if m.Text == "Edda: Evening, all. What did I miss?" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEngine_AddAgentByApproachRefusals(t *testing.T) {
	f := newEngineFixture(t)
	f.placeAgents("Mira", "Edda")

	sess, err := f.engine.StartSession("Steve", []core.AgentID{"Mira"})
	require.NoError(t, err)

	assert.False(t, f.engine.AddAgentByApproach("Ghost", sess.ID, "hi"), "absent agent")
	assert.False(t, f.engine.AddAgentByApproach("Mira", sess.ID, "hi"), "already in the session")
	assert.False(t, f.engine.AddAgentByApproach("Edda", "no-such-session", "hi"))
}
