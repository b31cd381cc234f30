package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/fablemesh/converse/core"
)

// AddAgentByApproach directs an agent to walk toward an active session and
// join it on arrival. If greeting is empty, one is generated from the agent's
// context and the recent history once the agent has joined; either way the
// join triggers a fresh response round.
//
// Returns false if the session is unknown or ended, the agent is absent from
// the world, the agent is already in a session, or navigation could not start.
func (e *Engine) AddAgentByApproach(agent core.AgentID, sessionID string, greeting string) bool {
	var ok bool
	e.run(func() { ok = e.addAgentByApproach(agent, sessionID, greeting) })
	return ok
}

func (e *Engine) addAgentByApproach(agent core.AgentID, sessionID string, greeting string) bool {
	sess := e.registry.Get(sessionID)
	if sess == nil || !sess.Active() {
		return false
	}
	if other := e.registry.FindByAgent(agent); other != nil {
		return false
	}
	if _, present := e.positioner.CurrentLocation(agent); !present {
		return false
	}

	target, ok := e.approachTarget(sess)
	if !ok {
		e.logger.Warn("no reference point to walk %s toward session %s", agent, sess.ID)
		return false
	}

	if err := e.positioner.NavigateTo(agent, target, e.cfg.ArrivalRadius, func() {
		e.post(func() { e.completeApproach(agent, sess, greeting) })
	}); err != nil {
		e.logger.Warn("navigation for %s failed: %v", agent, err)
		return false
	}
	return true
}

// approachTarget picks the point the agent walks to: the first online player,
// else another present agent.
func (e *Engine) approachTarget(sess *core.Session) (core.Position, bool) {
	for _, p := range sess.Players() {
		if pos, ok := e.positioner.PlayerLocation(p); ok {
			return pos, true
		}
	}
	for _, a := range sess.Agents() {
		if pos, ok := e.positioner.CurrentLocation(a); ok {
			return pos, true
		}
	}
	return core.Position{}, false
}

// completeApproach runs on the main loop after the walk finishes. The session
// may have ended or the agent may have been drafted elsewhere during the walk,
// so everything is re-checked before joining.
func (e *Engine) completeApproach(agent core.AgentID, sess *core.Session, greeting string) {
	if !sess.Active() {
		return
	}
	if other := e.registry.FindByAgent(agent); other != nil {
		return
	}
	if !sess.AddAgent(agent) {
		return
	}
	sess.Append(core.NewSystemMessage(fmt.Sprintf("%s has joined the conversation.", agent)))
	for _, p := range sess.Players() {
		e.broadcaster.NotifyPlayer(p, fmt.Sprintf("%s has joined the conversation.", agent))
	}

	if greeting != "" {
		e.deliverGreeting(agent, sess, greeting)
		return
	}

	messages := e.assembler.AssembleGreeting(agent, sess)
	go func() {
		text, err := e.completer.Complete(context.Background(), messages)
		e.post(func() {
			if err != nil || strings.TrimSpace(text) == "" {
				// Join silently; the next round carries the conversation.
				e.logger.Warn("greeting generation for %s failed: %v", agent, err)
				e.startRoundIfLive(agent, sess)
				return
			}
			e.deliverGreeting(agent, sess, strings.TrimSpace(text))
		})
	}()
}

// deliverGreeting speaks the joining line and kicks off a response round.
func (e *Engine) deliverGreeting(agent core.AgentID, sess *core.Session, greeting string) {
	if !sess.Active() || !sess.HasAgent(agent) {
		return
	}
	sess.Append(core.NewAgentMessage(agent, greeting))
	e.broadcaster.Broadcast(greeting, string(agent))
	e.sched.StartRound(sess, e.roundPlayer(sess), false)
}

func (e *Engine) startRoundIfLive(agent core.AgentID, sess *core.Session) {
	if !sess.Active() || !sess.HasAgent(agent) {
		return
	}
	e.sched.StartRound(sess, e.roundPlayer(sess), false)
}

// roundPlayer resolves the player credited with triggering a round, empty for
// player-less sessions.
func (e *Engine) roundPlayer(sess *core.Session) core.PlayerID {
	players := sess.Players()
	if len(players) == 0 {
		return ""
	}
	return players[0]
}
