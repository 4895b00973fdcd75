package router

import (
	"testing"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/seed"
	"github.com/archipelago-mw/aprs-server/internal/session"
	"github.com/stretchr/testify/assert"
)

func testSession(team protocol.TeamId, slot protocol.SlotId, tags ...string) *session.Session {
	s := session.New(&fakeWriter{}, "")
	s.TeamId = team
	s.SlotId = slot
	s.Tags = tags
	return s
}

func TestBounceMatchesOnDifferentTeamAndGame(t *testing.T) {
	r := &Router{world: &seed.MultiWorldRecord{SlotInfo: map[protocol.SlotId]seed.SlotInfo{2: {Game: "GameB"}}}}
	sender := testSession(0, 1)
	c := testSession(1, 2)
	assert.True(t, r.bounceMatches(protocol.Bounce{Games: []string{"GameB"}}, sender, c))
}

func TestBounceDoesNotMatchSameTeamEvenWithGame(t *testing.T) {
	r := &Router{world: &seed.MultiWorldRecord{SlotInfo: map[protocol.SlotId]seed.SlotInfo{2: {Game: "GameB"}}}}
	sender := testSession(0, 1)
	c := testSession(0, 2)
	assert.False(t, r.bounceMatches(protocol.Bounce{Games: []string{"GameB"}}, sender, c))
}

func TestBounceMatchesOnSharedTag(t *testing.T) {
	r := &Router{world: &seed.MultiWorldRecord{SlotInfo: map[protocol.SlotId]seed.SlotInfo{}}}
	sender := testSession(0, 1)
	c := testSession(0, 2, "DeathLink")
	assert.True(t, r.bounceMatches(protocol.Bounce{Tags: []string{"DeathLink"}}, sender, c))
}

func TestBounceMatchesNothingWhenNoCriteriaOverlap(t *testing.T) {
	r := &Router{world: &seed.MultiWorldRecord{SlotInfo: map[protocol.SlotId]seed.SlotInfo{2: {Game: "GameB"}}}}
	sender := testSession(0, 1)
	c := testSession(0, 2, "DeathLink")
	assert.False(t, r.bounceMatches(protocol.Bounce{Games: []string{"GameB"}, Tags: []string{"Other"}}, sender, c))
}
