package meter

import (
	"testing"
	"time"

	"github.com/halvard/partymeter/event"
	"github.com/halvard/partymeter/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, mode Mode) *Engine {
	t.Helper()
	e, err := NewEngine(Config{
		Mode:          mode,
		BattleTimeout: 5 * time.Second,
		TickWindow:    10 * time.Second,
		HistorySize:   20,
	}, nil)
	require.NoError(t, err)
	return e
}

var testEndpoint = transport.Endpoint{IP: [4]byte{10, 0, 0, 1}, Port: 5055}

// Scenario 1 (spec.md §8): single self damage.
func TestEngine_SingleSelfDamage(t *testing.T) {
	e := newTestEngine(t, ModeBattle)
	e.SeedSelf("Alice", 0, false)

	now := time.Now()
	e.ApplyEvent(event.HealthUpdate{TargetID: 7, ActorID: 7, Delta: -100}, now, testEndpoint)
	e.ApplyEvent(event.SelfIdentified{ActorID: 7, Name: "Alice"}, now, testEndpoint)

	snap := e.RequestSnapshot(now)
	require.Len(t, snap.Actors, 1)
	assert.Equal(t, "Alice", snap.Actors[0].Name)
	assert.Equal(t, uint64(100), snap.Actors[0].Damage)
}

// Scenario 2 (spec.md §8): events from a non-party actor never surface.
func TestEngine_NonPartyFilteredOut(t *testing.T) {
	e := newTestEngine(t, ModeBattle)
	e.SeedSelf("Alice", 1, true)
	e.ApplyEvent(event.PartyUpdate{Names: []string{"Alice", "Bob"}}, time.Now(), testEndpoint)
	e.ApplyEvent(event.PlayerJoined{ActorID: 2, Name: "Bob"}, time.Now(), testEndpoint)
	e.ApplyEvent(event.PlayerJoined{ActorID: 3, Name: "Carol"}, time.Now(), testEndpoint)

	now := time.Now()
	e.ApplyEvent(event.HealthUpdate{TargetID: 3, ActorID: 3, Delta: -50}, now, testEndpoint)

	snap := e.RequestSnapshot(now)
	for _, a := range snap.Actors {
		assert.NotEqual(t, "Carol", a.Name)
	}
}

// Scenario 4 (spec.md §8): battle-mode session closes on timeout.
func TestEngine_BattleTimeoutClosesSession(t *testing.T) {
	e := newTestEngine(t, ModeBattle)
	e.SeedSelf("Alice", 1, true)
	e.ApplyEvent(event.PartyUpdate{Names: []string{"Alice"}}, time.Now(), testEndpoint)

	t0 := time.Now()
	e.ApplyEvent(event.HealthUpdate{TargetID: 1, ActorID: 1, Delta: -100}, t0, testEndpoint)

	e.Tick(t0.Add(5100 * time.Millisecond))

	require.Nil(t, e.session.Current())
	require.Equal(t, 1, e.session.History().Len())
	archived := e.session.History().Entries()[0]
	assert.Equal(t, "Battle 1", archived.Label)
	assert.Equal(t, uint64(100), archived.PerActor["Alice"].Damage)
}

// Scenario 5 (spec.md §8): zone change clears ids but keeps self/party.
func TestEngine_ZoneChangeClearsIDsKeepsPartyAndSelf(t *testing.T) {
	e := newTestEngine(t, ModeZone)
	e.SeedSelf("Alice", 1, true)
	e.ApplyEvent(event.PartyUpdate{Names: []string{"Alice", "Bob"}}, time.Now(), testEndpoint)
	e.ApplyEvent(event.PlayerJoined{ActorID: 5, Name: "Bob"}, time.Now(), testEndpoint)

	e.ApplyEvent(event.ZoneChanged{Label: "Caerleon"}, time.Now(), testEndpoint)

	_, ok := e.roster.NameOf(5)
	assert.False(t, ok, "id_to_name must be cleared on zone change")

	selfName, haveSelf := e.roster.SelfName()
	require.True(t, haveSelf)
	assert.Equal(t, "Alice", selfName)
	assert.True(t, e.roster.InParty("Alice"))
	assert.True(t, e.roster.InParty("Bob"))
}

// Scenario 6 (spec.md §8): late-join backfill preserves original tick
// timestamp, not the time of the PlayerJoined that resolved it.
func TestEngine_LateJoinBackfill(t *testing.T) {
	e := newTestEngine(t, ModeBattle)
	e.SeedSelf("Alice", 1, true)
	e.ApplyEvent(event.PartyUpdate{Names: []string{"Alice", "Bob"}}, time.Now(), testEndpoint)

	t0 := time.Unix(1000, 0)
	t1 := t0.Add(time.Second)

	e.ApplyEvent(event.HealthUpdate{TargetID: 9, ActorID: 9, Delta: -50}, t0, testEndpoint)
	e.ApplyEvent(event.PlayerJoined{ActorID: 9, Name: "Bob"}, t1, testEndpoint)

	sess := e.session.Current()
	require.NotNil(t, sess)
	require.Contains(t, sess.PerActor, "Bob")
	assert.Equal(t, uint64(50), sess.PerActor["Bob"].Damage)
	require.Len(t, sess.PerActor["Bob"].ticks, 1)
	assert.Equal(t, t0, sess.PerActor["Bob"].ticks[0].ts)
}

// Invariant 1 (spec.md §8): no event ever aggregates under a name
// outside party ∪ {self}.
func TestEngine_GatingInvariant(t *testing.T) {
	e := newTestEngine(t, ModeBattle)
	e.SeedSelf("Alice", 1, true)
	e.ApplyEvent(event.PartyUpdate{Names: []string{"Alice"}}, time.Now(), testEndpoint)

	now := time.Now()
	e.ApplyEvent(event.HealthUpdate{TargetID: 99, ActorID: 99, Delta: -10}, now, testEndpoint)

	snap := e.RequestSnapshot(now)
	assert.Empty(t, snap.Actors)
}
