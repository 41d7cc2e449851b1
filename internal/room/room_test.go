package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/fightclub-backend/internal/engine"
)

// helper: receive one update with a timeout so tests never hang
func recvUpdate(t *testing.T, ch <-chan Update, within time.Duration) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatalf("member outbox closed unexpectedly")
		}
		return u
	case <-time.After(within):
		t.Fatalf("timed out waiting for update")
		return Update{} // unreachable
	}
}

func recvNoUpdate(t *testing.T, ch <-chan Update, within time.Duration) {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further updates possible
			return
		}
		t.Fatalf("expected no update within %v, but got: %+v", within, u.Events)
	case <-time.After(within):
		// good: no update
	}
}

// recvUntil drains updates until one carries the wanted event.
func recvUntil(t *testing.T, ch <-chan Update, want engine.EventType, within time.Duration) Update {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				t.Fatalf("member outbox closed while waiting for %s", want)
			}
			if engine.ContainsEvent(u.Events, want) {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return Update{}
		}
	}
}

func waitClosed(t *testing.T, ch <-chan Update, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox was not closed within %v", within)
		}
	}
}

func newTestRoom(t *testing.T, opts Options) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = 10 * time.Millisecond
	}
	r := New(ctx, "42", opts)
	t.Cleanup(func() {
		cancel()
		<-r.Done() // the loop logs on teardown; let it finish inside the test
	})
	return r
}

// pair joins p1 and p2 and drains the join updates.
func pair(t *testing.T, r *Room) (chan Update, chan Update) {
	t.Helper()
	ctx := context.Background()
	out1 := make(chan Update, 16)
	out2 := make(chan Update, 16)
	require.NoError(t, r.Join(ctx, "p1", out1))
	recvUpdate(t, out1, 100*time.Millisecond)
	require.NoError(t, r.Join(ctx, "p2", out2))
	recvUpdate(t, out1, 100*time.Millisecond)
	recvUpdate(t, out2, 100*time.Millisecond)
	return out1, out2
}

func fight(t *testing.T, r *Room, a, b engine.Archetype) (chan Update, chan Update) {
	t.Helper()
	ctx := context.Background()
	out1, out2 := pair(t, r)
	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p1", Archetype: string(a)}))
	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p2", Archetype: string(b)}))
	recvUntil(t, out1, engine.EvtCombatStarted, time.Second)
	recvUntil(t, out2, engine.EvtCombatStarted, time.Second)
	return out1, out2
}

func TestRoom_Join_BroadcastsAndVersionIncrements(t *testing.T) {
	r := newTestRoom(t, Options{})
	out1, out2 := pair(t, r)
	_ = out2

	require.NoError(t, r.Do(context.Background(), engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p1", Archetype: "Warrior"}))
	u := recvUpdate(t, out1, 100*time.Millisecond)
	assert.Equal(t, 3, u.Version)
	assert.Equal(t, "42", u.RoomID)
	require.Len(t, u.Events, 1)
	assert.Equal(t, engine.EvtCharacterPicked, u.Events[0].Type)
	assert.Equal(t, engine.PhaseSelecting, u.State.Phase)
}

func TestRoom_ThirdJoinRejected_NoBroadcast(t *testing.T) {
	r := newTestRoom(t, Options{})
	out1, out2 := pair(t, r)

	out3 := make(chan Update, 4)
	err := r.Join(context.Background(), "p3", out3)
	require.ErrorIs(t, err, engine.ErrRoomFull)

	recvNoUpdate(t, out1, 50*time.Millisecond)
	recvNoUpdate(t, out2, 50*time.Millisecond)
	recvNoUpdate(t, out3, 10*time.Millisecond)

	v, err := r.View(context.Background())
	require.NoError(t, err)
	assert.Len(t, v.State.Participants, 2)
	assert.Equal(t, 2, v.NumClients)
	assert.False(t, r.Open())
}

func TestRoom_CountdownTicksThenCombat(t *testing.T) {
	r := newTestRoom(t, Options{})
	ctx := context.Background()
	out1, _ := pair(t, r)

	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p1", Archetype: "Warrior"}))
	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p2", Archetype: "Mage"}))

	var remaining []int
	for {
		u := recvUpdate(t, out1, time.Second)
		for _, e := range u.Events {
			if e.Type == engine.EvtCountdown {
				remaining = append(remaining, e.Remaining)
			}
		}
		if engine.ContainsEvent(u.Events, engine.EvtCombatStarted) {
			assert.Equal(t, "p1", u.State.Turn)
			break
		}
	}
	assert.Equal(t, []int{3, 2, 1}, remaining)
}

func TestRoom_RequestHealth_OnlyToRequester(t *testing.T) {
	r := newTestRoom(t, Options{})
	ctx := context.Background()
	out1, out2 := fight(t, r, engine.Archer, engine.Healer)

	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdRequestHealth, ParticipantID: "p2"}))
	u := recvUpdate(t, out2, 100*time.Millisecond)
	assert.Equal(t, []engine.Event{{Type: engine.EvtHealthReported, ParticipantID: "p2"}}, u.Events)
	recvNoUpdate(t, out1, 50*time.Millisecond)
}

func TestRoom_WrongTurnRejected(t *testing.T) {
	r := newTestRoom(t, Options{})
	ctx := context.Background()
	out1, out2 := fight(t, r, engine.Warrior, engine.Mage)

	err := r.Do(ctx, engine.Command{Type: engine.CmdAttack, ParticipantID: "p2", TargetID: "p1"})
	require.ErrorIs(t, err, engine.ErrWrongTurn)
	recvNoUpdate(t, out1, 50*time.Millisecond)
	recvNoUpdate(t, out2, 10*time.Millisecond)

	v, err := r.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", v.State.Turn)
}

func TestRoom_DisconnectForfeits(t *testing.T) {
	r := newTestRoom(t, Options{GracePeriod: time.Hour})
	ctx := context.Background()
	out1, out2 := fight(t, r, engine.Warrior, engine.Mage)

	require.NoError(t, r.Leave(ctx, "p2"))
	waitClosed(t, out2, 100*time.Millisecond)

	u := recvUntil(t, out1, engine.EvtGameOver, 100*time.Millisecond)
	assert.Equal(t, "p1", u.State.Winner)
	assert.Contains(t, u.Events, engine.Event{Type: engine.EvtGameOver, ParticipantID: "p1", Reason: engine.ReasonForfeit})

	require.NoError(t, r.Leave(ctx, "p1"))
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("room did not close after the last member left")
	}
	assert.True(t, r.Closed())
	assert.ErrorIs(t, r.Do(ctx, engine.Command{Type: engine.CmdHeal, ParticipantID: "p1"}), ErrRoomClosed)
}

func TestRoom_GracePeriodClosesFinishedRoom(t *testing.T) {
	closed := make(chan string, 1)
	r := newTestRoom(t, Options{
		GracePeriod: 20 * time.Millisecond,
		OnClose:     func(id string, _ *Room) { closed <- id },
	})
	ctx := context.Background()
	out1, _ := fight(t, r, engine.Warrior, engine.Mage)

	require.NoError(t, r.Leave(ctx, "p2"))
	recvUntil(t, out1, engine.EvtGameOver, 100*time.Millisecond)
	waitClosed(t, out1, time.Second)

	select {
	case id := <-closed:
		assert.Equal(t, "42", id)
	case <-time.After(time.Second):
		t.Fatalf("OnClose not called")
	}
}

func TestRoom_IdleRoomCloses(t *testing.T) {
	r := newTestRoom(t, Options{IdleTTL: 20 * time.Millisecond})
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("idle room was not reaped")
	}
}

func TestRoom_JoinCancelsIdleTimer(t *testing.T) {
	r := newTestRoom(t, Options{IdleTTL: 30 * time.Millisecond})
	out := make(chan Update, 4)
	require.NoError(t, r.Join(context.Background(), "p1", out))
	recvUpdate(t, out, 100*time.Millisecond)
	recvNoUpdate(t, out, 80*time.Millisecond)
	assert.False(t, r.Closed())
	assert.True(t, r.Open())
}

func TestRoom_DropSlowClient(t *testing.T) {
	r := newTestRoom(t, Options{})
	ctx := context.Background()

	slow := make(chan Update, 1)
	require.NoError(t, r.Join(ctx, "p1", slow))
	// slow now holds one update; the next broadcast cannot fit.
	require.NoError(t, r.Join(ctx, "p2", make(chan Update, 8)))

	v, err := r.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v.NumClients, "slow client should be dropped")
	assert.Len(t, v.State.Participants, 2, "dropping the subscription keeps the participant")
}

func TestRoom_Shutdown_StopsCountdown(t *testing.T) {
	r := newTestRoom(t, Options{TickInterval: 200 * time.Millisecond})
	ctx := context.Background()
	out1, _ := pair(t, r)
	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p1", Archetype: "Mage"}))
	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p2", Archetype: "Mage"}))
	recvUntil(t, out1, engine.EvtCountdown, 100*time.Millisecond)

	r.Inbox() <- Shutdown{}
	waitClosed(t, out1, 100*time.Millisecond)
	recvNoUpdate(t, out1, 300*time.Millisecond)
}

func TestRoom_Rejoin_ResendsRoster(t *testing.T) {
	r := newTestRoom(t, Options{})
	ctx := context.Background()
	old := make(chan Update, 4)
	require.NoError(t, r.Join(ctx, "p1", old))
	recvUpdate(t, old, 100*time.Millisecond)

	fresh := make(chan Update, 4)
	require.NoError(t, r.Join(ctx, "p1", fresh))
	waitClosed(t, old, 100*time.Millisecond)
	u := recvUpdate(t, fresh, 100*time.Millisecond)
	assert.True(t, engine.ContainsEvent(u.Events, engine.EvtParticipantJoined))
	assert.Equal(t, 1, u.Version)
}

func TestRoom_ConcurrentActionsAreSerialized(t *testing.T) {
	r := newTestRoom(t, Options{GracePeriod: time.Hour})
	ctx := context.Background()
	out1 := make(chan Update, 512)
	require.NoError(t, r.Join(ctx, "p1", out1))
	require.NoError(t, r.Join(ctx, "p2", make(chan Update, 512)))

	stop := make(chan struct{})
	var g errgroup.Group
	for _, p := range []struct{ id, target string }{{"p1", "p2"}, {"p2", "p1"}} {
		// Both players start firing while the countdown is still running.
		g.Go(func() error {
			for i := 0; ; i++ {
				select {
				case <-stop:
					return nil
				default:
				}
				cmd := engine.Command{Type: engine.CmdAttack, ParticipantID: p.id, TargetID: p.target}
				if i%3 == 2 {
					cmd = engine.Command{Type: engine.CmdHeal, ParticipantID: p.id}
				}
				if err := r.Do(ctx, cmd); err != nil && !errors.Is(err, engine.ErrInvalidAction) {
					return err
				}
			}
		})
	}
	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p1", Archetype: "Archer"}))
	require.NoError(t, r.Do(ctx, engine.Command{Type: engine.CmdPickCharacter, ParticipantID: "p2", Archetype: "Archer"}))

	var (
		turns    []string
		gameOver int
		version  int
	)
	for gameOver == 0 {
		u := recvUpdate(t, out1, 5*time.Second)
		assert.Equal(t, version+1, u.Version, "versions are contiguous")
		version = u.Version
		for _, e := range u.Events {
			switch e.Type {
			case engine.EvtTurnChanged:
				turns = append(turns, e.ParticipantID)
			case engine.EvtHealthUpdated:
				assert.GreaterOrEqual(t, e.Health, 0)
				assert.LessOrEqual(t, e.Health, 100)
			case engine.EvtGameOver:
				gameOver++
			}
		}
	}
	close(stop)
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, gameOver)

	require.NotEmpty(t, turns)
	assert.Equal(t, "p1", turns[0])
	for i := 1; i < len(turns); i++ {
		assert.NotEqual(t, turns[i-1], turns[i], "turn %d did not alternate", i)
	}

	// Nothing after the single game over.
	recvNoUpdate(t, out1, 50*time.Millisecond)
	v, err := r.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseGameOver, v.State.Phase)
	assert.Equal(t, version, v.Version)
}
