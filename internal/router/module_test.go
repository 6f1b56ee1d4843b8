package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argsOf(f Frame) []string {
	out := make([]string, len(f.Args))
	for i, v := range f.Args {
		out[i] = v.String()
	}
	return out
}

func TestDefaultDispatch_UpdateStoresAndBroadcasts(t *testing.T) {
	tr := newFakeTransport()
	m := NewModule("synth", tr)

	outcome := m.HandleLine("volume 0.8")

	assert.Equal(t, OutcomeUpdate, outcome)
	v, ok := m.Params().Get("volume")
	require.True(t, ok)
	assert.True(t, v.Equal(Scalar(Number(0.8))))

	require.Len(t, tr.broadcasts, 1)
	assert.Equal(t, PlayerRole, tr.broadcasts[0].role)
	assert.Equal(t, "/synth", tr.broadcasts[0].frame.Channel)
	assert.Equal(t, []string{"volume", "0.8"}, argsOf(tr.broadcasts[0].frame))
	assert.Zero(t, tr.sendCount())
}

func TestDefaultDispatch_BroadcastKeepsOriginalTokens(t *testing.T) {
	tr := newFakeTransport()
	m := NewModule("lights", tr)

	m.HandleLine("rgb 255 128 0")

	v, ok := m.Params().Get("rgb")
	require.True(t, ok)
	assert.True(t, v.IsSequence())
	assert.Equal(t, "[255 128 0]", v.String())

	require.Len(t, tr.broadcasts, 1)
	assert.Equal(t, []string{"rgb", "255", "128", "0"}, argsOf(tr.broadcasts[0].frame))
	for _, arg := range tr.broadcasts[0].frame.Args {
		assert.False(t, arg.IsSequence(), "broadcast args are flat")
	}
}

func TestDefaultDispatch_SetThenGetCollapses(t *testing.T) {
	tr := newFakeTransport()
	m := NewModule("synth", tr)

	cases := map[string]Value{
		"mute":   Collapse(nil),
		"volume": Scalar(Number(0.5)),
		"chord":  Sequence(Number(60), Number(64), Number(67)),
		"label":  Scalar(String("intro")),
	}
	m.HandleLine("mute")
	m.HandleLine("volume 0.5")
	m.HandleLine("chord 60 64 67")
	m.HandleLine("label intro")

	for name, want := range cases {
		got, ok := m.Params().Get(name)
		require.True(t, ok, name)
		assert.True(t, want.Equal(got), "%s: want %v got %v", name, want, got)
	}
}

func TestDefaultDispatch_LastWriteWins(t *testing.T) {
	tr := newFakeTransport()
	m := NewModule("synth", tr)

	m.HandleLine("volume 0.1")
	m.HandleLine("volume 0.9")

	v, _ := m.Params().Get("volume")
	assert.True(t, v.Equal(Scalar(Number(0.9))))
	assert.Equal(t, 1, m.Params().Len())
	assert.Equal(t, 2, tr.broadcastCount())
}

func TestDefaultDispatch_MethodBypassesStore(t *testing.T) {
	tr := newFakeTransport()
	var got []Value
	m := NewModule("synth", tr, WithMethod("panic", func(m *Module, args Value) {
		got = append(got, args)
	}))

	assert.Equal(t, OutcomeMethod, m.HandleLine("panic"))
	assert.Equal(t, OutcomeMethod, m.HandleLine("panic 1"))
	assert.Equal(t, OutcomeMethod, m.HandleLine("panic 1 2"))

	require.Len(t, got, 3)
	assert.True(t, got[0].IsEmpty())
	assert.True(t, got[1].Equal(Scalar(Number(1))))
	assert.True(t, got[2].Equal(Sequence(Number(1), Number(2))))

	assert.Zero(t, m.Params().Len(), "method names never become keys")
	assert.Zero(t, tr.broadcastCount())
}

func TestDispatch_EmptyLineIsDropped(t *testing.T) {
	tr := newFakeTransport()
	obs := &recordingObserver{}
	m := NewModule("synth", tr, WithObserver(obs))

	assert.Equal(t, OutcomeDropped, m.HandleLine(""))
	assert.Zero(t, tr.broadcastCount())
	assert.Equal(t, []Outcome{OutcomeDropped}, obs.outcomes)
}

func TestRoutedDispatch_TargetedSend(t *testing.T) {
	player := &fakeParticipant{id: "c3", identity: Number(3), role: PlayerRole}
	tr := newFakeTransport(player)
	m := NewModule("synth", tr, WithIdentityRouting())

	outcome := m.HandleLine("color 3 red green")

	assert.Equal(t, OutcomeTargeted, outcome)
	require.Len(t, tr.sends, 1)
	assert.Same(t, player, tr.sends[0].to)
	assert.Equal(t, "/synth", tr.sends[0].frame.Channel)
	assert.Equal(t, []string{"color", "red", "green"}, argsOf(tr.sends[0].frame))
	assert.Zero(t, tr.broadcastCount())
	assert.Zero(t, m.Params().Len())
}

func TestRoutedDispatch_StringIdentity(t *testing.T) {
	player := &fakeParticipant{id: "c1", identity: String("alice"), role: PlayerRole}
	tr := newFakeTransport(player)
	m := NewModule("synth", tr, WithIdentityRouting())

	assert.Equal(t, OutcomeTargeted, m.HandleLine("note alice 60"))
	require.Len(t, tr.sends, 1)
	assert.Equal(t, []string{"note", "60"}, argsOf(tr.sends[0].frame))
}

func TestRoutedDispatch_LookupMissIsNoop(t *testing.T) {
	tr := newFakeTransport()
	obs := &recordingObserver{}
	m := NewModule("synth", tr, WithIdentityRouting(), WithObserver(obs))

	outcome := m.HandleLine("color 42 red")

	assert.Equal(t, OutcomeDropped, outcome)
	assert.Equal(t, 1, tr.lookupCalls)
	assert.Zero(t, tr.sendCount())
	assert.Zero(t, tr.broadcastCount())
	assert.Zero(t, m.Params().Len())
	assert.Empty(t, obs.stored)
}

func TestRoutedDispatch_SentinelBroadcastsAndStores(t *testing.T) {
	tr := newFakeTransport()
	obs := &recordingObserver{}
	m := NewModule("synth", tr, WithIdentityRouting(), WithObserver(obs))

	outcome := m.HandleLine("color -1 red")

	assert.Equal(t, OutcomeUpdate, outcome)
	v, ok := m.Params().Get("color")
	require.True(t, ok)
	assert.True(t, v.Equal(Scalar(String("red"))))
	require.Len(t, tr.broadcasts, 1)
	assert.Equal(t, []string{"color", "red"}, argsOf(tr.broadcasts[0].frame))
	assert.Zero(t, tr.sendCount())
	assert.Zero(t, tr.lookupCalls)
	assert.Equal(t, []string{"color"}, obs.stored)
}

func TestRoutedDispatch_MethodKeepsIdentity(t *testing.T) {
	tr := newFakeTransport()
	var got []Value
	m := NewModule("synth", tr, WithIdentityRouting(), WithMethod("ping", func(m *Module, args Value) {
		got = append(got, args)
	}))

	m.HandleLine("ping 3")
	m.HandleLine("ping 3 loud")

	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(Scalar(Number(3))))
	assert.True(t, got[1].Equal(Sequence(Number(3), String("loud"))))
	assert.Zero(t, tr.lookupCalls)
}

func TestRoutedDispatch_MissingIdentityIsDropped(t *testing.T) {
	tr := newFakeTransport()
	m := NewModule("synth", tr, WithIdentityRouting())

	assert.Equal(t, OutcomeDropped, m.HandleLine("color"))
	assert.Zero(t, tr.sendCount())
	assert.Zero(t, tr.broadcastCount())
	assert.Zero(t, m.Params().Len())
}

func TestJoinReplayIsComplete(t *testing.T) {
	tr := newFakeTransport()
	m := NewModule("synth", tr)

	const n = 5
	for i := 0; i < n; i++ {
		m.HandleLine(fmt.Sprintf("p%d %d", i, i))
	}
	m.HandleLine("p0 100") // overwrite keeps one entry per name

	player := &fakeParticipant{id: "late", identity: Number(7), role: PlayerRole}
	sent := m.Join(player)

	assert.Equal(t, n, sent)
	require.Len(t, tr.sends, n)
	seen := make(map[string]string)
	for _, s := range tr.sends {
		assert.Same(t, player, s.to)
		require.Len(t, s.frame.Args, 2)
		seen[s.frame.Args[0].String()] = s.frame.Args[1].String()
	}
	assert.Len(t, seen, n)
	assert.Equal(t, "100", seen["p0"])
	assert.Equal(t, "4", seen["p4"])
}

func TestJoinReplayUsesOneBatchWhenSupported(t *testing.T) {
	tr := &batchTransport{fakeTransport: newFakeTransport()}
	m := NewModule("synth", tr)

	const n = 1000
	for i := 0; i < n; i++ {
		m.HandleLine(fmt.Sprintf("p%d %d", i, i))
	}
	player := &fakeParticipant{id: "late", identity: Number(7), role: PlayerRole}

	assert.Equal(t, n, m.Join(player))
	assert.Zero(t, tr.sendCount())
	require.Len(t, tr.batches, 1)
	names := make(map[string]struct{}, n)
	for _, f := range tr.batches[0] {
		assert.Equal(t, "/synth", f.Channel)
		names[f.Args[0].String()] = struct{}{}
	}
	assert.Len(t, names, n)
}

func TestJoinReplayBatchFailureCountsNothing(t *testing.T) {
	tr := &batchTransport{fakeTransport: newFakeTransport(), err: errors.New("gone")}
	m := NewModule("synth", tr)
	m.HandleLine("volume 0.8")

	assert.Zero(t, m.Join(&fakeParticipant{id: "p", identity: Number(1), role: PlayerRole}))
}

func TestJoinReplayOfEmptyStoreSendsNothing(t *testing.T) {
	tr := &batchTransport{fakeTransport: newFakeTransport()}
	m := NewModule("synth", tr)

	assert.Zero(t, m.Join(&fakeParticipant{id: "p", identity: Number(1), role: PlayerRole}))
	assert.Empty(t, tr.batches)
}

func TestJoinReplaySendsSequencesAsOneArgument(t *testing.T) {
	tr := newFakeTransport()
	m := NewModule("synth", tr, WithIdentityRouting())
	m.HandleLine("chord -1 60 64 67")

	m.Join(&fakeParticipant{id: "p", identity: Number(1), role: PlayerRole})

	require.Len(t, tr.sends, 1)
	args := tr.sends[0].frame.Args
	require.Len(t, args, 2)
	assert.Equal(t, "chord", args[0].String())
	assert.True(t, args[1].IsSequence())
}

func TestReplayAllBroadcastsEveryParam(t *testing.T) {
	tr := newFakeTransport()
	m := NewModule("synth", tr)
	m.HandleLine("a 1")
	m.HandleLine("b 2")
	tr.broadcasts = nil

	assert.Equal(t, 2, m.ReplayAll())
	assert.Equal(t, 2, tr.broadcastCount())
}
