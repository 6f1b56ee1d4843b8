package command

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"nuhub/cmd/cli/authentication"
	"nuhub/internal/router"
	"nuhub/internal/session"
)

type scriptedReader struct {
	envs []session.Envelope
	err  error
}

func (s *scriptedReader) Read() (session.Envelope, error) {
	if len(s.envs) == 0 {
		return session.Envelope{}, s.err
	}
	env := s.envs[0]
	s.envs = s.envs[1:]
	return env, nil
}

func TestFormatFrame(t *testing.T) {
	args := []router.Value{
		router.Scalar(router.String("color")),
		router.Sequence(router.Number(-1), router.String("red")),
	}
	assert.Equal(t, "/lights color [-1 red]", FormatFrame("/lights", args))
	assert.Equal(t, "/synth", FormatFrame("/synth", nil))
}

func TestParsePlayerID(t *testing.T) {
	assert.True(t, ParsePlayerID("3").Equal(router.Number(3)))
	assert.True(t, ParsePlayerID("stage-left").Equal(router.String("stage-left")))
	assert.True(t, ParsePlayerID("-1").IsSentinel())
	assert.False(t, ParsePlayerID("NaN").IsNumber())
	assert.True(t, ParsePlayerID("two words").Equal(router.String("two words")))
}

func TestPrintFrames(t *testing.T) {
	r := &scriptedReader{
		envs: []session.Envelope{
			session.FrameEnvelope(router.Frame{Channel: "/synth", Args: []router.Value{
				router.Scalar(router.String("volume")),
				router.Scalar(router.Number(0.8)),
			}}),
			{Type: session.TypePong},
			session.ErrorEnvelope("slow down"),
		},
		err: io.EOF,
	}
	var out bytes.Buffer
	require.NoError(t, printFrames(&out, r))
	assert.Equal(t, "/synth volume 0.8\nerror: slow down\n", out.String())
}

func TestPrintFramesReportsBrokenConnection(t *testing.T) {
	r := &scriptedReader{err: errors.New("reset by peer")}
	err := printFrames(io.Discard, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset by peer")
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"send", "listen", "token"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestTokenCommandRejectsReservedID(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"token", "--secret", "test-secret-key-for-cli-tokens-0000", "--player-id=-1"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		tokenPlayerID = ""
		tokenSecret = ""
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestTokenCommandSaveAndForget(t *testing.T) {
	keyring.MockInit()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		tokenPlayerID = ""
		tokenSecret = ""
		tokenSave = false
		tokenForget = false
	})

	rootCmd.SetArgs([]string{"token", "--secret", "test-secret-key-for-cli-tokens-0000", "--player-id", "4", "--save"})
	require.NoError(t, rootCmd.Execute())
	creds, err := authentication.LoadCredentials(time.Now())
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(out.String()), creds.Token)
	assert.Equal(t, "4", creds.PlayerID)

	tokenSave = false
	rootCmd.SetArgs([]string{"token", "--forget"})
	require.NoError(t, rootCmd.Execute())
	_, err = authentication.LoadCredentials(time.Now())
	assert.ErrorIs(t, err, authentication.ErrNoCredentials)
}
