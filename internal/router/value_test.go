package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Token
	}{
		{"empty line", "", []Token{}},
		{"blank line", "   \t ", []Token{}},
		{"number argument", "volume 0.8", []Token{String("volume"), Number(0.8)}},
		{"negative identity", "color -1 red", []Token{String("color"), Number(-1), String("red")}},
		{"exponent", "gain 1e3", []Token{String("gain"), Number(1000)}},
		{"malformed number stays string", "x 1.2.3 12abc", []Token{String("x"), String("1.2.3"), String("12abc")}},
		{"nan and inf stay strings", "x NaN Inf -Infinity", []Token{String("x"), String("NaN"), String("Inf"), String("-Infinity")}},
		{"collapses runs of whitespace", "a  b\tc", []Token{String("a"), String("b"), String("c")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.line)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.True(t, tt.want[i].Equal(got[i]), "token %d: want %v got %v", i, tt.want[i], got[i])
			}
		})
	}
}

func TestDecodeIsDeterministic(t *testing.T) {
	lines := []string{"", "volume 0.8", "color 3 red green", "a 0x1p-2 -0 +5 .5", "weird 1e400"}
	for _, line := range lines {
		first := Decode(line)
		second := Decode(line)
		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.True(t, first[i].Equal(second[i]), "line %q token %d", line, i)
		}
	}
}

func TestCollapse(t *testing.T) {
	empty := Collapse(nil)
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.IsSequence())

	one := Collapse([]Token{Number(0.8)})
	tok, ok := one.Scalar()
	require.True(t, ok)
	assert.True(t, tok.Equal(Number(0.8)))

	two := Collapse([]Token{String("red"), String("green")})
	assert.True(t, two.IsSequence())
	assert.Len(t, two.Tokens(), 2)
	_, ok = two.Scalar()
	assert.False(t, ok)
}

func TestValueJSON(t *testing.T) {
	frame := Frame{
		Channel: "/synth",
		Args: []Value{
			Scalar(String("color")),
			Sequence(String("red"), Number(2)),
			Collapse(nil),
		},
	}
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"/synth","args":["color",["red",2],null]}`, string(data))

	var decoded Frame
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Args, 3)
	for i := range frame.Args {
		assert.True(t, frame.Args[i].Equal(decoded.Args[i]), "arg %d", i)
	}
}

func TestValueRejectsNestedSequence(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`[1,[2]]`), &v)
	assert.ErrorIs(t, err, errNestedSequence)
}

func TestTokenText(t *testing.T) {
	assert.Equal(t, "3", Number(3).Text())
	assert.Equal(t, "-1", Sentinel.Text())
	assert.Equal(t, "0.25", Number(0.25).Text())
	assert.True(t, Number(-1).IsSentinel())
	assert.False(t, String("-1").IsSentinel())
}
