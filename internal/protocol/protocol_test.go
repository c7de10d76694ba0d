package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandIDFormat(t *testing.T) {
	id := NewCommandID()
	parts := strings.Split(id, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "cmd", parts[0])
	assert.GreaterOrEqual(t, len(parts[1]), 13) // ms since epoch
	assert.Len(t, parts[2], 4)
}

func TestCommandIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewCommandID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestElementIDFormats(t *testing.T) {
	assert.Equal(t, "a_0", ElementID(0))
	assert.Equal(t, "a_z", ElementID(35))
	assert.Equal(t, "a_10", ElementID(36))
	assert.Equal(t, "e_submit-btn", DOMElementID("submit-btn"))
}

func TestRectCenter(t *testing.T) {
	tests := []struct {
		rect Rect
		want Hit
	}{
		{Rect{X: 10, Y: 10, W: 100, H: 30}, Hit{CX: 60, CY: 25}},
		{Rect{X: 0, Y: 0, W: 5, H: 5}, Hit{CX: 3, CY: 3}},
		{Rect{X: 7, Y: 3, W: 1, H: 1}, Hit{CX: 8, CY: 4}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rect.Center(), "rect %+v", tt.rect)
	}
}

func TestNormalize(t *testing.T) {
	n := Normalize(Rect{X: 256, Y: 192, W: 512, H: 384}, 1024, 768)
	assert.InDelta(t, 0.25, n.X, 1e-9)
	assert.InDelta(t, 0.25, n.Y, 1e-9)
	assert.InDelta(t, 0.5, n.W, 1e-9)
	assert.InDelta(t, 0.5, n.H, 1e-9)

	assert.Equal(t, RectN{}, Normalize(Rect{X: 1, Y: 1, W: 1, H: 1}, 0, 0))
}

func TestCodecRoundTrip(t *testing.T) {
	snap := Snapshot{
		Type:     TypeSnapshot,
		TabID:    1,
		URL:      "https://example.com/",
		Viewport: Viewport{Width: 1024, Height: 768},
		Candidates: []ActionCandidate{{
			ID:   "a_0",
			Role: "button",
			Name: "Sign in",
			Rect: Rect{X: 10, Y: 10, W: 100, H: 30},
			Hit:  Hit{CX: 60, CY: 25},
		}},
	}

	data, err := Marshal(snap)
	require.NoError(t, err)

	env, err := Peek(data)
	require.NoError(t, err)
	assert.Equal(t, TypeSnapshot, env.Type)
	assert.Equal(t, 1, env.TabID)

	var decoded Snapshot
	require.NoError(t, Unmarshal(data, &decoded))
	assert.Equal(t, snap, decoded)
}

func TestPeekRejectsMalformed(t *testing.T) {
	_, err := Peek([]byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = Peek([]byte(`{"tabId": 3}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestCandidateUpdateApply(t *testing.T) {
	c := ActionCandidate{
		ID:    "a_1",
		Name:  "Old",
		Rect:  Rect{X: 1, Y: 1, W: 10, H: 10},
		State: State{Disabled: false},
	}

	name := "New"
	rect := Rect{X: 5, Y: 5, W: 20, H: 20}
	occluded := true
	u := CandidateUpdate{
		ID:       "a_1",
		Name:     &name,
		Rect:     &rect,
		State:    &State{Disabled: true},
		Occluded: &occluded,
	}
	u.Apply(&c)

	assert.Equal(t, "New", c.Name)
	assert.Equal(t, rect, c.Rect)
	assert.True(t, c.State.Disabled)
	assert.True(t, c.Occluded)
}

func TestPolicyDeniedError(t *testing.T) {
	err := Denied("Domain not allowed: %s", "https://a/")
	reason, ok := IsPolicyDenied(err)
	require.True(t, ok)
	assert.Equal(t, "Domain not allowed: https://a/", reason)

	_, ok = IsPolicyDenied(ErrTimeout)
	assert.False(t, ok)
}
