// ABOUTME: Tests for persona parsing, role tags and the selector
// ABOUTME: Unknown names must leave the selection unchanged

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersona_RoleTag(t *testing.T) {
	want := map[Persona]string{
		PersonaAssistant:   "assistant",
		PersonaFriend:      "friend",
		PersonaPhilosopher: "philosopher",
		PersonaPoet:        "poet",
	}
	for _, p := range Personas() {
		assert.Equal(t, want[p], p.RoleTag())
	}
}

func TestSelector_DefaultsToAssistant(t *testing.T) {
	var s Selector
	assert.Equal(t, PersonaAssistant, s.Current())
	assert.Equal(t, "assistant", s.Current().RoleTag())
}

func TestSelector_Select(t *testing.T) {
	var s Selector

	p, err := s.Select("Poet")
	require.NoError(t, err)
	assert.Equal(t, PersonaPoet, p)
	assert.Equal(t, "poet", s.Current().RoleTag())

	p, err = s.Select("  philosopher ")
	require.NoError(t, err)
	assert.Equal(t, PersonaPhilosopher, p, "match is case-insensitive and canonicalized")
}

func TestSelector_UnknownLeavesSelection(t *testing.T) {
	var s Selector
	_, err := s.Select("Friend")
	require.NoError(t, err)

	p, err := s.Select("Pirate")
	assert.ErrorIs(t, err, ErrUnknownPersona)
	assert.Equal(t, PersonaFriend, p)
	assert.Equal(t, PersonaFriend, s.Current())
}
