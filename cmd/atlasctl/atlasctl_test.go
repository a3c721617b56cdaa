package main

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserID(t *testing.T) {
	id := uuid.New()
	got, err := parseUserID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseUserID("42")
	assert.Error(t, err)

	_, err = parseUserID(uuid.Nil.String())
	assert.Error(t, err)
}

func TestNormalizeNickname(t *testing.T) {
	got, err := normalizeNickname("  小王  ")
	require.NoError(t, err)
	assert.Equal(t, "小王", got)

	_, err = normalizeNickname("   ")
	assert.Error(t, err)

	_, err = normalizeNickname(strings.Repeat("游", maxNicknameLength+1))
	assert.Error(t, err)

	_, err = normalizeNickname(strings.Repeat("游", maxNicknameLength))
	assert.NoError(t, err)
}

func TestRootRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"token", "user", "reconcile-forks", "migrate"} {
		assert.True(t, names[want], want)
	}
}
