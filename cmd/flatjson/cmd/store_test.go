package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, []byte(`{ "name": "orc", "hp": 10 }`), "log", "append")
	require.NoError(t, err)
	assert.Contains(t, out, "Appended Monster at offset 0")

	_, err = env.run(t, []byte(`{ "damage": 7 }`), "log", "append", "-t", "Weapon")
	require.NoError(t, err)
	_, err = env.run(t, []byte(`{ "name": "elf" }`), "log", "append")
	require.NoError(t, err)

	out, err = env.run(t, nil, "log", "cat")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "# offset=0 type=Monster time="), lines[0])
	assert.Equal(t, `{ "name": "orc", "hp": 10 }`, lines[1])
	assert.Equal(t, `{ "damage": 7 }`, lines[3])
	assert.Equal(t, `{ "name": "elf" }`, lines[5])

	out, err = env.run(t, nil, "log", "cat", "-t", "Weapon")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, `{ "damage": 7 }`)

	out, err = env.run(t, nil, "log", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records: 3")
	assert.Contains(t, out, "  Monster: 2\n  Weapon: 1\n")
}

func TestLogAppend_EncodeError(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, []byte(`{ "hp": "many" }`), "log", "append")
	assert.ErrorContains(t, err, "type mismatch")

	out, err := env.run(t, nil, "log", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records: 0")
}

func TestArchiveCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, []byte(`{ "name": "troll", "inventory": [9] }`), "archive", "put")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.Len(t, id, 27)

	out, err = env.run(t, nil, "archive", "get", id)
	require.NoError(t, err)
	assert.Equal(t, "{ \"name\": \"troll\", \"inventory\": [ 9 ] }\n", out)

	out, err = env.run(t, nil, "archive", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Monster")

	out, err = env.run(t, nil, "archive", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)

	_, err = env.run(t, nil, "archive", "get", id)
	assert.ErrorContains(t, err, "not found")

	_, err = env.run(t, nil, "archive", "get", "nope")
	assert.ErrorContains(t, err, "invalid message id")
}
