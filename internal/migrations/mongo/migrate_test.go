package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func findDefinition(t *testing.T, name string) CollectionDefinition {
	t.Helper()
	for _, def := range Definitions() {
		if def.Name == name {
			return def
		}
	}
	t.Fatalf("no definition for %s", name)
	return CollectionDefinition{}
}

func TestDefinitions_ReservationsUniquePerMemberAndSession(t *testing.T) {
	def := findDefinition(t, ReservationsCollection)

	var found bool
	for _, idx := range def.Indexes {
		keys, ok := idx.Keys.(bson.D)
		require.True(t, ok)
		if len(keys) == 2 && keys[0].Key == "member_id" && keys[1].Key == "session_id" {
			require.NotNil(t, idx.Options)
			require.NotNil(t, idx.Options.Unique)
			assert.True(t, *idx.Options.Unique)
			found = true
		}
	}
	assert.True(t, found, "missing unique (member_id, session_id) index")
}

func TestDefinitions_LockLeasesExpire(t *testing.T) {
	def := findDefinition(t, SessionLocksCollection)
	require.Len(t, def.Indexes, 1)

	opts := def.Indexes[0].Options
	require.NotNil(t, opts)
	require.NotNil(t, opts.ExpireAfterSeconds)
	assert.Equal(t, int32(0), *opts.ExpireAfterSeconds)
}

func TestDefinitions_EveryCollectionHasValidator(t *testing.T) {
	names := make(map[string]bool)
	for _, def := range Definitions() {
		assert.NotEmpty(t, def.Validator, def.Name)
		assert.NotEmpty(t, def.Indexes, def.Name)
		names[def.Name] = true
	}
	assert.Len(t, names, 4)
}

func TestSessionValidator_RequiresOrderedInterval(t *testing.T) {
	def := findDefinition(t, SessionsCollection)
	expr, ok := def.Validator["$expr"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, expr, "$gt")
}
