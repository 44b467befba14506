package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(title string, lm time.Time) Record {
	return Record{
		Key:          "1",
		BookID:       1,
		Fields:       map[string]any{FieldTitle: title, FieldAuthor: "Ann", FieldHasCover: false},
		LastModified: lm,
	}
}

func TestResolve_UseLatestModified(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	out, err := ExtensionMapping.Resolve(UseLatestModified, rec("src", older), rec("dst", newer))
	require.NoError(t, err)
	assert.Equal(t, "dst", out.Fields[FieldTitle])
	assert.Equal(t, newer, out.LastModified)

	out, err = ExtensionMapping.Resolve(UseLatestModified, rec("src", newer), rec("dst", older))
	require.NoError(t, err)
	assert.Equal(t, "src", out.Fields[FieldTitle])
	assert.Equal(t, newer, out.LastModified)
}

func TestResolve_TieGoesToSource(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out, err := ExtensionMapping.Resolve(UseLatestModified, rec("src", at), rec("dst", at))
	require.NoError(t, err)
	assert.Equal(t, "src", out.Fields[FieldTitle])
}

func TestResolve_Deterministic(t *testing.T) {
	a := rec("a", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	b := rec("b", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	b.Fields[FieldPublisher] = "Pub"

	for _, policy := range []Policy{KeepSource, KeepTarget, MergeSourcePriority, MergeTargetPriority, UseLatestModified} {
		first, err := ExtensionMapping.Resolve(policy, a, b)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := ExtensionMapping.Resolve(policy, a, b)
			require.NoError(t, err)
			assert.Equal(t, first, again, "policy %s", policy)
		}
	}
}

func TestResolve_MergeFillsMissingFields(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := Record{Key: "1", Fields: map[string]any{FieldTitle: "Only title"}, LastModified: at}
	dst := Record{Key: "1", BookID: 7, Fields: map[string]any{FieldTitle: "Other", FieldPublisher: "Pub"}, LastModified: at}

	out, err := ExtensionMapping.Resolve(MergeSourcePriority, src, dst)
	require.NoError(t, err)
	assert.Equal(t, "Only title", out.Fields[FieldTitle])
	assert.Equal(t, "Pub", out.Fields[FieldPublisher])
	assert.Equal(t, int64(7), out.BookID)

	out, err = ExtensionMapping.Resolve(KeepSource, src, dst)
	require.NoError(t, err)
	_, hasPublisher := out.Fields[FieldPublisher]
	assert.False(t, hasPublisher)
	assert.Equal(t, "Unknown", out.Fields[FieldAuthor])
}

func TestResolve_UnknownPolicy(t *testing.T) {
	_, err := ExtensionMapping.Resolve(Policy("coin_flip"), Record{}, Record{})
	assert.Error(t, err)
}

func TestMapping_Validate(t *testing.T) {
	r := Record{Fields: map[string]any{FieldTitle: 42}}
	assert.Error(t, ExtensionMapping.Validate(&r))

	r = Record{Fields: map[string]any{FieldTitle: "T"}}
	require.NoError(t, ExtensionMapping.Validate(&r))
	assert.Equal(t, false, r.Fields[FieldHasCover])
}

func TestParseDirectionAndPolicy(t *testing.T) {
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Bidirectional, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, UseLatestModified, p)
}
