package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docs() []Document {
	return []Document{
		{ID: "a", Data: map[string]any{"name": "Go", "category": "Tech", "membersCount": float64(3), "createdAt": float64(100)}},
		{ID: "b", Data: map[string]any{"name": "Gardening", "category": "Life", "membersCount": float64(10), "createdAt": float64(300)}},
		{ID: "c", Data: map[string]any{"name": "Rust", "category": "Tech", "membersCount": float64(7), "createdAt": float64(200)}},
		{ID: "d", Data: map[string]any{"name": "Chess", "category": "Games"}},
	}
}

func ids(ds []Document) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func TestApply_NoQueryKeepsCreationOrder(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Apply(docs(), Query{})))
}

func TestApply_EqualityFilter(t *testing.T) {
	got := Apply(docs(), Query{}.Where("category", OpEq, "Tech"))
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestApply_OrderDescExcludesMissingField(t *testing.T) {
	got := Apply(docs(), Query{}.Order("membersCount", Desc))
	assert.Equal(t, []string{"b", "c", "a"}, ids(got))
}

func TestApply_NamePrefixRange(t *testing.T) {
	q := Query{}.Where("name", OpGte, "G").Where("name", OpLte, "G\uf8ff")
	assert.Equal(t, []string{"a", "b"}, ids(Apply(docs(), q)))
}

func TestApply_NumericRangeAcrossIntTypes(t *testing.T) {
	got := Apply(docs(), Query{}.Where("createdAt", OpGt, int64(150)).Order("createdAt", Asc))
	assert.Equal(t, []string{"c", "b"}, ids(got))
}

func TestApply_MismatchedKindsNeverMatch(t *testing.T) {
	got := Apply(docs(), Query{}.Where("membersCount", OpGte, "3"))
	assert.Empty(t, got)
}

func TestApply_Limit(t *testing.T) {
	got := Apply(docs(), Query{}.Order("createdAt", Desc).Take(2))
	assert.Equal(t, []string{"b", "c"}, ids(got))
}

func TestMerge_DottedPaths(t *testing.T) {
	data := map[string]any{"votes": map[string]any{"upvotes": float64(1), "downvotes": float64(2)}}
	require.NoError(t, Merge(data, map[string]any{"votes.upvotes": int64(5), "content": "x"}))
	assert.Equal(t, int64(5), data["votes"].(map[string]any)["upvotes"])
	assert.Equal(t, float64(2), data["votes"].(map[string]any)["downvotes"])
	assert.Equal(t, "x", data["content"])
}

func TestIncrementField(t *testing.T) {
	data := map[string]any{"votes": []any{float64(0), float64(2)}}

	n, err := IncrementField(data, "votes.1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = IncrementField(data, "reactions.thumbsUp", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = IncrementField(data, "votes.0", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "clamped at zero")

	_, err = IncrementField(data, "votes.7", 1)
	assert.ErrorIs(t, err, ErrInvalidPath)

	data["title"] = "text"
	_, err = IncrementField(data, "title", 1)
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestEncodeDecode(t *testing.T) {
	type tally struct {
		Upvotes int64 `json:"upvotes"`
	}
	m, err := Encode(tally{Upvotes: 4})
	require.NoError(t, err)
	assert.Equal(t, float64(4), m["upvotes"])

	var out tally
	require.NoError(t, Decode(Document{ID: "x", Data: m}, &out))
	assert.Equal(t, int64(4), out.Upvotes)
}

func TestClone_IsDeep(t *testing.T) {
	src := map[string]any{"votes": map[string]any{"upvotes": float64(1)}}
	cp := Clone(src)
	cp["votes"].(map[string]any)["upvotes"] = float64(9)
	assert.Equal(t, float64(1), src["votes"].(map[string]any)["upvotes"])
}
