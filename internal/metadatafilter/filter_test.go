package metadatafilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter_ScenarioFromSpec(t *testing.T) {
	raw := []byte(`{"$and":[{"category":"technology"},{"$or":[{"views":{"$gte":1000}},{"published":true}]}]}`)
	f, err := ParseFilter(raw)
	require.NoError(t, err)

	assert.True(t, f.Matches(map[string]interface{}{
		"category": "technology", "views": float64(500), "published": true,
	}))
	assert.False(t, f.Matches(map[string]interface{}{
		"category": "sports", "views": float64(5000), "published": true,
	}))
}

func TestAnd_Empty_IsVacuousTrue(t *testing.T) {
	f := And()
	assert.True(t, f.Matches(map[string]interface{}{}))
}

func TestOr_Empty_MatchesNothing(t *testing.T) {
	f := Or()
	assert.False(t, f.Matches(map[string]interface{}{}))
}

func TestEquals_ArrayField_MemberMatch(t *testing.T) {
	f := Equals("tags", "go")
	assert.True(t, f.Matches(map[string]interface{}{"tags": []interface{}{"go", "rust"}}))
	assert.False(t, f.Matches(map[string]interface{}{"tags": []interface{}{"rust"}}))
}

func TestDottedPath(t *testing.T) {
	f := Equals("user.id", "123")
	assert.True(t, f.Matches(map[string]interface{}{"user": map[string]interface{}{"id": "123"}}))
	assert.False(t, f.Matches(map[string]interface{}{"user": map[string]interface{}{"id": "456"}}))
	assert.False(t, f.Matches(map[string]interface{}{"user": "not-an-object"}))
	assert.False(t, f.Matches(map[string]interface{}{}))
}

func TestParseFilter_UnknownTopLevelOperator(t *testing.T) {
	_, err := ParseFilter([]byte(`{"$unknown": []}`))
	require.Error(t, err)
}

func TestParseFilter_UnknownFieldOperator(t *testing.T) {
	_, err := ParseFilter([]byte(`{"age": {"$ne": 5}}`))
	require.Error(t, err)
}

func TestParseFilter_CombiningGteAndGt(t *testing.T) {
	_, err := ParseFilter([]byte(`{"age": {"$gte": 1, "$gt": 2}}`))
	require.Error(t, err)
}

func TestParseFilter_EmptyFieldObject(t *testing.T) {
	_, err := ParseFilter([]byte(`{"age": {}}`))
	require.Error(t, err)
}

func TestParseFilter_ImplicitAnd(t *testing.T) {
	f, err := ParseFilter([]byte(`{"category":"tech","published":true}`))
	require.NoError(t, err)
	assert.Equal(t, KindAnd, f.Kind)
	assert.True(t, f.Matches(map[string]interface{}{"category": "tech", "published": true}))
}

func TestParseFilter_RangeInclusivity(t *testing.T) {
	f, err := ParseFilter([]byte(`{"age": {"$gte": 18, "$lt": 65}}`))
	require.NoError(t, err)
	assert.True(t, f.Matches(map[string]interface{}{"age": float64(18)}))
	assert.False(t, f.Matches(map[string]interface{}{"age": float64(65)}))
	assert.True(t, f.Matches(map[string]interface{}{"age": float64(64)}))
}
