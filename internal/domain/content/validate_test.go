package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func validItem(t *testing.T) *Item {
	t.Helper()
	rep := 80.0
	item := &Item{
		ID:              ItemID("newswire", "a1"),
		Domain:          DomainNews,
		Title:           "Central bank holds rates steady",
		Description:     "The bank left its benchmark rate unchanged for a third meeting.",
		Topics:          datatypes.NewJSONSlice([]string{"economy", "finance"}),
		Source:          "newswire",
		SourceItemID:    "a1",
		SourceURL:       "https://newswire.example.com/a1",
		ReputationScore: &rep,
		Actions:         datatypes.NewJSONSlice([]Action{ActionSave}),
	}
	require.NoError(t, item.SetMetadata(&NewsMetadata{Publisher: "Newswire", CredibilityTier: "established"}))
	return item
}

func TestValidateAcceptsCompleteItem(t *testing.T) {
	assert.NoError(t, Validate(validItem(t)))
}

func TestValidateFieldFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Item)
		field  string
	}{
		{"missing title", func(i *Item) { i.Title = " " }, "title"},
		{"missing topics", func(i *Item) { i.Topics = nil }, "topics"},
		{"blank topic", func(i *Item) { i.Topics = datatypes.NewJSONSlice([]string{""}) }, "topics[0]"},
		{"bad domain", func(i *Item) { i.Domain = Domain("games") }, "domain"},
		{"unprefixed id", func(i *Item) { i.ID = "a1" }, "id"},
		{"reputation out of range", func(i *Item) { v := 140.0; i.ReputationScore = &v }, "reputation_score"},
		{"unknown action", func(i *Item) { i.Actions = datatypes.NewJSONSlice([]Action{"share"}) }, "actions[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem(t)
			tt.mutate(item)
			err := Validate(item)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSetMetadataRejectsDomainMismatch(t *testing.T) {
	item := validItem(t)
	err := item.SetMetadata(&MusicMetadata{Artist: "Quartet"})
	require.Error(t, err)
}

func TestValidateRejectsMismatchedMetadataPayload(t *testing.T) {
	item := validItem(t)
	raw, err := EncodeMetadata(&EventsMetadata{Venue: "Hall"})
	require.NoError(t, err)
	item.Metadata = raw
	verr := Validate(item)
	require.Error(t, verr)
}

func TestMetadataRoundTrip(t *testing.T) {
	raw, err := EncodeMetadata(&RecipeMetadata{
		Cuisine:     "thai",
		PrepMinutes: 25,
		Nutrition:   map[string]float64{"calories": 430},
	})
	require.NoError(t, err)

	md, err := DecodeMetadata(raw)
	require.NoError(t, err)
	recipe, ok := md.(*RecipeMetadata)
	require.True(t, ok)
	assert.Equal(t, "thai", recipe.Cuisine)
	assert.Equal(t, 25, recipe.PrepMinutes)
	assert.Equal(t, DomainRecipes, md.MetadataDomain())
}

func TestMetadataFieldCountIgnoresDomainTag(t *testing.T) {
	raw, err := EncodeMetadata(&NewsMetadata{Publisher: "Newswire", Author: "R. Ames", CredibilityTier: "established"})
	require.NoError(t, err)
	assert.Equal(t, 3, MetadataFieldCount(raw))
}

func TestVectorRoundTrip(t *testing.T) {
	v := Vector{0.25, -1, 3.5}
	val, err := v.Value()
	require.NoError(t, err)

	var out Vector
	require.NoError(t, out.Scan(val))
	assert.Equal(t, v, out)

	var null Vector
	require.NoError(t, null.Scan(nil))
	assert.Nil(t, null)
}
