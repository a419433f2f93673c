package character

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

func names(list []Character) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Name
	}
	return out
}

func TestMerge_Empty(t *testing.T) {
	got := Merge(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMerge_SingleEntry(t *testing.T) {
	luke := Character{Name: "Luke Skywalker", EyeColor: "blue", Gender: "male", Created: "2023-01-01T12:00:00Z"}

	got := Merge([]Character{luke})
	if diff := cmp.Diff([]Character{luke}, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Dedupe(t *testing.T) {
	input := []Character{
		{Name: "Luke Skywalker", EyeColor: "blue", Gender: "male"},
		{Name: "Darth Vader", EyeColor: "yellow", Created: "2014-12-10T15:18:20.704000Z"},
		{Name: "Luke Skywalker", EyeColor: "BLUE", Gender: "first-wins?"},
		{Name: "Darth Vader", EyeColor: "yellow", Created: "2001-01-01T00:00:00Z"},
		{Name: "Luke Skywalker", EyeColor: "green"},
	}

	got := Merge(input)
	require.Len(t, got, 3)

	for _, c := range got {
		if c.Name == "Luke Skywalker" && c.IsBlueEyed() {
			assert.Equal(t, "male", c.Gender, "first occurrence must win")
		}
		if c.Name == "Darth Vader" {
			assert.Equal(t, "2014-12-10T15:18:20.704000Z", c.Created, "first occurrence must win")
		}
	}
}

func TestMerge_BlueEyedFirstSortedByName(t *testing.T) {
	input := []Character{
		{Name: "Owen Lars", EyeColor: "blue", Created: "2014-12-10T15:52:14.024000Z"},
		{Name: "C-3PO", EyeColor: "yellow", Created: "2014-12-10T15:10:51.357000Z"},
		{Name: "Anakin Skywalker", EyeColor: "Blue", Created: "2014-12-10T16:20:44.310000Z"},
		{Name: "Luke Skywalker", EyeColor: "blue", Created: "2014-12-09T13:50:51.644000Z"},
		{Name: "Leia Organa", EyeColor: "brown", Created: "2014-12-10T15:20:09.791000Z"},
	}

	got := names(Merge(input))
	want := []string{"Anakin Skywalker", "Luke Skywalker", "Owen Lars", "C-3PO", "Leia Organa"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_NameOrderIsLocaleAware(t *testing.T) {
	input := []Character{
		{Name: "Zam Wesell", EyeColor: "blue"},
		{Name: "Émile", EyeColor: "blue"},
		{Name: "Adi Gallia", EyeColor: "blue"},
		{Name: "Finn", EyeColor: "blue"},
	}

	got := names(Merge(input))
	assert.Equal(t, []string{"Adi Gallia", "Émile", "Finn", "Zam Wesell"}, got)
}

func TestMerge_InvalidCreatedSortsEarliest(t *testing.T) {
	input := []Character{
		{Name: "late", EyeColor: "red", Created: "2020-01-01T00:00:00Z"},
		{Name: "missing", EyeColor: "red"},
		{Name: "early", EyeColor: "red", Created: "1999-01-01T00:00:00Z"},
		{Name: "garbage", EyeColor: "red", Created: "not a date"},
	}

	got := names(Merge(input))
	assert.Equal(t, []string{"missing", "garbage", "early", "late"}, got)
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	input := []Character{
		{Name: "b", EyeColor: "blue"},
		{Name: "a", EyeColor: "blue"},
		{Name: "a", EyeColor: "blue"},
	}
	before := append([]Character(nil), input...)

	_ = Merge(input)
	if diff := cmp.Diff(before, input); diff != "" {
		t.Errorf("input modified (-before +after):\n%s", diff)
	}
}

// fixture builds a list with duplicates, mixed eye colours and a few
// unparsable timestamps.
func fixture(n int) []Character {
	colors := []string{"blue", "Brown", "BLUE", "yellow", "red", "blue"}
	out := make([]Character, 0, n)
	for i := 0; i < n; i++ {
		created := fmt.Sprintf("20%02d-0%d-1%dT10:00:00Z", (i*7)%30, 1+i%9, i%10)
		if i%11 == 0 {
			created = ""
		}
		out = append(out, Character{
			Name:     fmt.Sprintf("Person %d", (i*13)%(n/2+1)),
			EyeColor: colors[i%len(colors)],
			Created:  created,
		})
	}
	return out
}

func TestMerge_Properties(t *testing.T) {
	input := fixture(120)
	got := Merge(input)

	t.Run("idempotent", func(t *testing.T) {
		if diff := cmp.Diff(got, Merge(input)); diff != "" {
			t.Errorf("second run differs:\n%s", diff)
		}
		if diff := cmp.Diff(got, Merge(got)); diff != "" {
			t.Errorf("merging the display list changed it:\n%s", diff)
		}
	})

	t.Run("unique keys", func(t *testing.T) {
		seen := map[string]bool{}
		for _, c := range got {
			require.False(t, seen[c.Key()], "duplicate key %q", c.Key())
			seen[c.Key()] = true
		}
		for _, c := range input {
			assert.True(t, seen[c.Key()], "key %q dropped", c.Key())
		}
	})

	t.Run("ordering", func(t *testing.T) {
		col := collate.New(language.English)
		inOther := false
		var prev Character
		for i, c := range got {
			if !c.IsBlueEyed() {
				if inOther {
					assert.LessOrEqual(t, compareCreated(prev, c), 0, "created not ascending at %d", i)
				}
				inOther = true
			} else {
				require.False(t, inOther, "blue-eyed %q after non-blue entries", c.Name)
				if i > 0 {
					assert.LessOrEqual(t, col.CompareString(prev.Name, c.Name), 0, "names not ascending at %d", i)
				}
			}
			prev = c
		}
	})
}
