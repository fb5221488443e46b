package isolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGroups(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    []string
		enabled bool
	}{
		{name: "empty disables", raw: "", want: nil, enabled: false},
		{name: "single", raw: "groupA", want: []string{"groupA"}, enabled: true},
		{name: "several", raw: "groupA,groupB", want: []string{"groupA", "groupB"}, enabled: true},
		{name: "no trimming", raw: "groupA, groupB", want: []string{"groupA", " groupB"}, enabled: true},
		{name: "case kept", raw: "GroupA,groupa", want: []string{"GroupA", "groupa"}, enabled: true},
		{name: "trailing comma", raw: "groupA,", want: []string{"groupA", ""}, enabled: true},
		{name: "duplicates dropped", raw: "groupA,groupB,groupA", want: []string{"groupA", "groupB"}, enabled: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := ParseGroups(tc.raw)
			assert.Equal(t, tc.enabled, g.Enabled())
			assert.Equal(t, tc.want, g.Names())
			for _, n := range tc.want {
				assert.True(t, g.Contains(n))
			}
		})
	}
}

func TestGroups_NamesIsACopy(t *testing.T) {
	g := ParseGroups("a,b")
	names := g.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, g.Names())
}

func TestGroups_Nil(t *testing.T) {
	var g *Groups
	assert.False(t, g.Enabled())
	assert.False(t, g.Contains(""))
	assert.Nil(t, g.Names())
}
