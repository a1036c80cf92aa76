package presence_test

import (
	"testing"

	"github.com/kevinxiao27/docweave/pkg/presence"
	"github.com/stretchr/testify/assert"
)

func TestValueEqualByCanonicalJSON(t *testing.T) {
	a := presence.NewObject(map[string]presence.Value{
		"x": presence.NewInt(1),
		"y": presence.NewString("hi"),
	})
	b := presence.NewObject(map[string]presence.Value{
		"y": presence.NewString("hi"),
		"x": presence.NewInt(1),
	})
	assert.True(t, a.Equal(b))
}

func TestSetMergesRatherThanReplaces(t *testing.T) {
	d := presence.New()
	d.Set("name", presence.NewString("ana"))
	d.Set("cursor", presence.NewInt(5))

	d.Set("cursor", presence.NewInt(9))

	name, ok := d.Get("name")
	assert.True(t, ok)
	assert.True(t, name.Equal(presence.NewString("ana")))

	cursor, ok := d.Get("cursor")
	assert.True(t, ok)
	assert.True(t, cursor.Equal(presence.NewInt(9)))
}

func TestClearRemovesKeyExplicitly(t *testing.T) {
	d := presence.New()
	d.Set("name", presence.NewString("ana"))
	d.Clear("name")

	_, ok := d.Get("name")
	assert.False(t, ok)
}

func TestMergeAppliesOtherOnTopWithoutDroppingUntouchedKeys(t *testing.T) {
	local := presence.New()
	local.Set("name", presence.NewString("ana"))
	local.Set("cursor", presence.NewInt(1))

	remote := presence.New()
	remote.Set("cursor", presence.NewInt(2))

	local.Merge(remote)

	name, _ := local.Get("name")
	assert.True(t, name.Equal(presence.NewString("ana")))
	cursor, _ := local.Get("cursor")
	assert.True(t, cursor.Equal(presence.NewInt(2)))
}
