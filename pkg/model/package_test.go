package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divvun/pahkat-reposrv/pkg/errors"
	"github.com/divvun/pahkat-reposrv/pkg/model/status"
)

func TestValidate(t *testing.T) {
	valid := PackageDescriptor{
		ID:   "sme-keyboard",
		Name: LangTagMap{"en": "Northern Sami Keyboard"},
	}
	assert.NoError(t, Validate(valid))

	err := Validate(PackageDescriptor{Name: LangTagMap{"en": "x"}})
	assert.True(t, errors.Is(err, status.ErrEmptyID))

	err = Validate(PackageDescriptor{ID: "bad id!", Name: LangTagMap{"en": "x"}})
	assert.True(t, errors.Is(err, status.ErrInvalidID))

	err = Validate(PackageDescriptor{ID: "ok"})
	assert.True(t, errors.Is(err, status.ErrEmptyName))

	err = Validate(PackageDescriptor{
		ID:       "ok",
		Name:     LangTagMap{"en": "x"},
		Releases: []Release{{Targets: []Target{{Platform: "windows"}}}},
	})
	assert.True(t, errors.Is(err, status.ErrEmptyVersion))
}

func TestCopyIsolation(t *testing.T) {
	d := baseDescriptor()
	c := d.Copy()

	c.Name["en"] = "changed"
	c.Tags[0] = "changed"
	c.Releases[0].Targets[0].URL = "changed"

	assert.Equal(t, "Divvun Installer", d.Name["en"])
	assert.Equal(t, "category:utilities", d.Tags[0])
	assert.NotEqual(t, "changed", d.Releases[0].Targets[0].URL)
}

func TestDescriptorTOMLRoundTrip(t *testing.T) {
	d := baseDescriptor()
	d.Releases[0].Targets[0].Dependencies = map[string]string{"https://pahkat.uit.no/tools/packages/windivvun": "*"}
	d.Releases[0].Targets[0].RequiresReboot = []string{RebootOnInstall}
	d.Releases[0].Targets[0].Scopes = []string{"system", "user"}

	data, err := MarshalDescriptor(d)
	require.NoError(t, err)

	got, err := UnmarshalDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestReleaseKeyMatching(t *testing.T) {
	stable := Release{Version: "2.0.0"}
	assert.Equal(t, DefaultChannel, stable.EffectiveChannel())
	assert.True(t, stable.KeyMatches("2.0.0", ""))
	assert.True(t, stable.KeyMatches("2.0.0", "stable"))
	assert.False(t, stable.KeyMatches("2.0.0", "nightly"))
	assert.False(t, stable.KeyMatches("2.0.1", ""))

	nightly := Release{Version: "2.0.0", Channel: "nightly"}
	assert.False(t, nightly.KeyMatches("2.0.0", ""))
	assert.True(t, nightly.KeyMatches("2.0.0", "nightly"))
}
