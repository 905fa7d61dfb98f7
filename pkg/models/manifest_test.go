package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSdk(version string, dir SdkDirName) InstalledSdk {
	v := MustParseVersion(version)
	rt := MustParseVersion("42.42.42")
	return InstalledSdk{
		ReleaseVersion: rt,
		SdkVersion:     v,
		RuntimeVersion: rt,
		AspNetVersion:  rt,
		SdkDirName:     dir,
	}
}

func TestTrackChannelRejectsActiveDuplicate(t *testing.T) {
	t.Parallel()

	m, err := EmptyManifest().TrackChannel(RegisteredChannel{ChannelName: Lts, SdkDirName: DefaultSdkDirName})
	require.NoError(t, err)

	_, err = m.TrackChannel(RegisteredChannel{ChannelName: Lts, SdkDirName: DefaultSdkDirName})
	require.ErrorIs(t, err, ErrChannelAlreadyTracked)

	// 不同目录视为不同注册
	_, err = m.TrackChannel(RegisteredChannel{ChannelName: Lts, SdkDirName: "preview"})
	require.NoError(t, err)
}

func TestUntrackThenRetrackUnionsVersions(t *testing.T) {
	t.Parallel()

	sdk := testSdk("42.42.100", DefaultSdkDirName)
	m, err := EmptyManifest().TrackChannel(RegisteredChannel{ChannelName: Lts, SdkDirName: DefaultSdkDirName})
	require.NoError(t, err)
	m = m.AddSdk(sdk, &Lts)

	m, err = m.UntrackChannel(Lts)
	require.NoError(t, err)
	reg, ok := m.FindChannel(Lts, DefaultSdkDirName)
	require.True(t, ok)
	assert.True(t, reg.Untracked)
	assert.Len(t, m.InstalledSdks, 1, "untrack must not remove sdks")

	newer := testSdk("42.42.101", DefaultSdkDirName)
	m = m.AddSdk(newer, nil)
	m, err = m.TrackChannel(RegisteredChannel{
		ChannelName:          Lts,
		SdkDirName:           DefaultSdkDirName,
		InstalledSdkVersions: []*Version{newer.SdkVersion},
	})
	require.NoError(t, err)

	reg, _ = m.FindChannel(Lts, DefaultSdkDirName)
	assert.False(t, reg.Untracked)
	require.Len(t, reg.InstalledSdkVersions, 2)
	assert.True(t, reg.Has(sdk.SdkVersion))
	assert.True(t, reg.Has(newer.SdkVersion))
	assert.Len(t, m.RegisteredChannels, 1)
	require.NoError(t, m.Validate())
}

func TestUntrackUnknownChannel(t *testing.T) {
	t.Parallel()

	_, err := EmptyManifest().UntrackChannel(Sts)
	require.ErrorIs(t, err, ErrChannelNotTracked)
}

func TestMutationHelpersDoNotAlias(t *testing.T) {
	t.Parallel()

	base := EmptyManifest().AddSdk(testSdk("42.42.100", DefaultSdkDirName), &Latest)
	next := base.AddSdk(testSdk("42.42.101", DefaultSdkDirName), &Latest)

	assert.Len(t, base.InstalledSdks, 1)
	reg, _ := base.FindChannel(Latest, DefaultSdkDirName)
	assert.Len(t, reg.InstalledSdkVersions, 1)

	assert.Len(t, next.InstalledSdks, 2)
	reg, _ = next.FindChannel(Latest, DefaultSdkDirName)
	assert.Len(t, reg.InstalledSdkVersions, 2)
}

func TestAddSdkIsIdempotentPerDirectory(t *testing.T) {
	t.Parallel()

	sdk := testSdk("42.42.100", DefaultSdkDirName)
	m := EmptyManifest().AddSdk(sdk, &Lts).AddSdk(sdk, &Latest)

	assert.Len(t, m.InstalledSdks, 1)
	assert.Len(t, m.RegisteredChannels, 2)
	for _, reg := range m.RegisteredChannels {
		assert.Equal(t, []string{"42.42.100"}, versionStrings(reg.InstalledSdkVersions))
	}

	other := m.AddSdk(testSdk("42.42.100", "preview"), nil)
	assert.Len(t, other.InstalledSdks, 2)
	assert.Equal(t, []SdkDirName{"dn", "preview"}, other.SdkDirs())
}

func TestRemoveSdkDropsChannelReferences(t *testing.T) {
	t.Parallel()

	a := testSdk("42.42.100", DefaultSdkDirName)
	b := testSdk("42.42.101", DefaultSdkDirName)
	m := EmptyManifest().AddSdk(a, &Lts).AddSdk(b, &Lts)

	m = m.RemoveSdk(a.SdkVersion, DefaultSdkDirName)
	require.NoError(t, m.Validate())
	assert.Len(t, m.InstalledSdks, 1)
	reg, _ := m.FindChannel(Lts, DefaultSdkDirName)
	assert.Equal(t, []string{"42.42.101"}, versionStrings(reg.InstalledSdkVersions))
	assert.Equal(t, "42.42.101", reg.Newest().String())
}

func TestValidateDetectsDanglingChannelVersion(t *testing.T) {
	t.Parallel()

	m := EmptyManifest()
	m.RegisteredChannels = append(m.RegisteredChannels, RegisteredChannel{
		ChannelName:          Lts,
		SdkDirName:           DefaultSdkDirName,
		InstalledSdkVersions: []*Version{MustParseVersion("1.0.100")},
	})
	require.Error(t, m.Validate())
}

func TestNewSdkDirName(t *testing.T) {
	t.Parallel()

	dir, err := NewSdkDirName(" Preview ")
	require.NoError(t, err)
	assert.Equal(t, SdkDirName("preview"), dir)

	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		_, err := NewSdkDirName(bad)
		assert.Error(t, err, bad)
	}
}

func versionStrings(list []*Version) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, v.String())
	}
	return out
}
