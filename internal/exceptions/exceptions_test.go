package exceptions_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pact/internal/exceptions"
	"pact/internal/pv"
	"pact/internal/testsupport"
)

const document = `
devices:
  - id: p-0042
    exclude: true
    reason: cracked glass
  - id: P-0107
    force_t80: true
    t80_date: 2021-06-30
  - id: P-0200
    force_t80: true
`

func TestParse(t *testing.T) {
	list, err := exceptions.Parse(strings.NewReader(document))
	require.NoError(t, err)
	assert.Equal(t, 3, list.Len())

	assert.True(t, list.Excluded("P-0042"))
	assert.False(t, list.Excluded("P-0107"))

	date, ok := list.ForceT80("p-0107")
	require.True(t, ok)
	require.NotNil(t, date)
	assert.Equal(t, pv.NewDate(2021, 6, 30), *date)

	date, ok = list.ForceT80("P-0200")
	assert.True(t, ok)
	assert.Nil(t, date)

	_, ok = list.ForceT80("P-0042")
	assert.False(t, ok)

	entries := list.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "P-0042", entries[0].DeviceID)
	assert.Equal(t, "cracked glass", entries[0].Reason)
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing id":    "devices:\n  - exclude: true\n",
		"bad date":      "devices:\n  - id: P-1\n    t80_date: someday\n",
		"unknown field": "devices:\n  - id: P-1\n    exlude: true\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := exceptions.Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	list, err := exceptions.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Zero(t, list.Len())

	path := filepath.Join(dir, "exceptions.yaml")
	testsupport.WriteFile(t, path, document)
	list, err = exceptions.Load(path)
	require.NoError(t, err)
	assert.True(t, list.Excluded("P-0042"))

	empty := filepath.Join(dir, "empty.yaml")
	testsupport.WriteFile(t, empty, "")
	list, err = exceptions.Load(empty)
	require.NoError(t, err)
	assert.Zero(t, list.Len())
}

func TestNilListHasNoOverrides(t *testing.T) {
	var list *exceptions.List
	assert.False(t, list.Excluded("P-1"))
	_, ok := list.ForceT80("P-1")
	assert.False(t, ok)
	assert.Nil(t, list.Entries())
}

func TestNewDateImpliesForce(t *testing.T) {
	d := pv.NewDate(2022, 1, 5)
	list := exceptions.New(exceptions.Entry{DeviceID: "p-9", T80Date: &d})
	got, ok := list.ForceT80("P-9")
	require.True(t, ok)
	assert.Equal(t, d, *got)
}
