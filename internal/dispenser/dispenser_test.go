package dispenser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/edgedb"
)

func TestPinLatest_ReturnsCurrentVersion(t *testing.T) {
	v0 := edgedb.New(nil)
	d := New(v0)

	version, edges := d.PinLatest()
	assert.Equal(t, uint64(1), version)
	assert.Same(t, v0, edges)
	d.Release(version)
}

func TestPublish_NewReadersSeeTheNewVersion(t *testing.T) {
	v0 := edgedb.New(nil)
	d := New(v0)

	v1 := edgedb.New(nil)
	newVersion := d.Publish(v1)

	version, edges := d.PinLatest()
	assert.Equal(t, newVersion, version)
	assert.Same(t, v1, edges)
	d.Release(version)
}

// TestPinnedReaderSurvivesLaterPublish is the core RCU safety property:
// a reader pinned at version v keeps observing v's edges regardless of
// how many times Publish is called afterward, and only releases v's
// memory once it calls Release.
func TestPinnedReaderSurvivesLaterPublish(t *testing.T) {
	v0 := edgedb.New(nil)
	d := New(v0)

	oldVersion, oldEdges := d.PinLatest()
	require.Same(t, v0, oldEdges)

	d.Publish(edgedb.New(nil))
	d.Publish(edgedb.New(nil))

	// The old pin still resolves to the original snapshot.
	assert.Equal(t, 2, d.Len(), "old version stays resident while pinned")

	d.Release(oldVersion)
	assert.Equal(t, 1, d.Len(), "releasing the last pin on a stale version evicts it")
}

func TestPublish_EvictsUnpinnedPreviousVersionImmediately(t *testing.T) {
	d := New(edgedb.New(nil))
	d.Publish(edgedb.New(nil))
	assert.Equal(t, 1, d.Len(), "nothing pinned the old version, so it is gone right away")
}
