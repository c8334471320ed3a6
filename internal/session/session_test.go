package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chassis-cli/internal/table"
)

func refTable(value string) *table.Table {
	return table.New([]string{"Style", "LatestSubChassis"},
		[][]table.Cell{{{Value: "A"}, {Value: value}}})
}

func TestManager_Isolation(t *testing.T) {
	m := NewManager(0)

	a := m.Create()
	b := m.Create()
	require.NotEqual(t, a.ID, b.ID)

	require.True(t, m.SetReference(a.ID, "ref-a.xlsx", refTable("X")))
	require.True(t, m.SetReference(b.ID, "ref-b.xlsx", refTable("Y")))

	refA, _, ok := m.Reference(a.ID)
	require.True(t, ok)
	refB, _, ok := m.Reference(b.ID)
	require.True(t, ok)

	assert.Equal(t, "X", refA.Rows[0][1].Value)
	assert.Equal(t, "Y", refB.Rows[0][1].Value)
}

func TestManager_OverwriteOnReupload(t *testing.T) {
	m := NewManager(0)
	s := m.Create()

	require.True(t, m.SetReference(s.ID, "first.xlsx", refTable("old")))
	require.True(t, m.SetReference(s.ID, "second.xlsx", refTable("new")))

	ref, name, ok := m.Reference(s.ID)
	require.True(t, ok)
	assert.Equal(t, "second.xlsx", name)
	assert.Equal(t, "new", ref.Rows[0][1].Value)
}

func TestManager_UnknownSession(t *testing.T) {
	m := NewManager(0)

	_, ok := m.Get("nope")
	assert.False(t, ok)
	_, _, ok = m.Reference("nope")
	assert.False(t, ok)
	assert.False(t, m.SetReference("nope", "x", refTable("v")))
}

func TestManager_ConcurrentUploadAndRead(t *testing.T) {
	m := NewManager(0)
	s := m.Create()
	require.True(t, m.SetReference(s.ID, "ref.xlsx", refTable("v0")))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				m.SetReference(s.ID, "ref.xlsx", refTable("v"))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ref, _, ok := m.Reference(s.ID)
				require.True(t, ok)
				require.NotNil(t, ref)
			}
		}()
	}
	wg.Wait()

	ref, name, ok := m.Reference(s.ID)
	require.True(t, ok)
	assert.Equal(t, "ref.xlsx", name)
	assert.Equal(t, "v", ref.Rows[0][1].Value)
}

func TestManager_Sweep(t *testing.T) {
	m := NewManager(time.Minute)

	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	stale := m.Create()
	now = now.Add(2 * time.Minute)
	fresh := m.Create()

	removed := m.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Len())

	_, ok := m.Get(stale.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
}

func TestManager_SweepDisabled(t *testing.T) {
	m := NewManager(0)
	m.Create()
	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, 1, m.Len())
}
