package archive

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_RoundTrip(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)

	user, run := uuid.New(), uuid.New()
	content := "row,ticker,type\n2,AAPL,buy\n"

	entry, err := a.Save(user, run, "U1234567_trades.csv", strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, run, entry.RunID)
	assert.Equal(t, "U1234567_trades.csv", entry.SourceName)
	assert.Equal(t, int64(len(content)), entry.Size)

	r, got, err := a.Open(user, run)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Equal(t, entry.RunID, got.RunID)
}

func TestArchive_SaveOverwritesSameRun(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)

	user, run := uuid.New(), uuid.New()
	_, err = a.Save(user, run, "first.csv", strings.NewReader("old"))
	require.NoError(t, err)
	_, err = a.Save(user, run, "second.csv", strings.NewReader("new"))
	require.NoError(t, err)

	r, entry, err := a.Open(user, run)
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, "new", string(data))
	assert.Equal(t, "second.csv", entry.SourceName)
}

func TestArchive_List(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)

	user := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := a.Save(user, uuid.New(), "trades.csv", strings.NewReader("x"))
		require.NoError(t, err)
	}

	entries, err := a.List(user)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	other, err := a.List(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other, "archives are scoped per user")
}

func TestArchive_Remove(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)

	user, run := uuid.New(), uuid.New()
	_, err = a.Save(user, run, "trades.csv", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, a.Remove(user, run))
	_, _, err = a.Open(user, run)
	assert.Error(t, err)

	assert.NoError(t, a.Remove(user, run), "removing twice is fine")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "trades.csv", sanitizeName("../../etc/trades.csv"))
	assert.Equal(t, "a_b.csv", sanitizeName("a\x00b.csv"))
}
