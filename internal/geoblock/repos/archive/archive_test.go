package archive

import (
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/geoblock/internal/geoblock/domain"
)

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "attempts.db")
}

func TestArchive_AppendAndCount(t *testing.T) {
	a, err := Open(tempDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	n, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := a.Append(domain.BlockedAttemptLog{
			ID:          id,
			IPAddress:   "8.8.8.8",
			Timestamp:   ts.Add(time.Duration(i) * time.Second),
			CountryCode: "US",
			IsBlocked:   true,
		})
		require.NoError(t, err)
	}

	n, err = a.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestArchive_SameTimestampDistinctIDs(t *testing.T) {
	a, err := Open(tempDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ts := time.Now().UTC()
	require.NoError(t, a.Append(domain.BlockedAttemptLog{ID: "x", Timestamp: ts, CountryCode: "US"}))
	require.NoError(t, a.Append(domain.BlockedAttemptLog{ID: "y", Timestamp: ts, CountryCode: "US"}))

	n, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestArchive_KeysOrderedByTimestamp(t *testing.T) {
	path := tempDB(t)
	a, err := Open(path)
	require.NoError(t, err)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, a.Append(domain.BlockedAttemptLog{ID: "late", Timestamp: base.Add(time.Hour), CountryCode: "FR"}))
	require.NoError(t, a.Append(domain.BlockedAttemptLog{ID: "early", Timestamp: base, CountryCode: "DE"}))
	require.NoError(t, a.Close())

	db, err := bbolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var ids []string
	var stamps []int64
	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAttempts).ForEach(func(k, v []byte) error {
			var e domain.BlockedAttemptLog
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			ids = append(ids, e.ID)
			stamps = append(stamps, int64(binary.BigEndian.Uint64(k[:8])))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, ids)
	assert.Equal(t, []int64{base.UnixNano(), base.Add(time.Hour).UnixNano()}, stamps)
}

func TestArchive_Closed(t *testing.T) {
	a, err := Open(tempDB(t))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.ErrorIs(t, a.Append(domain.BlockedAttemptLog{ID: "z"}), ErrClosed)
	_, err = a.Count()
	assert.ErrorIs(t, err, ErrClosed)

	var nilArchive *Archive
	assert.ErrorIs(t, nilArchive.Append(domain.BlockedAttemptLog{}), ErrClosed)
	assert.NoError(t, nilArchive.Close())
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "attempts.db"))
	assert.Error(t, err)
}
