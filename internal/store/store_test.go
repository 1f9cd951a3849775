package store

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatRecordName(t *testing.T) {
	require.Equal(t,
		"15934E61-04A5-47cf-86FF-3E02F08F5931-00000002.myqueue",
		FormatRecordName(2, "myqueue"))
	require.Equal(t,
		"15934E61-04A5-47cf-86FF-3E02F08F5931-0f0a0002.myqueue",
		FormatRecordName(0x0F0A0002, "myqueue"))
	require.Equal(t,
		"15934E61-04A5-47cf-86FF-3E02F08F5931-ffffffff.q",
		FormatRecordName(0xFFFFFFFF, "q"))
}

func TestParseRecordName(t *testing.T) {
	key, err := ParseRecordName("15934E61-04A5-47cf-86FF-3E02F08F5931-0F0A0002.myqueue", "myqueue")
	require.NoError(t, err)
	require.Equal(t, uint32(0x0F0A0002), key)

	key, err = ParseRecordName(FormatRecordName(77, "a.b"), "a.b")
	require.NoError(t, err)
	require.Equal(t, uint32(77), key)

	invalid := []string{
		"15934E61-04A5-47cf-86FF-3E02F08F5931-00000002.other",
		"15934E61-04A5-47cf-86FF-3E02F08F5931-0000002.myqueue",
		"15934E61-04A5-47cf-86FF-3E02F08F5931-000000002.myqueue",
		"15934E61-04A5-47cf-86FF-3E02F08F5931-0000000g.myqueue",
		"15934E61-04A5-47cf-86FF-3E02F08F5931-00000002.myqueue.tmp",
		"00000000-0000-0000-0000-000000000000-00000002.myqueue",
		"",
	}
	for _, name := range invalid {
		_, err := ParseRecordName(name, "myqueue")
		require.Error(t, err, name)
	}

	// Regex metacharacters in the queue id are literal.
	_, err = ParseRecordName(FormatRecordName(1, "aXb"), "a.b")
	require.Error(t, err)
}

func TestOpenValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(dir, "")
	require.ErrorIs(t, err, ErrInvalidQueueID)

	_, err = Open(dir, "a/b")
	require.ErrorIs(t, err, ErrInvalidQueueID)

	_, err = Open(filepath.Join(dir, "missing"), "q")
	require.Error(t, err)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = Open(file, "q")
	require.ErrorIs(t, err, ErrNotDirectory)

	s, err := Open(dir, "q")
	require.NoError(t, err)
	require.Equal(t, dir, s.Root())
	require.Equal(t, "q", s.QueueID())
}

func TestWriteReadAllDelete(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		dir := t.TempDir()
		s, err := Open(dir, "myqueue", WithAtomicWrite(atomic), WithSync(true))
		require.NoError(t, err)

		require.NoError(t, s.Write(2, []byte("two")))
		require.NoError(t, s.Write(0, []byte("zero")))
		require.NoError(t, s.Write(1, []byte("one")))
		require.NoError(t, s.Write(1, []byte("uno")))

		records, err := s.ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
		require.Equal(t, []byte("zero"), records[0].Data)
		require.Equal(t, []byte("uno"), records[1].Data)
		require.Equal(t, []byte("two"), records[2].Data)
		require.Equal(t, s.Path(2), records[2].Path)

		require.NoError(t, s.Delete(1))
		require.NoError(t, s.Delete(1))
		_, err = os.Stat(s.Path(1))
		require.True(t, os.IsNotExist(err))

		records, err = s.ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)

		matches, err := filepath.Glob(filepath.Join(dir, "*"+tempSuffix))
		require.NoError(t, err)
		require.Empty(t, matches)
	}
}

func TestReadAllSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	mine, err := Open(dir, "mine")
	require.NoError(t, err)
	theirs, err := Open(dir, "theirs")
	require.NoError(t, err)

	require.NoError(t, mine.Write(5, []byte("m")))
	require.NoError(t, theirs.Write(5, []byte("t")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(mine.Path(6)+tempSuffix, []byte("partial"), 0o600))
	require.NoError(t, os.Mkdir(mine.Path(7), 0o700))

	records, err := mine.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint32(5), records[0].Key)
	require.Equal(t, []byte("m"), records[0].Data)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	s, err := Open(t.TempDir(), "q")
	require.NoError(t, err)
	require.NoError(t, s.Delete(42))
	require.NoError(t, s.Delete(42))
}

func TestOpenRemovesStaleTempRecords(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, FormatRecordName(3, "mine")+tempSuffix)
	foreign := filepath.Join(dir, FormatRecordName(3, "theirs")+tempSuffix)
	other := filepath.Join(dir, "notes.tmp")
	for _, path := range []string{stale, foreign, other} {
		require.NoError(t, os.WriteFile(path, []byte("partial"), 0o600))
	}

	s, err := Open(dir, "mine", WithAtomicWrite(true))
	require.NoError(t, err)

	_, err = os.Stat(stale)
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(foreign)
	require.NoError(t, err)
	_, err = os.Stat(other)
	require.NoError(t, err)

	records, err := s.ReadAll()
	require.NoError(t, err)
	require.Empty(t, records)
}
