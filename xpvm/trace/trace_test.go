package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/xpvm/common"
)

func TestSetChangedMemoryHashesLongWrites(t *testing.T) {
	var s Step
	s.SetChangedMemory(64, 8, []byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2, 3}, s.ChangedMemoryBytes)

	long := bytes.Repeat([]byte{7}, 33)
	s.SetChangedMemory(64, 0, long)
	assert.Equal(t, common.Blake2Hash(long).Bytes(), s.ChangedMemoryBytes)

	s.SetChangedMemory(64, 0, nil)
	assert.Nil(t, s.ChangedMemoryBytes)
	require.NotNil(t, s.ChangedMemoryBlock)
	assert.Equal(t, uint64(64), *s.ChangedMemoryBlock)
}

func TestJSONLWriterConcurrent(t *testing.T) {
	var out bytes.Buffer
	w := NewJSONLWriter(&out)

	var wg sync.WaitGroup
	for p := uint64(1); p <= 4; p++ {
		wg.Add(1)
		go func(p uint64) {
			defer wg.Done()
			for i := uint64(0); i < 50; i++ {
				st := &Step{Proc: p, Step: i, OpcodeStr: "addl"}
				st.SetDst(1, i)
				assert.NoError(t, w.WriteStep(st))
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteStep(&Step{}), ErrWriterClosed)
	assert.NoError(t, w.Close())

	lines := 0
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var st Step
		require.NoError(t, json.Unmarshal(sc.Bytes(), &st))
		require.NotNil(t, st.DstValue)
		lines++
	}
	assert.Equal(t, 200, lines)
}

func TestJSONLWriterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	w, err := NewJSONLWriterFile(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteStep(&Step{Proc: 1, Exception: "DIVIDE_BY_ZERO"}))
	require.NoError(t, w.Close())
}

func TestStoreOrdering(t *testing.T) {
	s, err := OpenStore("")
	require.NoError(t, err)
	defer s.Close()

	// Write out of order across two processors, including a step past 255 to
	// check the big-endian key ordering.
	for _, st := range []*Step{
		{Proc: 2, Step: 0},
		{Proc: 1, Step: 300},
		{Proc: 1, Step: 2},
		{Proc: 1, Step: 0},
		{Proc: 2, Step: 1},
	} {
		require.NoError(t, s.WriteStep(st))
	}

	steps, err := s.Steps(1)
	require.NoError(t, err)
	var got []uint64
	for _, st := range steps {
		assert.Equal(t, uint64(1), st.Proc)
		got = append(got, st.Step)
	}
	assert.Equal(t, []uint64{0, 2, 300}, got)

	procs, err := s.Processors()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, procs)

	last, ok, err := s.Last(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(300), last.Step)

	_, ok, err = s.Get(3, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Last(9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := OpenStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.WriteStep(&Step{Proc: 1, Step: 5, OpcodeStr: "ret"}))
	require.NoError(t, s.Close())

	s, err = OpenStore(dir)
	require.NoError(t, err)
	defer s.Close()
	st, ok, err := s.Get(1, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ret", st.OpcodeStr)
}

func TestMultiSink(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewJSONLWriter(&a), NewJSONLWriter(&b)}
	require.NoError(t, m.WriteStep(&Step{Proc: 1}))
	require.NoError(t, m.Close())
	assert.Equal(t, a.String(), b.String())
	assert.NotEmpty(t, a.String())
}
