package proving

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/post-engine/shared"
)

func TestIoWorker(t *testing.T) {
	numLabels := 2*batchSize/shared.LabelLength + 10
	data := make([]byte, numLabels*shared.LabelLength+7) // trailing partial label
	for i := range data {
		data[i] = byte(i)
	}

	batchQueue := make(chan *batch, 4)
	var reported uint64
	err := ioWorker(context.Background(), batchQueue, iotest.HalfReader(bytes.NewReader(data)), func(n uint64) { reported += n })
	require.NoError(t, err)
	require.EqualValues(t, numLabels, reported)

	var got []byte
	expectedIndex := uint64(0)
	for b := range batchQueue {
		require.Equal(t, expectedIndex, b.Index)
		require.Zero(t, len(b.Data)%shared.LabelLength)
		got = append(got, b.Data...)
		expectedIndex += uint64(len(b.Data) / shared.LabelLength)
		b.release()
	}
	require.Equal(t, data[:numLabels*shared.LabelLength], got)
}

func TestIoWorker_ReadError(t *testing.T) {
	batchQueue := make(chan *batch, 4)
	errRead := errors.New("read failure")
	err := ioWorker(context.Background(), batchQueue, iotest.ErrReader(errRead), func(uint64) {})
	require.ErrorIs(t, err, errRead)
	_, ok := <-batchQueue
	require.False(t, ok)
}

func TestSolutionWorker(t *testing.T) {
	resultChan := make(chan *batchResult, 16)
	resultChan <- &batchResult{Index: 0, Count: 4, Solutions: map[uint32][]uint64{1: {3}, 2: {1}}}
	resultChan <- &batchResult{Index: 4, Count: 4, Solutions: map[uint32][]uint64{1: {5}, 2: {4}}}
	resultChan <- &batchResult{Index: 8, Count: 4, Solutions: map[uint32][]uint64{1: {9, 10}}}

	result, err := solutionWorker(context.Background(), resultChan, 3, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.EqualValues(t, 1, result.nonce)
	require.Equal(t, []uint64{3, 5, 9}, result.indices)
}

func TestSolutionWorker_OutOfOrderBatches(t *testing.T) {
	// The last batch arrives first and holds enough indices on its own for nonce 7,
	// but nonce 3 collects its indices in the earlier batches.
	resultChan := make(chan *batchResult, 16)
	resultChan <- &batchResult{Index: 8, Count: 4, Solutions: map[uint32][]uint64{7: {8, 9, 10}, 3: {11}}}
	resultChan <- &batchResult{Index: 4, Count: 4, Solutions: map[uint32][]uint64{3: {6}}}
	resultChan <- &batchResult{Index: 0, Count: 4, Solutions: map[uint32][]uint64{3: {0, 2}, 7: {1}}}

	result, err := solutionWorker(context.Background(), resultChan, 3, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.EqualValues(t, 3, result.nonce)
	require.Equal(t, []uint64{0, 2, 6}, result.indices)
}

func TestSolutionWorker_FirstK2Indices(t *testing.T) {
	resultChan := make(chan *batchResult, 16)
	resultChan <- &batchResult{Index: 4, Count: 4, Solutions: map[uint32][]uint64{5: {4, 6, 7}}}
	resultChan <- &batchResult{Index: 0, Count: 4, Solutions: map[uint32][]uint64{5: {1}}}

	result, err := solutionWorker(context.Background(), resultChan, 2, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.EqualValues(t, 5, result.nonce)
	require.Equal(t, []uint64{1, 4}, result.indices)
}

func TestSolutionWorker_TieGoesToLowerNonce(t *testing.T) {
	resultChan := make(chan *batchResult, 16)
	resultChan <- &batchResult{Index: 0, Count: 4, Solutions: map[uint32][]uint64{9: {0, 3}, 4: {1, 3}, 2: {2}}}

	result, err := solutionWorker(context.Background(), resultChan, 2, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.EqualValues(t, 4, result.nonce)
	require.Equal(t, []uint64{1, 3}, result.indices)
}

func TestSolutionWorker_NoSolution(t *testing.T) {
	resultChan := make(chan *batchResult, 16)
	resultChan <- &batchResult{Index: 0, Count: 4, Solutions: map[uint32][]uint64{1: {2}}}
	resultChan <- &batchResult{Index: 4, Count: 4}
	close(resultChan)

	result, err := solutionWorker(context.Background(), resultChan, 3, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestSolutionWorker_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := solutionWorker(ctx, make(chan *batchResult), 3, zaptest.NewLogger(t))
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, result)
}
