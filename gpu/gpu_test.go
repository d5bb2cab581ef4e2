package gpu_test

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/gpu"
	"github.com/spacemeshos/post-engine/shared"
)

func newTestContext(t *testing.T, challenge []byte, startNonce, nonces uint32, pows []uint64, difficulty uint64, inputSize int) *gpu.Context {
	t.Helper()
	keys, err := gpu.DeriveKeys(challenge, startNonce, nonces, pows)
	require.NoError(t, err)

	msb, lsb := shared.SplitDifficulty(difficulty)
	ctx, err := gpu.NewContext(0, startNonce, nonces, keys.Cipher, keys.Lazy, lsb, msb, inputSize, []byte(gpu.KernelSource))
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func TestContextMatchesQualifies(t *testing.T) {
	challenge := make([]byte, 32)
	challenge[0] = 7
	const numLabels = 256
	difficulty, err := shared.ProvingDifficulty(3000, 400)
	require.NoError(t, err)

	data := make([]byte, numLabels*shared.LabelLength)
	_, err = rand.Read(data)
	require.NoError(t, err)

	pows := []uint64{11, 22}
	ctx := newTestContext(t, challenge, 32, 32, pows, difficulty, len(data))

	const baseIndex = 1000
	require.Equal(t, gpu.StatusOk, ctx.Prove(baseIndex, data))

	found := make(map[gpu.Result]bool)
	for i := 0; i < ctx.ResultCount(); i++ {
		r, err := ctx.Result(i)
		require.NoError(t, err)
		found[r] = true
	}
	require.NotEmpty(t, found)

	for i := uint64(0); i < numLabels; i++ {
		label := data[i*shared.LabelLength : (i+1)*shared.LabelLength]
		for nonce := uint32(32); nonce < 64; nonce++ {
			pow := pows[shared.NonceGroup(nonce)-2]
			ok, err := gpu.Qualifies(challenge, nonce, pow, label, difficulty)
			require.NoError(t, err)
			require.Equal(t, ok, found[gpu.Result{Index: baseIndex + i, Nonce: nonce}], "index %d nonce %d", i, nonce)
		}
	}
}

func TestContextResultsResetPerBatch(t *testing.T) {
	challenge := make([]byte, 32)
	difficulty, err := shared.ProvingDifficulty(16, 8)
	require.NoError(t, err)

	data := make([]byte, 64*shared.LabelLength)
	_, err = rand.Read(data)
	require.NoError(t, err)

	ctx := newTestContext(t, challenge, 0, 16, []uint64{0}, difficulty, len(data))
	require.Equal(t, gpu.StatusOk, ctx.Prove(0, data))
	first := ctx.ResultCount()
	require.NotZero(t, first)

	require.Equal(t, gpu.StatusOk, ctx.Prove(0, data[:shared.LabelLength]))
	require.LessOrEqual(t, ctx.ResultCount(), shared.NoncesPerGroup)

	_, err = ctx.Result(ctx.ResultCount())
	require.ErrorIs(t, err, gpu.ErrNoResult)
}

func TestContextInvalidBatch(t *testing.T) {
	ctx := newTestContext(t, make([]byte, 32), 0, 16, []uint64{0}, 1<<60, 64)

	require.Equal(t, gpu.StatusInvalidArgument, ctx.Prove(0, nil))
	require.Equal(t, gpu.StatusInvalidArgument, ctx.Prove(0, make([]byte, 15)))
	require.Equal(t, gpu.StatusInvalidArgument, ctx.Prove(0, make([]byte, 80)))
	require.ErrorIs(t, gpu.StatusInvalidArgument.Err(), shared.ErrInvalidArgument)

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	require.Equal(t, gpu.StatusClosed, ctx.Prove(0, make([]byte, 16)))
	_, err := ctx.Result(0)
	require.ErrorIs(t, err, gpu.ErrContextClosed)
}

func TestNewContextValidation(t *testing.T) {
	challenge := make([]byte, 32)
	keys, err := gpu.DeriveKeys(challenge, 0, 16, []uint64{0})
	require.NoError(t, err)
	src := []byte(gpu.KernelSource)

	_, err = gpu.NewContext(0, 1, 16, keys.Cipher, keys.Lazy, 0, 0, 16, src)
	require.ErrorIs(t, err, gpu.ErrInvalidContext)

	_, err = gpu.NewContext(0, 0, 16, keys.Cipher, keys.Lazy, 0, 0, 17, src)
	require.ErrorIs(t, err, gpu.ErrInvalidContext)

	_, err = gpu.NewContext(0, 0, 16, keys.Cipher, keys.Lazy, 1<<56, 0, 16, src)
	require.ErrorIs(t, err, gpu.ErrInvalidContext)

	_, err = gpu.NewContext(0, 0, 16, keys.Cipher, keys.Lazy, 0, 0, 16, []byte("__kernel void other() {}"))
	require.ErrorIs(t, err, gpu.ErrKernelEntry)

	_, err = gpu.NewContext(0, 0, 16, keys.Cipher, keys.Lazy[:16], 0, 0, 16, src)
	require.ErrorIs(t, err, gpu.ErrInvalidKeys)

	_, err = gpu.NewContext(0, 0, 32, keys.Cipher, keys.Lazy, 0, 0, 16, src)
	require.ErrorIs(t, err, gpu.ErrInvalidKeys)
}

func TestDeriveKeys(t *testing.T) {
	challenge := make([]byte, 32)
	keys, err := gpu.DeriveKeys(challenge, 16, 32, []uint64{5, 6})
	require.NoError(t, err)
	require.Len(t, keys.Cipher, 2*gpu.KeySize)
	require.Len(t, keys.Lazy, 32*gpu.KeySize)

	require.Equal(t, gpu.CipherKey(challenge, 1, 5), keys.Cipher[:gpu.KeySize])
	require.Equal(t, gpu.CipherKey(challenge, 2, 6), keys.Cipher[gpu.KeySize:])
	require.Equal(t, gpu.LazyCipherKey(challenge, 47, 2, 6), keys.Lazy[31*gpu.KeySize:])
	require.NotEqual(t, gpu.LazyCipherKey(challenge, 16, 1, 5), gpu.LazyCipherKey(challenge, 17, 1, 5))

	_, err = gpu.DeriveKeys(challenge, 3, 16, []uint64{0})
	require.ErrorIs(t, err, gpu.ErrInvalidKeys)
	_, err = gpu.DeriveKeys(challenge, 0, 32, []uint64{0})
	require.ErrorIs(t, err, gpu.ErrInvalidKeys)
}

func TestQualifiesBounds(t *testing.T) {
	challenge := make([]byte, 32)
	label := make([]byte, shared.LabelLength)

	ok, err := gpu.Qualifies(challenge, 3, 0, label, 0)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = gpu.Qualifies(challenge, 3, 0, label, ^uint64(0))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = gpu.Qualifies(challenge, 3, 0, label[:4], 1)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestReferenceScanner(t *testing.T) {
	e, err := compute.NewEnumerator(compute.WithScanner(gpu.ReferenceScanner{Devices: 2}))
	require.NoError(t, err)

	providers, err := e.Providers(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 3)
	require.Equal(t, compute.ClassGPU, providers[1].DeviceType)
	require.EqualValues(t, 1, providers[2].ID)
}

func TestContextLogsToCallback(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	if !compute.SetLogCallback(zap.New(core)) {
		t.Skip("backend log callback already registered")
	}

	gctx := newTestContext(t, make([]byte, 32), 0, 16, []uint64{1}, 1, 4*shared.LabelLength)
	require.Equal(t, gpu.StatusInvalidArgument, gctx.Prove(0, make([]byte, 5*shared.LabelLength)))
	require.NoError(t, gctx.Close())

	created := logs.FilterMessage("gpu context created").AllUntimed()
	require.Len(t, created, 1)
	require.Equal(t, "backend", created[0].LoggerName)
	require.EqualValues(t, 16, created[0].ContextMap()["nonces"])
	require.Equal(t, 1, logs.FilterMessage("invalid gpu batch").FilterLevelExact(zapcore.ErrorLevel).Len())
	require.Equal(t, 1, logs.FilterMessage("gpu context destroyed").Len())
}
