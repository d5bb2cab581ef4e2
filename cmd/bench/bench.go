package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/gpu"
	"github.com/spacemeshos/post-engine/initialization"
	"github.com/spacemeshos/post-engine/oracle"
	"github.com/spacemeshos/post-engine/proving"
	"github.com/spacemeshos/post-engine/verifying"
)

var (
	nodeId          = bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 8)
	commitmentAtxId = bytes.Repeat([]byte{0xca, 0xfe, 0xba, 0xbe}, 8)
	challenge       = []byte("this is a challenge of 32 bytes!")
)

type testCase struct {
	cfg      config.Config
	opts     config.InitOpts
	threads  uint
	nonces   uint32
	provider *compute.Provider
}

func main() {
	datadir := flag.String("datadir", "", "filesystem datadir path (a temporary directory if not provided)")
	space := flag.Uint64("space", 1<<23, "space per unit, in bytes")
	units := flag.Uint("units", 4, "number of units")
	single := flag.Bool("single", false, "whether to execute a single test instead of the complete set")
	fullMem := flag.Bool("fullmem", true, "build the oracle dataset instead of computing items on demand")
	flag.Parse()

	if *datadir == "" {
		dir, err := os.MkdirTemp("", "post-bench")
		if err != nil {
			log.Fatalln(err)
		}
		defer os.RemoveAll(dir)
		*datadir = dir
	}

	flags := oracle.RecommendedFlags()
	if !*fullMem {
		flags &^= oracle.FlagFullMem
	}

	log.Printf("bench config: datadir: %v, space: %v, units: %v, flags: %v", *datadir, bytefmt.ByteSize(*space), *units, flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cases := genTestCases(*datadir, *space, uint32(*units), *single)
	data := make([][]string, 0, len(cases))
	for i, tc := range cases {
		log.Printf("test %v/%v starting...", i+1, len(cases))
		tStart := time.Now()

		row, err := run(ctx, tc, flags)
		if err != nil {
			log.Fatalf("test %v/%v failed: %v", i+1, len(cases), err)
		}

		log.Printf("test %v/%v completed, %v", i+1, len(cases), time.Since(tStart))
		data = append(data, row)
	}

	header := []string{"space", "filesize", "scheme", "threads", "nonces", "init", "verify-pos", "prove", "verify"}
	report(*datadir, header, data)
}

func run(ctx context.Context, tc testCase, flags oracle.Flags) ([]string, error) {
	e, err := compute.NewEnumerator(compute.WithScanner(gpu.ReferenceScanner{Devices: 1}))
	if err != nil {
		return nil, err
	}
	init, err := initialization.NewInitializer(
		initialization.WithNodeId(nodeId),
		initialization.WithCommitmentAtxId(commitmentAtxId),
		initialization.WithConfig(tc.cfg),
		initialization.WithInitOpts(tc.opts),
		initialization.WithEnumerator(e),
		initialization.WithLogger(zap.NewNop()),
	)
	if err != nil {
		return nil, err
	}
	defer init.Reset()

	t := time.Now()
	if err := init.Initialize(ctx); err != nil {
		return nil, err
	}
	eInit := time.Since(t)

	t = time.Now()
	if err := verifying.VerifyPos(tc.opts.DataDir, verifying.WithFraction(1)); err != nil {
		return nil, err
	}
	ePos := time.Since(t)

	opts := []proving.OptionFunc{
		proving.WithDataSource(tc.cfg, nodeId, commitmentAtxId, tc.opts.DataDir),
		proving.WithThreads(tc.threads),
		proving.WithNoncesPerPass(tc.nonces),
		proving.WithFlags(flags),
	}
	var verifyOpts []verifying.OptionFunc
	scheme := "oracle"
	if tc.provider != nil {
		opts = append(opts, proving.WithProvider(*tc.provider))
		verifyOpts = append(verifyOpts, verifying.WithCipherScheme())
		scheme = "cipher"
	}

	t = time.Now()
	proof, meta, err := proving.Generate(ctx, challenge, tc.cfg, opts...)
	if err != nil {
		return nil, err
	}
	eProve := time.Since(t)

	verifier, err := verifying.NewVerifier(flags, verifying.WithOracleParams(tc.cfg.Oracle))
	if err != nil {
		return nil, err
	}
	defer verifier.Close()

	t = time.Now()
	if _, err := verifier.Verify(ctx, proof, meta, tc.cfg, verifyOpts...); err != nil {
		return nil, err
	}
	eVerify := time.Since(t)

	return []string{
		bytefmt.ByteSize(tc.opts.NumLabels(tc.cfg) * 16),
		bytefmt.ByteSize(tc.opts.MaxFileSize),
		scheme,
		strconv.Itoa(int(tc.threads)),
		strconv.Itoa(int(tc.nonces)),
		eInit.Round(time.Millisecond).String(),
		ePos.Round(time.Millisecond).String(),
		eProve.Round(time.Millisecond).String(),
		eVerify.Round(time.Millisecond).String(),
	}, nil
}

func report(datadir string, header []string, data [][]string) {
	fmt.Printf("\n\nBENCHMARKS: datadir=%v\n", datadir)
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		fmt.Printf("CPU: %s (%d threads)\n", infos[0].ModelName, runtime.NumCPU())
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("Memory: %s total, %s available\n", bytefmt.ByteSize(vm.Total), bytefmt.ByteSize(vm.Available))
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetBorder(true)
	table.AppendBulk(data)
	table.Render()
}

func genTestCases(datadir string, space uint64, units uint32, single bool) []testCase {
	cfg := config.DefaultConfig()
	cfg.LabelsPerUnit = space / 16
	cfg.MaxNumUnits = max(cfg.MaxNumUnits, units)
	cfg.K1 = uint32(min(uint64(cfg.LabelsPerUnit)*uint64(units)/16, 1<<16))

	def := testCase{
		cfg:     cfg,
		opts:    config.DefaultInitOpts(),
		threads: uint(runtime.NumCPU()),
		nonces:  16,
	}
	def.opts.DataDir = datadir
	def.opts.NumUnits = units
	def.opts.MaxFileSize = space
	def.opts.ProviderID = int64(compute.CPUProviderID)

	if single {
		return []testCase{def}
	}

	cases := make([]testCase, 0)

	// Various prover parallelism degrees.
	for i := 1; i <= runtime.NumCPU(); i *= 2 {
		tc := def
		tc.threads = uint(i)
		cases = append(cases, tc)
	}

	// More nonces per pass over the data.
	for i := uint32(1); i <= 4; i++ {
		tc := def
		tc.nonces = 16 << i
		cases = append(cases, tc)
	}

	// Split to smaller files.
	for i := 1; i <= 4; i++ {
		tc := def
		tc.opts.MaxFileSize = max(space>>uint(i), config.MinFileSize)
		cases = append(cases, tc)
	}

	// Software accelerator: labels computed and scanned with the device kernels.
	device := gpu.ReferenceScanner{Devices: 1}
	providers, err := device.Scan(context.Background())
	if err == nil && len(providers) > 0 {
		tc := def
		tc.provider = &providers[0]
		tc.opts.ProviderID = int64(providers[0].ID)
		cases = append(cases, tc)
	}

	return cases
}
