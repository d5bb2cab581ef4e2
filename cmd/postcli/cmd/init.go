package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/initialization"
	"github.com/spacemeshos/post-engine/oracle"
	"github.com/spacemeshos/post-engine/proving"
	"github.com/spacemeshos/post-engine/shared"
	"github.com/spacemeshos/post-engine/verifying"
)

var (
	idHex              string
	commitmentAtxIdHex string
	labelScheme        string
	toFile             int
	reset              bool
	genProof           bool
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize PoST data",
	Long: `Initialization computes the labels of an identity and stores them in the datadir.
An interrupted initialization continues where it stopped when run again with the same arguments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		opts := file.Init
		if toFile != math.MaxInt {
			opts.ToFileIdx = &toFile
		}

		if commitmentAtxIdHex == "" {
			return errors.New("--commitment-atx-id flag is required")
		}
		commitmentAtxId, err := hex.DecodeString(commitmentAtxIdHex)
		if err != nil {
			return fmt.Errorf("invalid commitment atx id: %w", err)
		}
		if (opts.FromFileIdx != 0 || opts.ToFileIdx != nil) && idHex == "" {
			return errors.New("--id flag is required when using --from-file or --to-file")
		}
		id, err := identity(idHex, opts.DataDir)
		if errors.Is(err, ErrKeyFileExists) {
			return fmt.Errorf("%w: if you're trying to initialize a new identity delete %s, otherwise specify the identity with --id", err, edKeyFileName)
		}
		if err != nil {
			return err
		}

		e, err := newEnumerator()
		if err != nil {
			return err
		}
		init, err := initialization.NewInitializer(
			initialization.WithConfig(file.Config),
			initialization.WithInitOpts(opts),
			initialization.WithNodeId(id),
			initialization.WithCommitmentAtxId(commitmentAtxId),
			initialization.WithLabelScheme(labelScheme),
			initialization.WithEnumerator(e),
			initialization.WithLogger(logger),
		)
		if err != nil {
			return err
		}

		if reset {
			if err := init.Reset(); err != nil {
				return fmt.Errorf("reset error: %w", err)
			}
			logger.Info("reset completed")
			return nil
		}

		logger.Info("initializing",
			zap.Stringer("id", shared.HexEncoded(id)),
			zap.String("size", bytefmt.ByteSize(opts.NumLabels(file.Config)*shared.LabelLength)),
		)
		err = init.Initialize(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			logger.Info("initialization interrupted", zap.Uint64("labelsWritten", init.SessionNumLabelsWritten()))
			return nil
		case err != nil:
			return fmt.Errorf("initialization error: %w", err)
		}
		logger.Info("initialization completed", zap.Uint64p("nonce", init.Nonce()))

		if genProof {
			return sanityProof(ctx, id, commitmentAtxId)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	flags := initCmd.Flags()
	flags.StringVar(&idHex, "id", "", "miner's id (public key), in hex (will be auto-generated if not provided)")
	flags.StringVar(&commitmentAtxIdHex, "commitment-atx-id", "", "commitment atx id, in hex (required)")
	flags.Uint32Var(&file.Init.NumUnits, "numunits", file.Init.NumUnits, "number of units")
	flags.Uint64Var(&file.Init.MaxFileSize, "max-filesize", file.Init.MaxFileSize, "max file size")
	flags.Int64Var(&file.Init.ProviderID, "provider", file.Init.ProviderID, "compute provider id, -1 selects the best one")
	flags.Uint64Var(&file.Init.ComputeBatchSize, "compute-batch-size", file.Init.ComputeBatchSize, "number of labels computed per batch")
	flags.BoolVar(&file.Init.Throttle, "throttle", file.Init.Throttle, "throttle label computation")
	flags.IntVar(&file.Init.FromFileIdx, "from-file", 0, "index of the first file to init (inclusive)")
	flags.IntVar(&toFile, "to-file", math.MaxInt, "index of the last file to init (inclusive). Will init to the end of declared space if not provided.")
	flags.StringVar(&labelScheme, "label-scheme", shared.LabelSchemeKeystream, "label scheme, empty for the keystream or \"scrypt\"")
	flags.BoolVar(&reset, "reset", false, "whether to reset the datadir before starting")
	flags.BoolVar(&genProof, "genproof", false, "generate and verify a proof as a sanity test, after initialization")
}

func sanityProof(ctx context.Context, id, commitmentAtxId []byte) error {
	logger.Info("generating proof as a sanity test")

	challenge := make([]byte, 32)
	proof, meta, err := proving.Generate(ctx, challenge, file.Config,
		proving.WithDataSource(file.Config, id, commitmentAtxId, file.Init.DataDir),
		proving.WithProvingOpts(file.Proving),
		proving.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("proof generation error: %w", err)
	}

	var opts []verifying.OptionFunc
	if labelScheme == shared.LabelSchemeScrypt {
		opts = append(opts, verifying.WithLabelScryptParams(file.Config.Scrypt))
	}
	result, err := verifying.Verify(ctx, proof, meta, file.Config, file.Proving.Flags&^oracle.FlagFullMem, opts...)
	if err != nil {
		return fmt.Errorf("failed to verify test proof (%s): %w", result, err)
	}
	logger.Info("proof is valid")
	return nil
}
