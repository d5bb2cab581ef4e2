package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/initialization"
	"github.com/spacemeshos/post-engine/proving"
	"github.com/spacemeshos/post-engine/shared"
)

var (
	challengeHex  string
	proveProvider int64
)

// proveCmd represents the prove command.
var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Generate a proof for a challenge over initialized data",
	Long: `Generates a proof of space for the given challenge over the labels in the datadir
and stores it in the proofs directory of the datadir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		challenge, err := decodeChallenge(challengeHex)
		if err != nil {
			return err
		}

		meta, err := initialization.LoadMetadata(file.Init.DataDir)
		if err != nil {
			return err
		}

		opts := []proving.OptionFunc{
			proving.WithDataSource(file.Config, meta.NodeId, meta.CommitmentAtxId, file.Init.DataDir),
			proving.WithProvingOpts(file.Proving),
			proving.WithLogger(logger),
		}
		if proveProvider >= 0 {
			provider, err := lookupProvider(cmd, uint32(proveProvider))
			if err != nil {
				return err
			}
			opts = append(opts, proving.WithProvider(provider))
		}

		start := time.Now()
		proof, proofMeta, err := proving.Generate(cmd.Context(), challenge, file.Config, opts...)
		if err != nil {
			return fmt.Errorf("proof generation error: %w", err)
		}
		logger.Info("proof generated",
			zap.Uint32("nonce", proof.Nonce),
			zap.Uint64("pow", proof.Pow),
			zap.Stringer("indices", shared.HexEncoded(proof.Indices)),
			zap.Duration("took", time.Since(start)),
		)

		if err := shared.PersistProof(file.Init.DataDir, proof, proofMeta); err != nil {
			return err
		}
		logger.Info("proof stored", zap.String("file", shared.GetProofFilename(file.Init.DataDir, challenge)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proveCmd)

	flags := proveCmd.Flags()
	flags.StringVar(&challengeHex, "challenge", "", "challenge in hex, 32 bytes (zero challenge if not provided)")
	flags.Int64Var(&proveProvider, "provider", -1, "accelerator provider id for the cipher scheme, -1 scores labels with the oracle")
	flags.Uint32Var(&file.Proving.Nonces, "nonces", file.Proving.Nonces, "number of nonces tried per pass over the data")
	flags.UintVar(&file.Proving.Threads, "threads", file.Proving.Threads, "number of label workers, 0 for one per CPU")
	flags.Uint32Var((*uint32)(&file.Proving.Flags), "oracle-flags", uint32(file.Proving.Flags), "oracle flags")
}

func lookupProvider(cmd *cobra.Command, id uint32) (compute.Provider, error) {
	e, err := newEnumerator()
	if err != nil {
		return compute.Provider{}, err
	}
	return e.Lookup(cmd.Context(), id)
}
