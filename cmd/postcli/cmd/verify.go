package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/initialization"
	"github.com/spacemeshos/post-engine/shared"
	"github.com/spacemeshos/post-engine/verifying"
)

var cipherScheme bool

// verifyCmd represents the verify command.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a stored proof",
	Long: `Verifies the proof stored in the datadir for the given challenge.
The label scheme of the data is read from the metadata of the datadir, when present.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		challenge, err := decodeChallenge(challengeHex)
		if err != nil {
			return err
		}
		proof, meta, err := shared.FetchProof(file.Init.DataDir, challenge)
		if err != nil {
			return err
		}

		var opts []verifying.OptionFunc
		if cipherScheme {
			opts = append(opts, verifying.WithCipherScheme())
		}
		if m, err := initialization.LoadMetadata(file.Init.DataDir); err == nil && m.LabelScheme == shared.LabelSchemeScrypt {
			opts = append(opts, verifying.WithLabelScryptParams(m.Scrypt))
		}

		result, err := verifying.Verify(cmd.Context(), proof, meta, file.Config, file.Proving.Flags, opts...)
		if err != nil {
			return fmt.Errorf("proof is not valid (%s): %w", result, err)
		}
		logger.Info("proof is valid", zap.Uint32("nonce", proof.Nonce))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	flags := verifyCmd.Flags()
	flags.StringVar(&challengeHex, "challenge", "", "challenge in hex, 32 bytes (zero challenge if not provided)")
	flags.BoolVar(&cipherScheme, "cipher", false, "check indices with the cipher scheme of accelerator providers")
	flags.Uint32Var((*uint32)(&file.Proving.Flags), "oracle-flags", uint32(file.Proving.Flags), "oracle flags")
}
