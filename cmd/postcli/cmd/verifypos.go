package cmd

import (
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/spacemeshos/post-engine/initialization"
	"github.com/spacemeshos/post-engine/verifying"
)

var (
	fraction     float64
	posFromFile  uint32
	posToFile    int64
	skipKeyCheck bool
)

// verifyPosCmd represents the verify-pos command.
var verifyPosCmd = &cobra.Command{
	Use:   "verify-pos",
	Short: "Verify initialized data",
	Long: `Checks that key.bin matches the identity of the datadir and re-derives a random
sample of the stored labels.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := file.Init.DataDir
		meta, err := initialization.LoadMetadata(dir)
		if err != nil {
			return fmt.Errorf("failed to load metadata from %s: %w", dir, err)
		}

		if !skipKeyCheck {
			logger.Info("verifying key.bin")
			if err := checkKey(dir, meta.NodeId); err != nil {
				return err
			}
			logger.Info("key.bin is valid")
		}

		logger.Info("verifying POS data")
		opts := []verifying.VerifyPosOptionsFunc{
			verifying.WithFraction(fraction),
			verifying.FromFile(posFromFile),
			verifying.VerifyPosWithLogger(logger),
		}
		if posToFile != math.MaxInt64 {
			opts = append(opts, verifying.ToFile(uint32(posToFile)))
		}

		err = verifying.VerifyPos(dir, opts...)
		switch {
		case err == nil:
			logger.Info("POS data is valid")
			return nil
		case errors.Is(err, verifying.ErrInvalidPos):
			return err
		default:
			return fmt.Errorf("failed to verify POS data: %w", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyPosCmd)

	flags := verifyPosCmd.Flags()
	flags.Float64Var(&fraction, "fraction", verifying.DefaultFraction, "how much % of POS data to verify")
	flags.Uint32Var(&posFromFile, "from-file", 0, "index of the first file to verify (inclusive)")
	flags.Int64Var(&posToFile, "to-file", math.MaxInt64, "index of the last file to verify (inclusive)")
	flags.BoolVar(&skipKeyCheck, "skip-key-check", false, "do not check key.bin, for identities whose key is kept elsewhere")
}
