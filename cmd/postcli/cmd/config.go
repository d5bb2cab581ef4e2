package cmd

import (
	"fmt"

	"code.cloudfoundry.org/bytefmt"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/shared"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Prints the used config and options",
	RunE: func(cmd *cobra.Command, args []string) error {
		spew.Dump(file.Config)
		spew.Dump(file.Init)
		spew.Dump(file.Proving)

		layout := config.DeriveFilesLayout(file.Config, file.Init)
		fmt.Printf("unit size:  %s\n", bytefmt.ByteSize(file.Config.LabelsPerUnit*shared.LabelLength))
		fmt.Printf("total size: %s\n", bytefmt.ByteSize(file.Init.NumLabels(file.Config)*shared.LabelLength))
		fmt.Printf("files:      %d\n", layout.NumFiles)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().Uint32Var(&file.Init.NumUnits, "numunits", file.Init.NumUnits, "number of units")
	configCmd.Flags().Uint64Var(&file.Init.MaxFileSize, "max-filesize", file.Init.MaxFileSize, "max file size")
}
