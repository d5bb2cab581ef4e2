package cmd

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/gpu"
)

var referenceDevices int

// providersCmd represents the providers command.
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Prints the list of available compute providers",
	Long: `Prints the list of available compute providers.
Use the id of the provider to select the device of your choice for initialization.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnumerator()
		if err != nil {
			return err
		}
		providers, err := e.Providers(cmd.Context())
		if err != nil {
			return err
		}
		spew.Dump(providers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
	rootCmd.PersistentFlags().IntVar(&referenceDevices, "reference-devices", 0, "number of software accelerator devices to expose")
}

func newEnumerator() (*compute.Enumerator, error) {
	opts := []compute.OptionFunc{compute.WithLogger(logger)}
	if referenceDevices > 0 {
		opts = append(opts, compute.WithScanner(gpu.ReferenceScanner{Devices: referenceDevices}))
	}
	return compute.NewEnumerator(opts...)
}
