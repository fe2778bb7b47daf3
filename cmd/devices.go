// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/pskrtty/internal/cli/decode"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	Long:  `Lists the capture devices in the order used by the device_index setting.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		devices, err := decode.ListAudioDevices()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(devices) == 0 {
			_, _ = fmt.Fprintln(out, "no capture devices found")
			return nil
		}
		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			_, _ = fmt.Fprintf(out, "%s %2d  %s\n", marker, d.Index, d.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
