package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/recordlight/internal/infrastructure/device"
	"github.com/garyjia/recordlight/internal/infrastructure/device/delcom"
)

func newDevicesCmd() *cobra.Command {
	var vendorID, productID uint16

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached status lights and serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			listing := device.List(vendorID, productID)

			fmt.Fprintf(out, "Status lights (%04x:%04x):\n", vendorID, productID)
			if len(listing.Lights) == 0 {
				fmt.Fprintln(out, "  none")
			}
			for _, l := range listing.Lights {
				fmt.Fprintf(out, "  %s  serial=%s  product=%s\n", l.Path, l.Serial, l.Product)
			}

			fmt.Fprintln(out, "Serial ports:")
			if len(listing.SerialPorts) == 0 {
				fmt.Fprintln(out, "  none")
			}
			for _, p := range listing.SerialPorts {
				fmt.Fprintf(out, "  %s\n", p)
			}

			for _, err := range listing.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().Uint16Var(&vendorID, "vendor-id", delcom.DefaultVendorID, "USB vendor id of the status light")
	cmd.Flags().Uint16Var(&productID, "product-id", delcom.DefaultProductID, "USB product id of the status light")
	return cmd
}
