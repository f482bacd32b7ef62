package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"piperd/internal/config"
	"piperd/internal/voices"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the available voice models",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		registry, err := voices.NewRegistry(cfg.VoicesDir)
		if err != nil {
			return err
		}
		defer registry.Close() //nolint:errcheck

		list := registry.List()
		if len(list) == 0 {
			fmt.Printf("No voice models found in %s\n", cfg.VoicesDir)
			fmt.Println("Download Piper voices (.onnx + .onnx.json) from https://huggingface.co/rhasspy/piper-voices")
			return nil
		}

		for _, v := range list {
			fmt.Printf("%-24s %-32s %s\n", v.ID, v.ModelFile, humanize.Bytes(uint64(v.SizeBytes)))
		}
		return nil
	},
}
