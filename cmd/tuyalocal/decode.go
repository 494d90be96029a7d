package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/tuyalocal/internal/protocol"
)

// Decode command flags
var (
	decodeKey    string
	decodeDevice string
	decodeFile   string
)

func init() {
	decodeCmd.Flags().StringVar(&decodeKey, "key", "", "Local key used to decrypt the payload")
	decodeCmd.Flags().StringVar(&decodeDevice, "device", "", "Take the local key from this registry device")
	decodeCmd.Flags().StringVar(&decodeFile, "file", "", "Read the raw frame bytes from a file instead of a hex argument")

	rootCmd.AddCommand(decodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode [hex-frame]",
	Short: "Decode a captured frame",
	Long: `Decode a frame captured on the wire, such as from a packet capture.

Frames sent to a device and frames sent by a device are both recognised.
Encrypted payloads are decrypted when a local key is given.`,
	Example: `  # Decode with an explicit key
  tuyalocal decode 000055aa000000000000000a... --key 0123456789abcdef

  # Decode with the key of a registered device
  tuyalocal decode 000055aa... --device "Desk Lamp"

  # Decode a raw capture file
  tuyalocal decode --file frame.bin --key 0123456789abcdef`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	frame, err := readFrame(args)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	key := decodeKey
	if key == "" && decodeDevice != "" {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		_, d, ok := reg.FindDevice(decodeDevice)
		if !ok {
			return fmt.Errorf("device %q is not in the registry", decodeDevice)
		}
		key = d.LocalKey
	}

	var c *protocol.Cipher
	if key != "" {
		if c, err = protocol.NewCipher([]byte(key)); err != nil {
			return err
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), protocol.Inspect(frame, c).String())
	return nil
}

func readFrame(args []string) ([]byte, error) {
	switch {
	case decodeFile != "" && len(args) > 0:
		return nil, fmt.Errorf("give either a hex frame or --file, not both")
	case decodeFile != "":
		data, err := os.ReadFile(decodeFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		return data, nil
	case len(args) == 1:
		return parseHexFrame(args[0])
	default:
		return nil, fmt.Errorf("a hex frame or --file is required")
	}
}

// parseHexFrame accepts hex with optional whitespace, colons and a 0x prefix
func parseHexFrame(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', ':':
			return -1
		}
		return r
	}, s)
	frame, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	return frame, nil
}
