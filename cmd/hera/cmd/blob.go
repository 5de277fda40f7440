package cmd

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Commands to write and read blob artifacts",
	Long: `Commands to write and read the content of blob artifacts.

A blob is a byte string per partition.`,
}

var blobAsDelta bool

func init() {
	rootCmd.AddCommand(blobCmd)
}

// blobContent decodes a command line argument: some hex-encoded bytes, or @file for the content of a file
func blobContent(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "@") {
		return ioutil.ReadFile(strings.TrimPrefix(arg, "@"))
	}
	content, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("content must be hex-encoded, or @file: %w", err)
	}
	return content, nil
}

func parsePartition(arg string) (uint64, error) {
	p, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid partition %q: %w", arg, err)
	}
	return p, nil
}
