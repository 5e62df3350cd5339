package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustGetString gets a string flag value or panics if the flag doesn't exist.
// Flags are defined in init(), so an error here is a programming bug.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetUint(cmd *cobra.Command, name string) uint {
	val, err := cmd.Flags().GetUint(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}
