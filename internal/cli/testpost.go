package cli

import (
	"github.com/spf13/cobra"
)

var testPostCmd = &cobra.Command{
	Use:   "testpost",
	Short: "Find the most recent historical sale and post it once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TestPost(cmd.Context())
	},
}
