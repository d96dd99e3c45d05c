package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(registerCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register <code>",
	Short: "Verifies the account with the code received by SMS or voice call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()
		a.startPushBridge()

		if err := a.manager.Register(context.Background(), args[0]); err != nil {
			return err
		}
		if a.cfg.FetchesMessages {
			fmt.Println("Registered, push is not supported and messages are fetched manually")
		} else {
			fmt.Println("Registered")
		}
		return nil
	},
}
