package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(turnCmd)
}

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Prints the TURN server credentials for calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		info, err := a.manager.GetTurnServerInfo()
		if err != nil {
			return err
		}
		fmt.Printf("username: %s\npassword: %s\nurls: %s\n", info.Username, info.Password, strings.Join(info.URLs, " "))
		return nil
	},
}
