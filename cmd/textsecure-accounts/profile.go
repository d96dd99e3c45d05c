package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ignoreThrottlingFlag = "ignore-throttling"
	backgroundFlag       = "background"
)

func init() {
	profileCmd.Flags().Bool(ignoreThrottlingFlag, false,
		"Fetch even when the profile was fetched recently")
	viper.BindPFlag(ignoreThrottlingFlag, profileCmd.Flags().Lookup(ignoreThrottlingFlag))

	profileCmd.Flags().Bool(backgroundFlag, false,
		"Refresh the profiles with retries and update the local contacts")
	viper.BindPFlag(backgroundFlag, profileCmd.Flags().Lookup(backgroundFlag))

	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile <recipient>...",
	Short: "Fetches the profiles of the given recipients",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		if viper.GetBool(backgroundFlag) {
			a.fetcher.Run(args)
			a.fetcher.Wait()
			for _, id := range args {
				if c, ok := a.contacts.Get(id); ok {
					fmt.Printf("%s\t%s\n", c.ID(), c.Name)
				}
			}
			return nil
		}

		for _, id := range args {
			profile, err := a.fetcher.GetProfile(id, viper.GetBool(ignoreThrottlingFlag))
			if err != nil {
				return err
			}
			fmt.Printf("%s\tidentityKey=%x\tavatar=%s\n", profile.RecipientID, profile.IdentityKey, profile.AvatarURLPath)
		}
		return nil
	},
}
