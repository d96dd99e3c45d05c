package main

import (
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const profileKeyFlag = "profile-key"

func init() {
	contactSetCmd.Flags().String(profileKeyFlag, "",
		"Base64 profile key used to decrypt the contact's profile name")
	viper.BindPFlag(profileKeyFlag, contactSetCmd.Flags().Lookup(profileKeyFlag))

	contactCmd.AddCommand(contactSetCmd)
	contactCmd.AddCommand(contactShowCmd)
	rootCmd.AddCommand(contactCmd)
}

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manages the local contacts",
}

var contactSetCmd = &cobra.Command{
	Use:   "set <recipient>",
	Short: "Adds a contact or updates its profile key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		c, _ := a.contacts.Get(args[0])
		if c.ID() == "" {
			id := utils.NormalizeRecipientID(args[0])
			if utils.IsUUID(id) {
				c.UUID = id
			} else {
				c.Tel = id
			}
		}
		if k := viper.GetString(profileKeyFlag); k != "" {
			key, err := base64.StdEncoding.DecodeString(k)
			if err != nil {
				return errors.Wrap(err, "decode profile key")
			}
			c.ProfileKey = key
		}
		return a.contacts.Put(c)
	},
}

var contactShowCmd = &cobra.Command{
	Use:   "show <recipient>",
	Short: "Prints a contact and the devices it has sessions with",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		c, ok := a.contacts.Get(args[0])
		if !ok {
			return errors.Errorf("unknown contact %s", args[0])
		}
		devices, err := a.sessions.DeviceIDs(c.ID())
		if err != nil {
			return err
		}
		fmt.Printf("id: %s\nname: %s\navatar: %s\nidentityKey: %x\nsessions: %v\n",
			c.ID(), c.Name, c.AvatarURLPath, c.IdentityKey, devices)
		return nil
	},
}
