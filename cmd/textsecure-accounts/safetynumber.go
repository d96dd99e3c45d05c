package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/fingerprint"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(safetyNumberCmd)
}

var safetyNumberCmd = &cobra.Command{
	Use:   "safety-number <recipient>",
	Short: "Prints the safety number shared with a contact whose identity key is known",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		c, ok := a.contacts.Get(args[0])
		if !ok || len(c.IdentityKey) == 0 {
			return errors.Errorf("no identity key known for %s, fetch the profile first", args[0])
		}
		local := a.store.LocalNumber()
		if local == "" {
			return errors.New("account is not registered")
		}
		identity, err := a.prekeys.IdentityKey()
		if err != nil {
			return err
		}
		blocks, err := fingerprint.SafetyNumber(local, identity.PublicKey[:], c.ID(), c.IdentityKey)
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(blocks, " "))
		return nil
	},
}
