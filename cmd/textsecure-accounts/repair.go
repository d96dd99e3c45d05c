package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/signal-golang/textsecure-accounts/repair"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(repairCmd)
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Polls the own profile and uploads pre-keys when the server lost the identity key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		job := repair.NewCompleteRegistrationFixerJob(a.fetcher, a.prekeys, a.store, a.cfg.RepairInterval)
		job.Start(func() {
			log.Infoln("[textsecure] account registration is complete")
		})

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		select {
		case <-job.Done():
		case <-sigs:
			job.Stop()
		}
		return nil
	},
}
