// Command textsecure-accounts registers an account with a Signal server and
// keeps its profile and push tokens in order.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	accounts "github.com/signal-golang/textsecure-accounts"
	"github.com/signal-golang/textsecure-accounts/config"
	"github.com/signal-golang/textsecure-accounts/contacts"
	"github.com/signal-golang/textsecure-accounts/prekeys"
	"github.com/signal-golang/textsecure-accounts/profiles"
	"github.com/signal-golang/textsecure-accounts/push"
	"github.com/signal-golang/textsecure-accounts/pushbridge"
	"github.com/signal-golang/textsecure-accounts/rootCa"
	"github.com/signal-golang/textsecure-accounts/sessions"
	"github.com/signal-golang/textsecure-accounts/transport"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFlag   = "config"
	storageFlag  = "storage"
	logLevelFlag = "logLevel"
	debugFlag    = "debug"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "textsecure-accounts",
	Short:        "Registers and maintains a textsecure account",
	Long:         `Registers a phone number with a Signal server, uploads push tokens and keeps the account profile complete`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP(configFlag, "c", "config.yml",
		"Path of the account config file")
	viper.BindPFlag(configFlag, rootCmd.PersistentFlags().Lookup(configFlag))

	rootCmd.PersistentFlags().StringP(storageFlag, "s", "",
		"Overrides the storage directory of the config file")
	viper.BindPFlag(storageFlag, rootCmd.PersistentFlags().Lookup(storageFlag))

	rootCmd.PersistentFlags().StringP(logLevelFlag, "v", "",
		"Log level, one of debug, info, warn or error")
	viper.BindPFlag(logLevelFlag, rootCmd.PersistentFlags().Lookup(logLevelFlag))

	rootCmd.PersistentFlags().Bool(debugFlag, false,
		"Disables profile fetch throttling")
	viper.BindPFlag(debugFlag, rootCmd.PersistentFlags().Lookup(debugFlag))
}

func initConfig() {
	viper.SetEnvPrefix("TEXTSECURE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// app is the wired account stack.
type app struct {
	cfg        *config.Config
	store      *accounts.ConfigAccountStore
	transport  transport.Transporter
	bridge     *pushbridge.Bridge
	registrar  *push.Registrar
	manager    *accounts.AccountManager
	contacts   *contacts.Store
	sessions   *sessions.Store
	fetcher    *profiles.Fetcher
	dates      profiles.FetchDateStore
	prekeys    *prekeys.Manager
	metricsSrv *http.Server
}

func loadApp() (*app, error) {
	cfgFile := viper.GetString(configFlag)
	cfg, err := accounts.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if dir := viper.GetString(storageFlag); dir != "" {
		cfg.StorageDir = dir
	}
	if level := viper.GetString(logLevelFlag); level != "" {
		cfg.LogLevel = level
	}
	if viper.GetBool(debugFlag) {
		cfg.Debug = true
	}
	accounts.SetupLogging(cfg)

	if err := os.MkdirAll(cfg.StorageDir, 0700); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.store = accounts.NewConfigAccountStore(cfgFile, cfg)
	info := a.store.RegistrationInfo()

	rootCAs := rootCa.NewCertPool(cfg.RootCA)
	a.transport = transport.NewHTTPTransporter(cfg.Server, cfg.Tel, info.Password, cfg.UserAgent, cfg.ProxyServer, rootCAs)

	a.bridge = pushbridge.New(cfg.PushBridge, rootCAs)
	a.registrar = push.NewRegistrar(a.bridge, cfg.PushTokenTimeout)
	a.bridge.SetCallbacks(a.registrar)
	a.manager = accounts.NewAccountManager(a.transport, a.registrar, a.store)

	a.contacts, err = contacts.Open(filepath.Join(cfg.StorageDir, "contacts.yml"))
	if err != nil {
		return nil, err
	}
	a.sessions, err = sessions.NewStore(cfg.StorageDir)
	if err != nil {
		return nil, err
	}
	opts := profiles.OptionsFromConfig(cfg)
	a.dates = opts.Dates
	a.fetcher = profiles.NewFetcher(a.transport, a.contacts, a.contacts, a.sessions, opts)
	a.prekeys = prekeys.NewManager(a.transport, cfg.StorageDir)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("[textsecure] metrics endpoint stopped")
			}
		}()
	}
	return a, nil
}

// startPushBridge connects to the push distributor in the background.
func (a *app) startPushBridge() {
	go a.bridge.StartListening()
}

func (a *app) close() {
	if err := a.bridge.Stop(); err != nil && err != pushbridge.ErrNotListening {
		log.Debugln("[textsecure] push bridge stop", err)
	}
	a.fetcher.Wait()
	if c, ok := a.dates.(interface{ Close() error }); ok {
		c.Close()
	}
	if a.metricsSrv != nil {
		a.metricsSrv.Close()
	}
}
