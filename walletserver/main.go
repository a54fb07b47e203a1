package main

// walletserver — the HTTP adapter for the wallet-side transaction
// engine, fronting the same core.Dispatcher cmd/cli drives, over
// go-chi/chi/v5 instead of a terminal. It loads one wallet keystore at
// startup (WALLET_FILE/WALLET_PASSWORD) and keeps a single Runtime/
// Dispatcher alive for the process lifetime, unlike the CLI which opens and
// closes one per invocation.

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/namebasehq/hsd/core"
	"github.com/namebasehq/hsd/pkg/utils"
	"github.com/namebasehq/hsd/walletserver/config"
	"github.com/namebasehq/hsd/walletserver/controllers"
	"github.com/namebasehq/hsd/walletserver/routes"
	"github.com/namebasehq/hsd/walletserver/services"
)

func main() {
	_ = godotenv.Load()
	logger := logrus.StandardLogger()
	if lvl, err := logrus.ParseLevel(utils.EnvOrDefault("LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(lvl)
	}
	core.SetWalletLogger(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}

	walletFile := utils.EnvOrDefault("WALLET_FILE", "")
	walletPwd := utils.EnvOrDefault("WALLET_PASSWORD", "")
	if walletFile == "" || walletPwd == "" {
		logger.Fatal("WALLET_FILE and WALLET_PASSWORD must be set")
	}
	wallet, err := core.LoadKeystoreWallet(walletFile, walletPwd, logger)
	if err != nil {
		logger.Fatalf("load wallet: %v", err)
	}

	rt, err := services.NewRuntime(cfg.DataDir, wallet, logger)
	if err != nil {
		logger.Fatalf("open runtime: %v", err)
	}

	svc := services.NewService()
	wc := controllers.NewWalletController(svc, rt)
	nc := controllers.NewNameController(rt)
	ac := controllers.NewAdminController(rt)

	r := chi.NewRouter()
	routes.Register(r, wc, nc, ac)

	logger.Infof("wallet server listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Fatal(err)
	}
}
