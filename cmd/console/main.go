// Package main is the console's entry point: loads configuration, derives
// this operator's signing keys, wires a runtime against a jurisdiction
// adapter, and hands control to the cobra command tree in cmd/cli.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"channel-console/cmd/cli"
	pkgconfig "channel-console/pkg/config"
	"channel-console/pkg/utils"

	core "channel-console/core"
)

func main() {
	_ = godotenv.Load()

	cfg, err := pkgconfig.LoadFromEnv()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	configureLogging(cfg.Logging.Level)

	entityIdHex := utils.EnvOrDefault("CHANNEL_ENTITY_ID", cfg.Entity.Id)
	if entityIdHex == "" {
		log.Fatal("entity.id is not configured (set entity.id or CHANNEL_ENTITY_ID)")
	}
	entityId, err := core.ParseEntityId(entityIdHex)
	if err != nil {
		log.WithError(err).Fatal("parse entity id")
	}

	mnemonic := os.Getenv(cfg.Entity.MnemonicEnv)
	var ks *core.HDKeyStore
	if mnemonic != "" {
		ks, err = core.NewHDKeyStoreFromMnemonic(mnemonic, "", nil)
	} else {
		ks, _, err = core.NewRandomHDKeyStore(256, nil)
	}
	if err != nil {
		log.WithError(err).Fatal("initialise keystore")
	}
	crypto := core.NewEd25519Crypto(ks)
	clock := core.NewRealClock()

	adapter := core.NewStubJurisdictionAdapter()
	rt := core.NewRuntime(adapter, crypto, clock)

	tokens := core.NewStaticTokenRegistry(nil)
	self := core.NewEntityState(entityId, core.PrimarySignerFor(entityId), crypto, ks, clock, tokens)
	rt.RegisterEntity(self)

	cli.App = rt
	cli.SelfEntity = entityId

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
