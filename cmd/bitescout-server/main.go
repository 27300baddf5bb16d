// bitescout-server runs the BiteScout access API and its realtime channel.
//
// With --migrate it only applies schema migrations. With --create-user it
// inserts an account (for example the first root) and exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitescout/BiteScoutAPI/internal/app"
	"github.com/bitescout/BiteScoutAPI/internal/config"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var migrateOnly bool
	var createUser string
	var password string
	var role string

	flagSet := pflag.NewFlagSet("bitescout-server", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: $BITESCOUT_CONFIG or ./config.yaml)")
	flagSet.BoolVar(&migrateOnly, "migrate", false, "apply database migrations and exit")
	flagSet.StringVar(&createUser, "create-user", "", "create a user with this username and exit")
	flagSet.StringVar(&password, "password", "", "password for --create-user (default: $BITESCOUT_PASSWORD)")
	flagSet.StringVar(&role, "role", string(models.RoleUser), "global role for --create-user: user, admin or root")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	appCfg := config.AppConfig{ConfigPath: configPath}

	switch {
	case migrateOnly:
		if err := app.Migrate(ctx, appCfg); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	case createUser != "":
		if password == "" {
			password = os.Getenv("BITESCOUT_PASSWORD")
		}
		user, err := app.CreateUser(ctx, appCfg, app.CreateUserParams{
			Username: createUser,
			Password: password,
			Role:     models.Role(role),
		})
		if err != nil {
			return err
		}
		log.Infof("created user %s (id=%s role=%s)", user.Username, user.ID, user.Role)
		return nil
	default:
		return app.RunServer(ctx, appCfg)
	}
}
