// bitescout-watch logs in, follows the realtime channel and prints every
// notification as it arrives. With --restaurant it also reports whether the
// user currently holds approved access to that restaurant.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitescout/BiteScoutAPI/sdk/client"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var serverURL string
	var username string
	var password string
	var restaurantID string
	var verbose bool

	flagSet := pflag.NewFlagSet("bitescout-watch", pflag.ContinueOnError)
	flagSet.StringVarP(&serverURL, "server", "s", "http://localhost:8080", "BiteScout API base URL")
	flagSet.StringVarP(&username, "username", "u", "", "account to log in as")
	flagSet.StringVar(&password, "password", "", "password (default: $BITESCOUT_PASSWORD)")
	flagSet.StringVarP(&restaurantID, "restaurant", "r", "", "report access to this restaurant id after every change")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log reconnects")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if username == "" {
		return fmt.Errorf("--username is required")
	}
	if password == "" {
		password = os.Getenv("BITESCOUT_PASSWORD")
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := client.New(serverURL)
	if err != nil {
		return err
	}
	user, err := api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	log.Infof("logged in as %s (%s)", user.Username, user.ID)

	store := client.NewStore(api, user.ID)
	if restaurantID != "" {
		allowed := false
		store.OnChange(func() {
			if now := store.Gate(restaurantID); now != allowed {
				allowed = now
				log.Infof("access to restaurant %s: %s", restaurantID, gateLabel(now))
			}
		})
	}

	stream := client.NewStream(api, store, client.StreamConfig{
		OnNotification: func(n client.Notification) {
			fmt.Printf("%s  %s: %s  (unread: %d)\n", n.CreatedAt.Local().Format(time.DateTime), n.Title, n.Message, store.UnreadCount())
		},
		OnDisconnect: func(errSession error, retryIn time.Duration) {
			log.WithError(errSession).Debugf("realtime disconnected, retrying in %s", retryIn)
		},
	})
	return stream.Run(ctx)
}

func gateLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
