// circl-listen connects to the Circl realtime endpoint, joins conversations
// and logs every event it receives.
//
// Configuration via environment variables:
//
//	CIRCL_API_URL         API base URL (the socket URL is derived from it)
//	CIRCL_TOKEN           bearer token; when unset the stored session is restored
//	CIRCL_USER_ID         user id stored alongside CIRCL_TOKEN
//	CIRCL_STORE_DRIVER    memory, sqlite, postgres or redis (default sqlite)
//	CIRCL_STORE_DSN       store location (default ./circl.db)
//	CIRCL_REDIS_ADDR      redis address when the driver is redis
//	CIRCL_LOG_LEVEL       debug, info, warn or error
//	CIRCL_LOGOUT_ON_EXIT  forget the stored session on shutdown
//
// Usage:
//
//	CIRCL_API_URL=https://api.circl.example \
//	CIRCL_TOKEN=eyJhbGciOi... CIRCL_USER_ID=u1 \
//	  go run ./cmd/circl-listen conv-1 conv-2
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	circl "github.com/circl/go-sdk"
	"github.com/circl/go-sdk/api"
	"github.com/circl/go-sdk/credstore"
	"github.com/circl/go-sdk/session"
	"go.uber.org/zap"
)

type cliConfig struct {
	Token        string `env:"CIRCL_TOKEN"`
	UserID       string `env:"CIRCL_USER_ID"`
	StoreDriver  string `env:"CIRCL_STORE_DRIVER" envDefault:"sqlite"`
	StoreDSN     string `env:"CIRCL_STORE_DSN" envDefault:"circl.db"`
	RedisAddr    string `env:"CIRCL_REDIS_ADDR"`
	LogLevel     string `env:"CIRCL_LOG_LEVEL" envDefault:"info"`
	LogoutOnExit bool   `env:"CIRCL_LOGOUT_ON_EXIT"`
}

func main() {
	cfg, err := env.ParseAs[cliConfig]()
	if err != nil {
		newLogger("info").Fatal("parse env", zap.Error(err))
	}

	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := credstore.Open(ctx, credstore.Config{
		Driver:    cfg.StoreDriver,
		DSN:       cfg.StoreDSN,
		RedisAddr: cfg.RedisAddr,
	})
	if err != nil {
		log.Fatal("open credential store", zap.Error(err))
	}
	defer store.Close()

	rest, err := api.New(api.Config{Logger: log.Named("api")}, store)
	if err != nil {
		log.Fatal("api client", zap.Error(err))
	}

	client, err := circl.NewClient(circl.Config{
		Credentials: store,
		Logger:      log.Named("realtime"),
	})
	if err != nil {
		log.Fatal("realtime client", zap.Error(err))
	}
	defer client.Close()

	conversations := os.Args[1:]
	listen(client, log, conversations)

	sess, err := session.New(session.Config{
		Store:    store,
		API:      rest,
		Realtime: client,
		Logger:   log.Named("session"),
	})
	if err != nil {
		log.Fatal("session", zap.Error(err))
	}

	if cfg.Token != "" {
		if cfg.UserID == "" {
			log.Fatal("CIRCL_USER_ID is required with CIRCL_TOKEN")
		}
		if err := sess.Login(ctx, cfg.UserID, cfg.Token); err != nil {
			log.Fatal("login", zap.Error(err))
		}
	} else {
		user, err := sess.Restore(ctx)
		if err != nil {
			log.Fatal("restore session", zap.Error(err))
		}
		if user == nil {
			log.Fatal("no stored session; set CIRCL_TOKEN and CIRCL_USER_ID")
		}
	}

	user := sess.CurrentUser()
	log.Info("listening",
		zap.String("user", user.UserName),
		zap.String("avatar", rest.SecureImageURL(user.ProfileImage)),
		zap.Strings("conversations", conversations),
	)
	join(ctx, client, log, conversations)

	<-ctx.Done()
	log.Info("shutting down")

	if cfg.LogoutOnExit {
		if err := sess.Logout(context.Background()); err != nil {
			log.Warn("logout", zap.Error(err))
		}
	}
}

func listen(client *circl.Client, log *zap.Logger, conversations []string) {
	client.OnTypingUpdate(func(u circl.TypingUpdate) {
		log.Info("typing",
			zap.String("conversation", u.ConversationID),
			zap.String("user", u.UserID),
			zap.Bool("typing", u.IsTyping),
		)
	})
	client.OnNewMessage(func(m circl.NewMessage) {
		log.Info("new message",
			zap.String("conversation", m.ConversationID),
			zap.ByteString("message", m.Message),
		)
	})
	client.OnConversationUpdate(func(u circl.ConversationUpdate) {
		log.Info("conversation update",
			zap.String("conversation", u.ConversationID),
			zap.String("update", u.UpdateType),
			zap.ByteString("data", u.Data),
		)
	})
	client.OnMessage(func(m circl.Message) {
		log.Debug("frame", zap.String("type", m.Type), zap.ByteString("raw", m.Raw()))
	})

	client.OnDisconnect(func(err error) {
		log.Warn("disconnected", zap.Error(err))
	})
	// The server forgets joined rooms with the socket.
	client.OnReconnect(func() {
		join(context.Background(), client, log, conversations)
	})
}

func join(ctx context.Context, client *circl.Client, log *zap.Logger, conversations []string) {
	for _, id := range conversations {
		if err := client.JoinConversation(ctx, id); err != nil {
			log.Warn("join conversation", zap.String("conversation", id), zap.Error(err))
		}
	}
}
