// Live smoke test for the Circl Go SDK.
//
// Runs against a real backend:
//   - NewClient / Config (explicit + env var fallback)
//   - Connect / Disconnect / Close and the sentinel errors
//   - join_conversation and typing frames, seen from a second user
//   - api: CurrentUser, IsFollowing, Followers
//   - session: Login / Restore / Logout
//
// Prerequisites:
//   - CIRCL_API_URL pointing at a running backend
//   - CIRCL_TOKEN / CIRCL_USER_ID for the first user
//   - CIRCL_PEER_TOKEN / CIRCL_PEER_USER_ID for a second user (optional)
//   - CIRCL_TEST_CONVERSATION shared by both users (optional)
//
// Usage:
//
//	go run ./tests/smoke
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	circl "github.com/circl/go-sdk"
	"github.com/circl/go-sdk/api"
	"github.com/circl/go-sdk/credstore"
	"github.com/circl/go-sdk/session"
	"go.uber.org/zap"
)

type smokeConfig struct {
	APIURL         string `env:"CIRCL_API_URL,required"`
	Token          string `env:"CIRCL_TOKEN,required"`
	UserID         string `env:"CIRCL_USER_ID,required"`
	PeerToken      string `env:"CIRCL_PEER_TOKEN"`
	PeerUserID     string `env:"CIRCL_PEER_USER_ID"`
	ConversationID string `env:"CIRCL_TEST_CONVERSATION"`
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

var (
	passed  int
	failed  int
	skipped int
)

func section(name string) {
	fmt.Printf("\n%s%s-- %s --%s\n\n", colorBold, colorCyan, name, colorReset)
}

func pass(name string) {
	fmt.Printf("    %s%s PASS %s %s\n", colorBold, colorGreen, colorReset, name)
	passed++
}

func fail(name string, reason string) {
	fmt.Printf("    %s%s FAIL %s %s\n", colorBold, colorRed, colorReset, name)
	fmt.Printf("         %s%s%s\n", colorDim, reason, colorReset)
	failed++
}

func skip(name string, reason string) {
	fmt.Printf("    %s%s SKIP %s %s\n", colorBold, colorYellow, colorReset, name)
	fmt.Printf("         %s%s%s\n", colorDim, reason, colorReset)
	skipped++
}

func storeWith(token, userID string) *credstore.Memory {
	s := credstore.NewMemory()
	s.Set(context.Background(), credstore.KeyToken, token)
	s.Set(context.Background(), credstore.KeyUserID, userID)
	return s
}

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := env.ParseAs[smokeConfig]()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	fmt.Printf("\n%s%s=== Circl Go SDK smoke test ===%s\n", colorBold, colorCyan, colorReset)
	fmt.Printf("%sAPI: %s%s\n", colorDim, cfg.APIURL, colorReset)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	aliceStore := storeWith(cfg.Token, cfg.UserID)

	section("Connection")

	fmt.Println("  [1] Send before Connect")
	alice, err := circl.NewClient(circl.Config{
		BaseURL:     cfg.APIURL,
		Credentials: aliceStore,
		Logger:      logger.Named("alice"),
	})
	if err != nil {
		log.Fatalf("  FATAL: NewClient(alice): %v", err)
	}
	defer alice.Close()
	if err := alice.JoinConversation(ctx, "none"); errors.Is(err, circl.ErrNotConnected) {
		pass("ErrNotConnected before Connect")
	} else {
		fail("send before connect", fmt.Sprintf("got %v", err))
	}

	fmt.Println("  [2] Connect")
	if err := alice.Connect(ctx); err != nil {
		log.Fatalf("  FATAL: alice.Connect(): %v", err)
	}
	pass(fmt.Sprintf("status = %s", alice.Status()))

	fmt.Println("  [3] Second Connect is refused")
	if err := alice.Connect(ctx); errors.Is(err, circl.ErrAlreadyConnected) {
		pass("ErrAlreadyConnected")
	} else {
		fail("double connect", fmt.Sprintf("got %v", err))
	}

	fmt.Println("  [4] Config from environment variables")
	os.Setenv("CIRCL_API_URL", cfg.APIURL)
	envClient, err := circl.NewClient(circl.Config{Credentials: aliceStore})
	if err != nil {
		fail("config env", err.Error())
	} else if err := envClient.Connect(ctx); err != nil {
		fail("config env", fmt.Sprintf("Connect: %v", err))
	} else {
		pass("connected with BaseURL from CIRCL_API_URL")
		envClient.Close()
	}

	fmt.Println("  [5] Missing credential")
	empty, _ := circl.NewClient(circl.Config{BaseURL: cfg.APIURL, Credentials: credstore.NewMemory()})
	if err := empty.Connect(ctx); errors.Is(err, circl.ErrNoCredential) {
		pass("ErrNoCredential")
	} else {
		fail("missing credential", fmt.Sprintf("got %v", err))
	}
	empty.Close()

	section("Conversations")

	switch {
	case cfg.ConversationID == "":
		skip("typing round trip", "CIRCL_TEST_CONVERSATION not set")
	case cfg.PeerToken == "":
		skip("typing round trip", "CIRCL_PEER_TOKEN not set")
	default:
		fmt.Println("  [6] Typing indicator reaches the peer")
		bob, err := circl.NewClient(circl.Config{
			BaseURL:     cfg.APIURL,
			Credentials: storeWith(cfg.PeerToken, cfg.PeerUserID),
			Logger:      logger.Named("bob"),
		})
		if err != nil {
			log.Fatalf("  FATAL: NewClient(bob): %v", err)
		}
		defer bob.Close()

		typing := make(chan circl.TypingUpdate, 4)
		bob.OnTypingUpdate(func(u circl.TypingUpdate) { typing <- u })

		if err := bob.Connect(ctx); err != nil {
			log.Fatalf("  FATAL: bob.Connect(): %v", err)
		}
		bob.JoinConversation(ctx, cfg.ConversationID)
		alice.JoinConversation(ctx, cfg.ConversationID)
		time.Sleep(500 * time.Millisecond)

		alice.StartTyping(ctx, cfg.ConversationID)
		select {
		case u := <-typing:
			if u.ConversationID == cfg.ConversationID && u.IsTyping {
				pass(fmt.Sprintf("bob saw %s typing", u.UserID))
			} else {
				fail("typing update", fmt.Sprintf("got %+v", u))
			}
		case <-time.After(5 * time.Second):
			fail("typing update", "nothing received within 5s")
		}
		alice.StopTyping(ctx, cfg.ConversationID)
		alice.LeaveConversation(ctx, cfg.ConversationID)
	}

	section("REST")

	rest, err := api.New(api.Config{BaseURL: cfg.APIURL, Logger: logger.Named("api")}, aliceStore)
	if err != nil {
		log.Fatalf("  FATAL: api.New: %v", err)
	}

	fmt.Println("  [7] CurrentUser")
	me, err := rest.CurrentUser(ctx)
	if err != nil {
		fail("CurrentUser", err.Error())
	} else if me.ID == cfg.UserID {
		pass(fmt.Sprintf("user %s (%s)", me.UserName, me.ID))
	} else {
		fail("CurrentUser", fmt.Sprintf("id %q, want %q", me.ID, cfg.UserID))
	}

	fmt.Println("  [8] Followers page")
	if page, err := rest.Followers(ctx, cfg.UserID, 1, 5); err != nil {
		fail("Followers", err.Error())
	} else {
		pass(fmt.Sprintf("%d of %d followers", len(page.Users), page.Pagination.Total))
	}

	if cfg.PeerUserID != "" {
		fmt.Println("  [9] Follow status")
		if following, err := rest.IsFollowing(ctx, cfg.PeerUserID); err != nil {
			fail("IsFollowing", err.Error())
		} else {
			pass(fmt.Sprintf("following peer: %v", following))
		}
	} else {
		skip("follow status", "CIRCL_PEER_USER_ID not set")
	}

	section("Session")

	fmt.Println("  [10] Login, Restore, Logout")
	sessStore := credstore.NewMemory()
	sessClient, _ := circl.NewClient(circl.Config{BaseURL: cfg.APIURL, Credentials: sessStore})
	sessAPI, _ := api.New(api.Config{BaseURL: cfg.APIURL}, sessStore)
	sess, _ := session.New(session.Config{Store: sessStore, API: sessAPI, Realtime: sessClient})

	if err := sess.Login(ctx, cfg.UserID, cfg.Token); err != nil {
		fail("Login", err.Error())
	} else if !sessClient.IsConnected() {
		fail("Login", "realtime not connected after login")
	} else {
		pass("logged in and connected")
	}

	restored, _ := session.New(session.Config{Store: sessStore, API: sessAPI})
	if u, err := restored.Restore(ctx); err != nil || u == nil {
		fail("Restore", fmt.Sprintf("user=%v err=%v", u, err))
	} else {
		pass("restored from stored credentials")
	}

	if err := sess.Logout(ctx); err != nil {
		fail("Logout", err.Error())
	} else if sessClient.IsConnected() {
		fail("Logout", "realtime still connected")
	} else {
		pass("logged out and disconnected")
	}
	sessClient.Close()

	fmt.Println("  [11] Close is final")
	alice.Close()
	if err := alice.Connect(ctx); errors.Is(err, circl.ErrClientClosed) {
		pass("ErrClientClosed after Close")
	} else {
		fail("closed client", fmt.Sprintf("got %v", err))
	}

	fmt.Printf("\n%s=== %d passed, %d failed, %d skipped ===%s\n", colorBold, passed, failed, skipped, colorReset)
	if failed > 0 {
		os.Exit(1)
	}
}
