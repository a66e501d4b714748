// Package circl provides a Go SDK for the Circl realtime backend.
//
// The SDK owns a single authenticated WebSocket connection, reconnects it when
// the server drops it, and fans inbound frames out to typed listeners:
//
//   - OnMessage: every inbound frame
//   - OnTypingUpdate: "typing_update" frames
//   - OnNewMessage: "new_message" frames
//   - OnConversationUpdate: "conversation_update" frames
//
// Outbound frames are sent with Send or the conversation helpers
// (JoinConversation, LeaveConversation, StartTyping, StopTyping). Frames sent
// while disconnected are dropped, not queued.
//
// Basic usage:
//
//	store := credstore.NewMemory()
//	_ = store.Set(ctx, credstore.KeyToken, token)
//
//	client, err := circl.NewClient(circl.Config{
//	    BaseURL:     "https://api.circl.example",
//	    Credentials: store,
//	    Logger:      logger,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sub := client.OnTypingUpdate(func(u circl.TypingUpdate) {
//	    fmt.Printf("%s typing in %s: %v\n", u.UserID, u.ConversationID, u.IsTyping)
//	})
//	defer sub.Unsubscribe()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.JoinConversation(ctx, "c1")
package circl
