// Package chat implements a persistent chatbot. Each thread's messages are
// stored as checkpoints in a memory.Saver, so a conversation survives restarts
// when the saver is backed by SQLite or PostgreSQL. Every turn runs the
// client's tool loop, so tools registered on the client are available to the
// model.
//
//	saver, _ := sqlitememory.Open("chatbot.db")
//	agent, _ := chat.New(c, saver)
//	thread := chat.NewThreadID()
//	reply, err := agent.Send(ctx, thread, "Who teaches Potions?")
package chat
