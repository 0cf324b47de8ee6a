package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/patterns/chat"
	"github.com/leofalp/aigoflow/providers/ai"
	"github.com/leofalp/aigoflow/providers/memory/sqlitememory"
	"github.com/leofalp/aigoflow/providers/tool"
	"github.com/leofalp/aigoflow/providers/tool/duckduckgo"
	"github.com/leofalp/aigoflow/providers/tool/hogwarts"
	"github.com/leofalp/aigoflow/providers/tool/wikipedia"
)

type chatFlags struct {
	threadID string
	database string
	tools    bool
	stream   bool
}

func (a *app) chatCommand() *cobra.Command {
	flags := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in a persistent thread",
		Long: `Starts a line-based chat. Every turn is checkpointed in a SQLite database, so
a thread can be continued later with --thread, which first replays its turns.
Type /exit or send EOF to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.threadID, "thread", "", "thread to continue (a new one when empty)")
	cmd.Flags().StringVar(&flags.database, "db", "", "SQLite checkpoint database (default from config)")
	cmd.Flags().BoolVar(&flags.tools, "tools", false, "enable the web search, Wikipedia and Hogwarts tools")
	cmd.Flags().BoolVar(&flags.stream, "stream", false, "stream replies as they are generated")
	return cmd
}

func chatTools() []tool.GenericTool {
	return append([]tool.GenericTool{duckduckgo.NewSearchTool(), wikipedia.NewSearchTool()}, hogwarts.Tools()...)
}

func (a *app) runChat(cmd *cobra.Command, flags *chatFlags) error {
	database := flags.database
	if database == "" {
		database = a.cfg.Chat.Database
	}
	saver, err := sqlitememory.Open(database)
	if err != nil {
		return err
	}
	defer utils.CloseWithLog(saver)

	var options []func(*client.ClientOptions)
	if a.cfg.Chat.SystemPrompt != "" {
		options = append(options, client.WithSystemPrompt(a.cfg.Chat.SystemPrompt))
	}
	if flags.tools {
		options = append(options, client.WithTools(chatTools()...))
	}
	c, err := a.newClient(options...)
	if err != nil {
		return err
	}

	agent, err := chat.New(c, saver, chat.WithLogger(a.logger))
	if err != nil {
		return err
	}

	threadID := flags.threadID
	if threadID == "" {
		threadID = chat.NewThreadID()
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "thread %s\n", threadID)

	if flags.threadID != "" {
		history, err := agent.History(cmd.Context(), threadID)
		if err != nil {
			return err
		}
		for _, entry := range transcript(history) {
			fmt.Fprintf(out, "%s: %s\n", entry.Role, entry.Content)
		}
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		if err := a.chatTurn(cmd, out, agent, threadID, line, flags.stream); err != nil {
			return err
		}
	}
}

func (a *app) chatTurn(cmd *cobra.Command, out io.Writer, agent *chat.Agent, threadID, line string, stream bool) error {
	if !stream {
		reply, err := agent.Send(cmd.Context(), threadID, line)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, reply)
		return err
	}

	for delta, err := range agent.Stream(cmd.Context(), threadID, line) {
		if err != nil {
			return err
		}
		fmt.Fprint(out, delta)
	}
	_, err := fmt.Fprintln(out)
	return err
}

// transcriptEntry is one visible turn of a stored thread.
type transcriptEntry struct {
	Role    ai.MessageRole `json:"role"`
	Content string         `json:"content"`
}

// transcript keeps the user and assistant turns that carry text, dropping
// tool results and tool-call-only assistant messages.
func transcript(messages []ai.Message) []transcriptEntry {
	entries := make([]transcriptEntry, 0, len(messages))
	for _, message := range messages {
		if message.Role != ai.RoleUser && message.Role != ai.RoleAssistant {
			continue
		}
		if strings.TrimSpace(message.Content) == "" {
			continue
		}
		entries = append(entries, transcriptEntry{Role: message.Role, Content: message.Content})
	}
	return entries
}

func (a *app) historyCommand() *cobra.Command {
	var database, threadID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored turns of a chat thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if threadID == "" {
				return fmt.Errorf("--thread is required")
			}
			if database == "" {
				database = a.cfg.Chat.Database
			}
			saver, err := sqlitememory.Open(database)
			if err != nil {
				return err
			}
			defer utils.CloseWithLog(saver)

			history, err := chat.LoadHistory(cmd.Context(), saver, threadID)
			if err != nil {
				return err
			}

			entries := transcript(history)
			lines := make([]string, len(entries))
			for i, entry := range entries {
				lines[i] = fmt.Sprintf("%s: %s", entry.Role, entry.Content)
			}
			return a.print(cmd.OutOrStdout(), strings.Join(lines, "\n"), entries)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "thread to print")
	cmd.Flags().StringVar(&database, "db", "", "SQLite checkpoint database (default from config)")
	return cmd
}

func (a *app) threadsCommand() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List the chat threads stored in the checkpoint database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if database == "" {
				database = a.cfg.Chat.Database
			}
			saver, err := sqlitememory.Open(database)
			if err != nil {
				return err
			}
			defer utils.CloseWithLog(saver)

			threads, err := saver.Threads(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), strings.Join(threads, "\n"), threads)
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "SQLite checkpoint database (default from config)")
	return cmd
}
