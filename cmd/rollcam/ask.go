package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rollcam/rollcam/internal/rollcam/app"
	"github.com/rollcam/rollcam/internal/rollcam/commands"
	"github.com/rollcam/rollcam/internal/rollcam/gateway"
)

var (
	askSender string
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Run one message through the dispatcher and print the reply",
	Example: `  rollcam ask '!'
  rollcam ask '(L1)最新影像五張'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Offline: no sync loop, no listener.
		cfg.Matrix.Homeserver = ""
		cfg.HTTPAddr = ""

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Stop()

		reply := a.Processor().Process(cmd.Context(), "cli", commands.Inbound{
			Text:   strings.Join(args, " "),
			Sender: askSender,
			Room:   "cli",
		})
		if askJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(gateway.RenderReply(reply))
		}
		printReply(cmd.OutOrStdout(), reply)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSender, "sender", "cli", "sender id used for membership and audit")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the reply as webhook JSON messages")
}

func printReply(w io.Writer, reply commands.Reply) {
	switch reply.Kind {
	case commands.ReplyNone:
		fmt.Fprintln(w, "(no reply)")
	case commands.ReplyText:
		fmt.Fprintln(w, reply.Text)
	case commands.ReplyImages:
		for _, u := range reply.Images {
			fmt.Fprintln(w, u)
		}
	case commands.ReplyMenu:
		m := reply.Menu
		if m.Title != "" {
			fmt.Fprintf(w, "%s - %s\n", m.Title, m.Text)
		}
		fmt.Fprintf(w, "[%s]\n", m.AltText)
		for i, page := range m.Pages {
			fmt.Fprintf(w, "page %d\n", i+1)
			for _, o := range page.Options {
				fmt.Fprintf(w, "  %-24s -> %s\n", o.Label, o.Payload)
			}
		}
	}
}
