package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/soulmint/soulmint/pkg/gate"
	"github.com/soulmint/soulmint/pkg/providers"
)

var chatLanguage string

func init() {
	chatCmd.Flags().StringVarP(&chatLanguage, "language", "l", "",
		"force a language code instead of auto-detecting (en, es, ja, ...)")
}

var chatCmd = &cobra.Command{
	Use:   "chat <soul-id>",
	Short: "Chat with a soul from the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.store.Close()

		soulID := args[0]
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "you> ",
			InterruptPrompt: "^C",
		})
		if err != nil {
			return err
		}
		defer rl.Close()

		fmt.Printf("Chatting with soul %s. /lang <code> switches language, /quit exits.\n", soulID)

		for {
			line, err := rl.Readline()
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/quit" || line == "/exit" {
				return nil
			}
			if code, ok := strings.CutPrefix(line, "/lang "); ok {
				chatLanguage = strings.TrimSpace(code)
				fmt.Printf("language set to %q\n", chatLanguage)
				continue
			}

			printTurn(eng.gate.Handle(cmd.Context(), soulID, line, chatLanguage))
		}
	},
}

func printTurn(result *gate.ChatResult, err error) {
	switch {
	case err == nil:
	case gate.IsPolicyRejection(err):
		fmt.Printf("[locked] %s\n", err)
		return
	case providers.IsTransient(err) || errors.Is(err, context.DeadlineExceeded):
		fmt.Println("[busy] the companion did not answer in time, try again")
		return
	default:
		fmt.Printf("[error] %s\n", err)
		return
	}

	fmt.Printf("soul> %s\n", result.Reply)
	fmt.Printf("      +%d exp, level %d (%s)", result.ExpGained, result.Level, result.Rarity.DisplayName())
	if result.LeveledUp {
		fmt.Print("  LEVEL UP!")
	}
	if result.EvolutionTriggered {
		fmt.Print("  ** evolved **")
	}
	fmt.Println()
}
