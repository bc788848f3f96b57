package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soulmint/soulmint/pkg/language"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/skills"
)

var soulCmd = &cobra.Command{
	Use:   "soul",
	Short: "Inspect and administer souls",
}

var (
	overrideLevel int
	overrideExp   int
	overrideTier  string
	listPrice     string
)

func init() {
	soulOverrideCmd.Flags().IntVar(&overrideLevel, "level", 0, "level to set")
	soulOverrideCmd.Flags().IntVar(&overrideExp, "exp", -1, "experience to set (defaults to the level's threshold)")
	soulOverrideCmd.Flags().StringVar(&overrideTier, "tier", "", "rarity tier pin (common, rare, epic, legendary)")

	soulListCmd.Flags().StringVar(&listPrice, "price", "", "asking price to record with the listing")

	soulCmd.AddCommand(soulShowCmd)
	soulCmd.AddCommand(soulOverrideCmd)
	soulCmd.AddCommand(soulListCmd)
	soulCmd.AddCommand(soulUnlistCmd)
	soulCmd.AddCommand(soulBackfillCmd)
}

var soulShowCmd = &cobra.Command{
	Use:   "show <soul-id>",
	Short: "Print a soul's progression state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, listings, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		s, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Soul %s\n", s.ID)
		fmt.Printf("  Level:       %d (%d exp)\n", s.Level, s.Experience)
		fmt.Printf("  Rarity:      %s\n", s.Rarity.DisplayName())
		fmt.Printf("  Personality: %s\n", s.Personality)
		if s.Tagline != "" {
			fmt.Printf("  Tagline:     %s\n", s.Tagline)
		}
		fmt.Printf("  Skills:      %s\n", strings.Join(s.Skills, ", "))
		fmt.Printf("  Languages:   %s\n", strings.Join(s.UnlockedLanguages, ", "))
		if next, ok := skills.NextUnlock(s.Level); ok {
			fmt.Printf("  Next skill:  %s at level %d\n", next.DisplayName, next.UnlockLevel)
		}
		if next, ok := language.NextUnlock(s.Level); ok {
			fmt.Printf("  Next lang:   %s at level %d\n", next.DisplayName, next.UnlockLevel)
		}
		listed, err := listings.IsListed(cmd.Context(), s.ID)
		if err != nil {
			return err
		}
		if listed || s.IsListed {
			fmt.Println("  Listed:      yes (chat frozen)")
		}
		return nil
	},
}

var soulOverrideCmd = &cobra.Command{
	Use:   "override <soul-id>",
	Short: "Set a soul's level, experience or tier directly",
	Long: `Overrides bypass the experience accountant: skills and languages are
re-derived from the new level, and a tier above the level's natural band
is kept as a pin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if overrideLevel < 1 {
			return fmt.Errorf("--level must be at least 1")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, _, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		table := progression.NewTable(cfg.Progression.ExtrapolationStep)
		exp := overrideExp
		if exp < 0 {
			exp = table.ThresholdForLevel(overrideLevel)
		}
		tier := table.RarityForLevel(overrideLevel)
		if overrideTier != "" {
			tier, err = progression.ParseRarity(overrideTier)
			if err != nil {
				return err
			}
		}

		s, err := store.OverrideProgress(cmd.Context(), args[0], overrideLevel, exp, tier)
		if err != nil {
			return err
		}
		fmt.Printf("soul %s is now level %d, %s, %d exp\n",
			s.ID, s.Level, s.Rarity.DisplayName(), s.Experience)
		return nil
	},
}

var soulListCmd = &cobra.Command{
	Use:   "list <soul-id>",
	Short: "List a soul's token on the marketplace (freezes chat)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, listings, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := listings.List(cmd.Context(), args[0], listPrice); err != nil {
			return err
		}
		fmt.Printf("soul %s listed; chat is frozen until it is unlisted\n", args[0])
		return nil
	},
}

var soulUnlistCmd = &cobra.Command{
	Use:   "unlist <soul-id>",
	Short: "Remove a soul's marketplace listing (unfreezes chat)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, listings, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := listings.Unlist(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("soul %s unlisted\n", args[0])
		return nil
	},
}

var soulBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run one evolution backfill pass now",
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

		eng.backfill.RunOnce(cmd.Context())
		fmt.Println("backfill pass complete")
		return nil
	},
}
