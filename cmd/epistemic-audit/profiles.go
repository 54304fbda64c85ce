// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/epistemic-audit/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [country]",
	Short: "Show the geographic-linguistic profile used to seed queries",
	Long: `Profiles lists the countries known to the knowledge profile. Given a
country, it shows the primary research languages, the foreign research
traditions working there, and the access tier of each relevant language.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfiles,
}

func init() {
	profilesCmd.Flags().String("profile", "", "knowledge profile YAML (default: built-in)")

	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	prof, err := loadProfile()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		for _, name := range prof.Countries() {
			fmt.Fprintf(os.Stdout, "%-16s  %s\n", name, strings.Join(prof.RelevantLanguages(name), ", "))
		}
		return nil
	}

	c, ok := prof.Country(args[0])
	if !ok {
		return fmt.Errorf("country %q is not in the profile", args[0])
	}
	fmt.Fprintf(os.Stdout, "Country:    %s\n", c.Name)
	fmt.Fprintf(os.Stdout, "Primary:    %s\n", strings.Join(c.Primary, ", "))
	fmt.Fprintf(os.Stdout, "Relevant:   %s\n", strings.Join(prof.RelevantLanguages(c.Name), ", "))

	if len(c.Traditions) > 0 {
		langs := make([]string, 0, len(c.Traditions))
		for l := range c.Traditions {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		fmt.Fprintln(os.Stdout, "\nForeign traditions:")
		for _, l := range langs {
			fmt.Fprintf(os.Stdout, "  %-4s  %s\n", l, c.Traditions[l])
		}
	}

	fmt.Fprintln(os.Stdout, "\nAccess:")
	for _, l := range prof.RelevantLanguages(c.Name) {
		tier := profile.TierOpen
		if e, ok := prof.Ecosystem(l); ok {
			tier = e.Tier
			fmt.Fprintf(os.Stdout, "  %-4s  %-16s  gated %.0f%% (%s)\n", l, tier, e.GatedShare*100, strings.Join(e.GatedDatabases, ", "))
			continue
		}
		fmt.Fprintf(os.Stdout, "  %-4s  %s\n", l, tier)
	}
	return nil
}
