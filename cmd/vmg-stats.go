package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/vmg-to-imap/config"
	"github.com/dhcgn/vmg-to-imap/filter"
	"github.com/dhcgn/vmg-to-imap/stats"
)

var statsCategories = []string{"Number", "Direction", "Month"}

func newVmgStatsCmd() *cobra.Command {
	var (
		reportDir string
		topN      int
	)

	c := &cobra.Command{
		Use:   "vmg-stats [directory]",
		Short: "Analyse a directory of .vmg files and show statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Analyzing vMessage files in:", dir)

			msgs, failures, pc, err := readDir(cmd, dir, false)
			if err != nil {
				return err
			}

			f, err := filter.New(filterOptions(pc))
			if err != nil {
				return fmt.Errorf("create filter: %w", err)
			}

			counter := make(map[string]map[string]int)
			for _, c := range statsCategories {
				counter[c] = make(map[string]int)
			}

			var kept, skipped, partial, inbox int
			for _, msg := range msgs {
				if !f.AllowsMessage(msg) {
					skipped++
					continue
				}
				kept++
				if msg.Partial() {
					partial++
				}
				if msg.Inbox {
					inbox++
				}
				counter["Number"][msg.Number]++
				counter["Direction"][msg.Direction()]++
				month := ""
				if !msg.Timestamp.IsZero() {
					month = msg.Timestamp.In(pc.Location).Format("2006-01")
				}
				counter["Month"][month]++
			}

			var filterPercent float64
			if total := kept + skipped; total > 0 {
				filterPercent = float64(skipped) / float64(total) * 100
			}
			fmt.Fprintf(out, "Parsed %d messages (skipped %d by filters, %.2f%%), %d files failed.\n", kept, skipped, filterPercent, len(failures))
			fmt.Fprintf(out, "Inbox: %d, outbound: %d, partial (missing number or date): %d\n\n", inbox, kept-inbox, partial)

			printFilterStats(out, f.GetStats())

			for _, category := range statsCategories {
				fmt.Fprintf(out, "Top %d %s:\n", topN, category)
				stats.PrettyPrintTop(out, counter[category], topN)
				fmt.Fprintln(out)
			}

			for _, failure := range failures {
				fmt.Fprintf(out, "failed: %v\n", failure)
			}

			if err := saveCSVReports(counter, statsCategories, reportDir, 1000); err != nil {
				return fmt.Errorf("error saving CSV reports: %w", err)
			}

			fmt.Fprintf(out, "\nReports saved to directory: %s\n", reportDir)
			return nil
		},
	}

	config.RegisterParseFlags(c)
	c.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	c.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	return c
}

func saveCSVReports(counter map[string]map[string]int, categories []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, category := range categories {
		filename := fmt.Sprintf("report_%s.csv", normalizeCategoryName(category))
		if err := writeCountCSV(filepath.Join(dir, filename), stats.TopN(counter[category], limit)); err != nil {
			return err
		}
	}

	return nil
}

func writeCountCSV(path string, counts []stats.Count) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Value", "Count"}); err != nil {
		return err
	}
	for _, c := range counts {
		if err := writer.Write([]string{c.Key, strconv.Itoa(c.Value)}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func normalizeCategoryName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

func printFilterStats(w io.Writer, s filter.Stats) {
	groups := []struct {
		title    string
		patterns []string
		hits     map[string]int
	}{
		{"Include Number Filters:", s.IncludeNumberPatterns, s.IncludeNumberHits},
		{"Include Body Filters:", s.IncludeBodyPatterns, s.IncludeBodyHits},
		{"Exclude Number Filters:", s.ExcludeNumberPatterns, s.ExcludeNumberHits},
		{"Exclude Body Filters:", s.ExcludeBodyPatterns, s.ExcludeBodyHits},
	}

	printed := false
	for _, g := range groups {
		if len(g.patterns) == 0 {
			continue
		}
		printed = true
		fmt.Fprintln(w, g.title)
		printFilterHits(w, g.patterns, g.hits)
		fmt.Fprintln(w)
	}
	if printed {
		fmt.Fprintln(w, "---")
		fmt.Fprintln(w)
	}
}

func printFilterHits(w io.Writer, patterns []string, hits map[string]int) {
	type pair struct {
		Pattern string
		Count   int
	}
	pairs := make([]pair, 0, len(patterns))
	for _, pattern := range patterns {
		pairs = append(pairs, pair{pattern, hits[pattern]})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		return pairs[i].Pattern < pairs[j].Pattern
	})

	for _, p := range pairs {
		if p.Count > 0 {
			fmt.Fprintf(w, "  ✓ %s: %d hits\n", p.Pattern, p.Count)
		} else {
			fmt.Fprintf(w, "  ✗ %s: 0 hits\n", p.Pattern)
		}
	}
}
