// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/patent-harvester/internal/logger"
)

var authorCmd = &cobra.Command{
	Use:   "author <name>",
	Short: "Extract every result of a query into one author directory",
	Long: `Author runs the query, then extracts every result page into a single
directory named after the author, skipping inventor expansion. The
classification gate applies only when --classification or --keyword is
given. The workbooks are archived under the author's name unless --archive
is set.`,
	Example: `  patent-harvester author "Jane Roe" --query "inventor:(Jane Roe)"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAuthor,
}

func init() {
	addRunFlags(authorCmd)
	addAuthorFlags(authorCmd)

	rootCmd.AddCommand(authorCmd)
}

func addAuthorFlags(cmd *cobra.Command) {
	cmd.Flags().String("resume-from", "", "resume from the links checkpoint: details")
	cmd.Flags().String("archive", "", "archive name without the .zip extension (default: the author directory name)")
}

func runAuthor(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	start := time.Now()
	defer func() { log.Info("author harvest finished", logger.Duration("elapsed", time.Since(start))) }()

	r, err := newRunner(cmd)
	if err != nil {
		log.Error("invalid configuration", logger.Error(err))
		return err
	}

	sum, err := r.RunAuthor(cmd.Context(), name)
	if err != nil {
		log.Error("author harvest failed", logger.String("author", name), logger.Error(err))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sum.Render())
	return nil
}
