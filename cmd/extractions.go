package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/docpipe/internal/model"
)

var (
	extractionsTenant string
	extractionsFields bool
)

var extractionsCmd = &cobra.Command{
	Use:   "extractions <document-id>",
	Short: "List extraction versions for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		exts, err := env.Store.ListExtractions(ctx, extractionsTenant, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "VERSION\tSTATUS\tCURRENT\tCONFIDENCE\tPARSER\tTYPE\tCREATED")
		for _, ext := range exts {
			current := ""
			if ext.IsCurrent {
				current = "*"
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
				ext.Version,
				ext.Status,
				current,
				ext.Confidence,
				ext.ParserUsed,
				ext.DocumentType,
				ext.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if !extractionsFields {
			return nil
		}

		for _, ext := range exts {
			if !ext.IsCurrent || ext.Status != model.ExtractionCompleted {
				continue
			}
			fields, err := env.Store.ListFields(ctx, extractionsTenant, ext.ID)
			if err != nil {
				return err
			}
			fw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(fw, "\nFIELD\tVALUE\tCONFIDENCE\tSOURCE")
			for _, f := range fields {
				_, _ = fmt.Fprintf(fw, "%s\t%v\t%.2f\t%s\n",
					f.Key, f.EffectiveValue(), f.Confidence, f.Source)
			}
			if err := fw.Flush(); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	extractionsCmd.Flags().StringVar(&extractionsTenant, "tenant", "", "tenant ID (required)")
	extractionsCmd.Flags().BoolVar(&extractionsFields, "fields", false, "also print the current version's fields")
	_ = extractionsCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(extractionsCmd)
}
