package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"underwriting-engine/internal/app"
	"underwriting-engine/internal/models"
	s3service "underwriting-engine/internal/services/s3"
)

func newProductsCmd(root *rootOptions) *cobra.Command {
	var agency string
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List agency products and their published limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agencies := models.ValidAgencies()
			if agency != "" {
				a := models.Agency(strings.ToLower(agency))
				if !a.IsValid() {
					return fmt.Errorf("unknown agency %q (want fannie_mae or freddie_mac)", agency)
				}
				agencies = []models.Agency{a}
			}

			dir := root.catalogDir
			if dir == "" {
				dir = os.Getenv("CATALOG_DIR")
			}
			c, err := app.LoadCatalog(dir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "catalog %s\n\n", c.Version())
			fmt.Fprintln(w, "PRODUCT\tNAME\tMAX LTV %\tMIN DSCR\tMAX AMORT\tMIN OCC %")
			for _, a := range agencies {
				for _, p := range c.Profiles(a) {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
						p.Key, p.Name, p.MaxLTVPercent, p.MinDSCR, p.MaxAmortizationYears, p.MinOccupancyPercent)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&agency, "agency", "", "Only list products of this agency")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect product term sheets",
	}

	var dir string
	validateCmd := &cobra.Command{
		Use:   "validate --dir termsheets/",
		Short: "Check that a term sheet directory loads and covers every product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.LoadCatalog(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK %s: %d products\n", c.Version(), c.Len())
			return nil
		},
	}
	validateCmd.Flags().StringVar(&dir, "dir", "", "Term sheet directory")
	_ = validateCmd.MarkFlagRequired("dir")

	var bucket, prefix string
	publishCmd := &cobra.Command{
		Use:   "publish --dir termsheets/ --bucket name",
		Short: "Validate a term sheet directory and upload it to S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bucket == "" {
				return fmt.Errorf("--bucket or CATALOG_S3_BUCKET is required")
			}
			c, err := app.LoadCatalog(dir)
			if err != nil {
				return err
			}
			store, err := s3service.NewTermSheetStore(cmd.Context(), bucket, prefix, logger())
			if err != nil {
				return err
			}
			n, err := store.Publish(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s: %d term sheets to s3://%s/%s\n", c.Version(), n, bucket, prefix)
			return nil
		},
	}
	publishCmd.Flags().StringVar(&dir, "dir", "", "Term sheet directory")
	publishCmd.Flags().StringVar(&bucket, "bucket", os.Getenv("CATALOG_S3_BUCKET"), "Destination bucket")
	publishCmd.Flags().StringVar(&prefix, "prefix", "termsheets/", "Destination key prefix")
	_ = publishCmd.MarkFlagRequired("dir")

	catalogCmd.AddCommand(validateCmd)
	catalogCmd.AddCommand(publishCmd)
	return catalogCmd
}
