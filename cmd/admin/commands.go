package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
	"github.com/tendant/simple-asset/pkg/simpleasset/scan"
)

type serviceFactory func(ctx context.Context) (simpleasset.Service, func(), error)

type admin struct {
	factory serviceFactory
	svc     simpleasset.Service
	cleanup func()
	asJSON  bool
}

func newRootCmd(factory serviceFactory) *cobra.Command {
	a := &admin{factory: factory}

	root := &cobra.Command{
		Use:   "admin",
		Short: "Simple Asset admin CLI",
		Long: `Inspect and clean up owners and images directly against the configured
database and blob storage.

Configuration is read from the environment (DATABASE_URL, DB_SCHEMA,
STORAGE_URL, ...) and from a .env file in the current directory.`,
		SilenceUsage: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.cleanup != nil {
				a.cleanup()
			}
		},
	}
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "Output as JSON")

	owners := &cobra.Command{Use: "owners", Short: "Manage products, events and content blocks"}
	owners.AddCommand(a.ownersListCmd(), a.ownersShowCmd(), a.ownersDeleteCmd())

	assets := &cobra.Command{Use: "assets", Aliases: []string{"images"}, Short: "Manage stored images"}
	assets.AddCommand(a.assetsShowCmd(), a.assetsDeleteCmd())

	root.AddCommand(owners, assets, a.scanCmd(), a.pingCmd())
	return root
}

func (a *admin) service(ctx context.Context) (simpleasset.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	svc, cleanup, err := a.factory(ctx)
	if err != nil {
		return nil, err
	}
	a.svc, a.cleanup = svc, cleanup
	return svc, nil
}

func (a *admin) ownersListCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List owners of one kind",
		Example: "  admin owners list --kind product\n  admin owners list --kind event --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			owners, err := svc.ListOwners(cmd.Context(), simpleasset.OwnerKind(kind))
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), owners)
			}
			if len(owners) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s owners found\n", kind)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tIMAGES\tVERSION\tUPDATED")
			for _, o := range owners {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", o.ID, o.Name, len(o.AssetIDs), o.Version, o.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(simpleasset.OwnerKindProduct), "Owner kind (product, event, content_block)")
	return cmd
}

func (a *admin) ownersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an owner and its images in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid owner id %q: %w", args[0], err)
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			owner, err := svc.GetOwner(cmd.Context(), id)
			if err != nil {
				return err
			}
			assets, err := svc.GetOwnerAssets(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					*simpleasset.Owner
					Assets []*simpleasset.Asset `json:"assets"`
				}{owner, assets})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s) version %d\n", owner.Kind, owner.ID, owner.Name, owner.Version)
			printAssets(out, assets)
			return nil
		},
	}
}

func (a *admin) ownersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete owners and every image no other owner references",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			n, err := svc.DeleteOwners(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d owners\n", n, len(ids))
			return nil
		},
	}
}

func (a *admin) assetsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>...",
		Short: "Show stored images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			assets, err := svc.GetAssets(cmd.Context(), ids)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), assets)
			}
			printAssets(cmd.OutOrStdout(), assets)
			return nil
		},
	}
}

func (a *admin) assetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Detach an image from its owners and delete its blobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid asset id %q: %w", args[0], err)
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.DeleteAsset(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted asset %s\n", id)
			return nil
		},
	}
}

func (a *admin) scanCmd() *cobra.Command {
	var (
		kind   string
		repair bool
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Check owners for dangling image references and missing blobs",
		Example: `  admin scan
  admin scan --kind product --repair
  admin scan --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			checker := scan.NewIntegrityChecker(svc, repair)
			result, err := scan.New(svc).Scan(cmd.Context(), scan.ScanOptions{
				Kind:      simpleasset.OwnerKind(kind),
				Processor: checker,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					*scan.ScanResult
					Issues []scan.Issue `json:"issues"`
				}{result, checker.Issues()})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d owners: %d ok, %d failed\n", result.TotalFound, result.TotalProcessed, result.TotalFailed)
			issues := checker.Issues()
			if len(issues) == 0 {
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OWNER\tASSET\tREASON\tKEY")
			for _, is := range issues {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", is.OwnerID, is.AssetID, is.Reason, is.Key)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Owner kind to scan (default: all)")
	cmd.Flags().BoolVar(&repair, "repair", false, "Drop dangling references from owners")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List owners without checking them")
	return cmd
}

func (a *admin) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithEnv(""))
			if err != nil {
				return err
			}
			if cfg.DatabaseType != "postgres" {
				fmt.Fprintln(cmd.OutOrStdout(), "Using in-memory database, nothing to ping")
				return nil
			}
			if err := config.PingPostgres(cmd.Context(), cfg.DatabaseURL, cfg.DBSchema); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database reachable")
			return nil
		},
	}
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printAssets(out io.Writer, assets []*simpleasset.Asset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tSIZE\tDIMENSIONS\tORIGINAL\tTHUMBNAIL")
	for _, a := range assets {
		fmt.Fprintf(w, "%s\t%s\t%d\t%dx%d\t%s\t%s\n", a.ID, a.FileName, a.SizeBytes, a.Width, a.Height, a.OriginalKey, a.DerivedKey)
	}
	w.Flush()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
