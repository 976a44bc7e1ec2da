package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog/internal/core"
)

func newProductsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List and edit products",
	}
	cmd.AddCommand(newProductsListCmd(e), newProductsUpdateCmd(e), newProductsVisibilityCmd(e))
	return cmd
}

func newProductsListCmd(e *env) *cobra.Command {
	var (
		visibleOnly bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products (all products require admin; --visible does not)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				products []core.Product
				err      error
			)
			if visibleOnly {
				products, err = e.service().VisibleProducts(cmd.Context())
			} else {
				products, err = e.service().ListProducts(cmd.Context(), e.caller)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(e.out, products)
			}

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tCATEGORY\tVISIBLE")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%t\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock, p.Category, p.IsVisible)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&visibleOnly, "visible", false, "Only published products, served from the cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newProductsUpdateCmd(e *env) *cobra.Command {
	var (
		name, price, description, imageURL, category, tags string
		stock                                              int
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of one product; unspecified fields keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch core.ProductPatch

			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("price") {
				d, err := decimal.NewFromString(strings.ReplaceAll(price, ",", "."))
				if err != nil {
					return fmt.Errorf("%w: --price %q is not a number", core.ErrInvalidInput, price)
				}
				patch.Price = &d
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("image-url") {
				patch.ImageURL = &imageURL
			}
			if flags.Changed("category") {
				patch.Category = &category
			}
			if flags.Changed("stock") {
				patch.Stock = &stock
			}
			if flags.Changed("tags") {
				patch.Tags = core.SplitTags(tags)
			}

			product, err := e.service().UpdateProduct(cmd.Context(), e.caller, args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(e.out, product)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "Product name")
	flags.StringVar(&price, "price", "", "Price, e.g. 1299.90")
	flags.StringVar(&description, "description", "", "Description")
	flags.StringVar(&imageURL, "image-url", "", "Image URL")
	flags.StringVar(&category, "category", "", "Category")
	flags.IntVar(&stock, "stock", 0, "Units in stock")
	flags.StringVar(&tags, "tags", "", "Tags separated by commas, semicolons or spaces")
	return cmd
}

func newProductsVisibilityCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "visibility <id> <true|false>",
		Short: "Publish or hide a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			visible, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("%w: visibility must be true or false, got %q", core.ErrInvalidInput, args[1])
			}
			if err := e.service().SetVisibility(cmd.Context(), e.caller, args[0], visible); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "product %s visible=%t\n", args[0], visible)
			return nil
		},
	}
}

func newPricesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Catalog-wide price changes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "bulk <percent|fixed> <value>",
		Short: "Adjust every price by a percentage or a fixed amount",
		Long: "Adjust every price by a percentage or a fixed amount. Results are rounded to " +
			"two decimals and never go below zero. Products are updated in batches; a failure " +
			"part-way leaves earlier batches applied.",
		Example: "  catalogctl prices bulk percent 10\n  catalogctl prices bulk fixed -50",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := core.ParsePriceMode(strings.ToLower(args[0]))
			if !ok {
				return fmt.Errorf("%w: mode must be percent or fixed, got %q", core.ErrInvalidInput, args[0])
			}
			value, err := decimal.NewFromString(strings.ReplaceAll(args[1], ",", "."))
			if err != nil {
				return fmt.Errorf("%w: value %q is not a number", core.ErrInvalidInput, args[1])
			}

			n, err := e.service().BulkAdjustPrice(cmd.Context(), e.caller, mode, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "updated %d products (%s %s)\n", n, mode, value)
			return nil
		},
	})
	return cmd
}

func newAdminsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admins",
		Short: "Manage administrator identities",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <user-id>",
			Short: "Grant admin capability to a numeric user id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := e.service().AddAdmin(cmd.Context(), e.caller, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "%s is now an admin\n", strings.TrimSpace(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "check <user-id>",
			Short: "Show whether a user id is an admin",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printJSON(e.out, e.service().AdminStatus(cmd.Context(), args[0]))
			},
		},
	)
	return cmd
}
