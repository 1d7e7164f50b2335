package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/evlocate/foundation/config"
	"github.com/evlocate/foundation/contract"
	"github.com/evlocate/foundation/errors"
	"github.com/evlocate/foundation/sym"
)

// ContractsCmd represents the contracts command
var ContractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: sym.Valid + " Inspect source contracts",
	Long: sym.Valid + ` contracts — Inspect registered source contracts

Examples:
  foundation contracts list       # List contracts from the contracts file
  foundation contracts show entsoe`,
}

var contractsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contracts from the contracts file",
	RunE:  runContractsList,
}

var contractsShowCmd = &cobra.Command{
	Use:   "show <source_id>",
	Short: "Show one contract in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractsShow,
}

func init() {
	ContractsCmd.AddCommand(contractsListCmd)
	ContractsCmd.AddCommand(contractsShowCmd)
}

func loadContracts() ([]contract.Contract, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	contracts, err := contract.LoadFile(cfg.Contracts.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load contracts from %s", cfg.Contracts.Path)
	}

	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].SourceID < contracts[j].SourceID
	})
	return contracts, nil
}

func runContractsList(cmd *cobra.Command, args []string) error {
	contracts, err := loadContracts()
	if err != nil {
		return err
	}

	fmt.Printf("%s Source Contracts (%d)\n", sym.Valid, len(contracts))
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	for _, c := range contracts {
		polled := ""
		if c.PollInterval > 0 {
			polled = fmt.Sprintf("  (polled every %s)", c.PollInterval)
		}
		fmt.Printf("  %-25s %s%s\n", c.SourceID, c.SourceName, polled)
	}
	return nil
}

func runContractsShow(cmd *cobra.Command, args []string) error {
	contracts, err := loadContracts()
	if err != nil {
		return err
	}

	sourceID := args[0]
	for _, c := range contracts {
		if c.SourceID != sourceID {
			continue
		}

		fmt.Printf("%s %s — %s\n\n", sym.Valid, c.SourceID, c.SourceName)
		if c.Endpoint != "" {
			fmt.Printf("Endpoint:      %s\n", c.Endpoint)
		}
		if c.PollInterval > 0 {
			fmt.Printf("Poll Interval: %s\n", c.PollInterval)
		}
		if c.FreshnessSLA > 0 {
			fmt.Printf("Freshness SLA: %s\n", c.FreshnessSLA)
		}
		if len(c.RequiredFields) > 0 {
			fmt.Printf("Required:      %v\n", c.RequiredFields)
		}
		if len(c.FieldTypes) > 0 {
			fmt.Println("Types:")
			fields := make([]string, 0, len(c.FieldTypes))
			for field := range c.FieldTypes {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				fmt.Printf("  %-25s %s\n", field, c.FieldTypes[field])
			}
		}
		if len(c.FieldRanges) > 0 {
			fmt.Println("Ranges:")
			fields := make([]string, 0, len(c.FieldRanges))
			for field := range c.FieldRanges {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				r := c.FieldRanges[field]
				fmt.Printf("  %-25s [%v, %v]\n", field, r.Min, r.Max)
			}
		}
		return nil
	}

	return errors.Newf("no contract for source %q", sourceID)
}
