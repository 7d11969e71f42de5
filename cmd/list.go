package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/icmpwatch/capture"
	"github.com/Zerofisher/icmpwatch/expert"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List available resources",
	Long:    `List capture interfaces and the classification rules.`,
	GroupID: "info",
}

var listInterfacesCmd = &cobra.Command{
	Use:     "interfaces",
	Short:   "List available network interfaces",
	Long:    `Display a list of network interfaces available for packet capture.`,
	Example: `  icmpwatch list interfaces`,
	Aliases: []string{"ifaces", "if"},
	RunE:    runListInterfaces,
}

var listRulesCmd = &cobra.Command{
	Use:     "rules",
	Short:   "List the status rules in evaluation order",
	Example: `  icmpwatch list rules`,
	RunE:    runListRules,
}

func init() {
	listCmd.AddCommand(listInterfacesCmd)
	listCmd.AddCommand(listRulesCmd)
}

// runListInterfaces lists available network interfaces
func runListInterfaces(cmd *cobra.Command, args []string) error {
	ifaces, err := capture.ListInterfaces()
	if err != nil {
		return fmt.Errorf("error listing interfaces: %w", err)
	}

	def, _ := capture.DefaultInterface()

	fmt.Println("Available network interfaces:")
	fmt.Println(strings.Repeat("-", 60))

	for i, iface := range ifaces {
		marker := ""
		if iface.Name == def {
			marker = " (default)"
		}
		fmt.Printf("%d. %s%s\n", i+1, iface.Name, marker)
		if iface.Description != "" {
			fmt.Printf("   Description: %s\n", iface.Description)
		}
		for _, addr := range iface.Addresses {
			fmt.Printf("   Address: %s\n", addr.IP)
		}
		fmt.Println()
	}

	return nil
}

// runListRules prints the rule table, first match wins
func runListRules(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-3s %-20s %-8s %-44s %s\n", "#", "Rule", "Severity", "Status", "Condition")
	fmt.Println(strings.Repeat("-", 110))
	for i, r := range expert.Rules() {
		fmt.Printf("%-3d %-20s %-8s %-44s %s\n", i+1, r.Name, r.Severity, r.Status, r.Condition)
	}
	fmt.Printf("%-3s %-20s %-8s %-44s %s\n", "-", "normal", expert.SeverityChat, expert.StatusNormal, "otherwise")
	return nil
}
