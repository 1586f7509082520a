package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var simulatePrices map[string]string

var simulateCmd = &cobra.Command{
	Use:     "simulate-alert",
	Short:   "用给定的各链价格模拟一次健康检查并触发告警",
	Example: "  dragonmcp simulate-alert --price sonic=1.00 --price ethereum=1.00 --price arbitrum=1.10",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(simulatePrices) == 0 {
			return errors.New("至少需要一个 --price chain=value")
		}

		prices := make(map[string]decimal.Decimal, len(simulatePrices))
		for id, raw := range simulatePrices {
			p, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("invalid price for %s: %w", id, err)
			}
			prices[strings.ToLower(strings.TrimSpace(id))] = p
		}

		report, err := getApp().SimulateAlert(cmd.Context(), prices)
		if err != nil {
			return err
		}
		cmd.Printf("overall_status: %s, alerts: %d\n", report.OverallStatus, len(report.Alerts))
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringToStringVar(&simulatePrices, "price", nil, "链价格 chain=usd，可重复；缺失的监控链视为故障")
}
