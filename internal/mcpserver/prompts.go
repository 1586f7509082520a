package mcpserver

type prompt struct {
	name        string
	description string
	text        string
}

var prompts = []prompt{
	{
		name:        "dragon_monitoring_prompt",
		description: "Dragon ecosystem monitoring guide",
		text: `Monitor the Dragon ecosystem:

ORACLE HEALTH
- Call check_oracle_health for the network-wide status.
- Watch price consistency across chains; deviation must stay under 5%.
- Check each oracle's price validity and timestamp with get_dragon_price.

LOTTERY
- Call get_lottery_stats for each chain.
- Track jackpot growth and the lottery configuration.
- Verify win probabilities with simulate_lottery.

CROSS-CHAIN
- Check LayerZero deliveries with check_layerzero_status.
- Compare secondary oracle prices with the primary on Sonic.
- Confirm VRF randomness requests on Arbitrum.

ALERT ON
- Oracle price deviation above 5%
- Chains reporting invalid prices or errors
- LayerZero message failures
- Lottery errors
`,
	},
	{
		name:        "dragon_testing_prompt",
		description: "Dragon system testing guide",
		text: `Test the Dragon ecosystem:

1. ORACLE
   - get_dragon_price on every chain.
   - Confirm the primary oracle on Sonic aggregates several sources.
   - Confirm secondary oracles return the relayed price.

2. LOTTERY
   - simulate_lottery with a range of USD amounts.
   - Check that the win probability scales with the amount.
   - Compare results across chains.

3. INTEGRATION
   - test_lottery_entry to exercise the swap-to-enter path.
   - request_vrf_randomness on Arbitrum.
   - Review jackpot balances after entries.

4. CROSS-CHAIN
   - estimate_layerzero_fee between each chain pair.
   - check_layerzero_status for recent sends.
`,
	},
}
