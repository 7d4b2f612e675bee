package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/MSB0095/sol-beast-sub004/internal/solana"
)

func validate(cfg *Config) error {
	var problems []string

	if len(cfg.Endpoints.WSURLs) == 0 {
		problems = append(problems, "endpoints.ws_urls: at least one streaming endpoint is required")
	}
	for _, u := range cfg.Endpoints.WSURLs {
		if err := checkURL(u, "ws", "wss"); err != nil {
			problems = append(problems, fmt.Sprintf("endpoints.ws_urls: %v", err))
		}
	}
	if len(cfg.Endpoints.RPCURLs) == 0 {
		problems = append(problems, "endpoints.rpc_urls: at least one RPC endpoint is required")
	}
	for _, u := range cfg.Endpoints.RPCURLs {
		if err := checkURL(u, "http", "https"); err != nil {
			problems = append(problems, fmt.Sprintf("endpoints.rpc_urls: %v", err))
		}
	}

	if cfg.Chain.LaunchpadProgram == "" {
		problems = append(problems, "chain.launchpad_program is required")
	} else if _, err := solana.PubkeyFromBase58(cfg.Chain.LaunchpadProgram); err != nil {
		problems = append(problems, fmt.Sprintf("chain.launchpad_program: %v", err))
	}
	if cfg.Chain.MetadataProgram == "" {
		problems = append(problems, "chain.metadata_program is required")
	} else if _, err := solana.PubkeyFromBase58(cfg.Chain.MetadataProgram); err != nil {
		problems = append(problems, fmt.Sprintf("chain.metadata_program: %v", err))
	}

	if cfg.Strategy.TakeProfitPct <= 0 {
		problems = append(problems, "strategy.take_profit_pct must be positive")
	}
	if cfg.Strategy.StopLossPct >= 0 {
		problems = append(problems, "strategy.stop_loss_pct must be negative")
	}
	if cfg.Strategy.Timeout <= 0 {
		problems = append(problems, "strategy.timeout must be positive")
	}
	if cfg.Strategy.BuyAmountSOL <= 0 {
		problems = append(problems, "strategy.buy_amount_sol must be positive")
	}
	if err := checkExitPriority(cfg.Strategy.ExitPriority); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%q: %w", raw, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%q: scheme must be one of %v", raw, schemes)
}

func checkExitPriority(order []string) error {
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		switch name {
		case "take_profit", "stop_loss", "timeout":
		default:
			return fmt.Errorf("strategy.exit_priority: unknown condition %q", name)
		}
		if seen[name] {
			return fmt.Errorf("strategy.exit_priority: duplicate condition %q", name)
		}
		seen[name] = true
	}
	return nil
}
