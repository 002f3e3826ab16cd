package main

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"matchbook/api/grpcserver"
	"matchbook/domain/market"
)

var showCmd = &cobra.Command{Use: "show", Short: "Inspect records and balances"}

func fetch(ctx context.Context, c *grpcserver.Client, addr solana.PublicKey, r market.Record) error {
	data, err := c.Account(ctx, addr)
	if err != nil {
		return err
	}
	return market.Decode(data, r)
}

func fetchQueue(cmd *cobra.Command, c *grpcserver.Client, programID, mkt solana.PublicKey) (*market.MarketEventsAccount, error) {
	addr, err := market.EventsAddress(programID, mkt)
	if err != nil {
		return nil, err
	}
	q := &market.MarketEventsAccount{}
	return q, fetch(cmd.Context(), c, addr, q)
}

var showMarketCmd = &cobra.Command{
	Use:   "market <market>",
	Short: "Print a market's state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mkt, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return err
		}
		return withClient(func(c *grpcserver.Client) error {
			var state market.MarketState
			if err := fetch(cmd.Context(), c, mkt, &state); err != nil {
				return err
			}
			return printJSON(state)
		})
	},
}

var showBookCmd = &cobra.Command{
	Use:   "book <market> <bid|ask>",
	Short: "Print the resting orders of one side of a market, best first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mkt, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return err
		}
		side, err := market.ParseSide(args[1])
		if err != nil {
			return err
		}
		return withClient(func(c *grpcserver.Client) error {
			var state market.MarketState
			if err := fetch(cmd.Context(), c, mkt, &state); err != nil {
				return err
			}
			var book market.OrderBook
			if err := fetch(cmd.Context(), c, state.Book(side), &book); err != nil {
				return err
			}
			return printJSON(map[string]any{
				"side":          side.String(),
				"capacity":      book.Capacity(),
				"next_order_id": book.NextOrderID,
				"orders":        book.Resting(),
			})
		})
	},
}

var showEventsCmd = &cobra.Command{
	Use:   "events <market>",
	Short: "Print the unconsumed events of a market",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		programID, err := programIDFromConfig()
		if err != nil {
			return err
		}
		mkt, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return err
		}
		return withClient(func(c *grpcserver.Client) error {
			q, err := fetchQueue(cmd, c, programID, mkt)
			if err != nil {
				return err
			}
			type event struct {
				Type         string           `json:"type"`
				Side         string           `json:"side"`
				Maker        solana.PublicKey `json:"maker"`
				Taker        solana.PublicKey `json:"taker"`
				CoinQty      uint64           `json:"coin_qty"`
				PcQty        uint64           `json:"pc_qty"`
				MakerOrderID uint64           `json:"maker_order_id"`
			}
			pending := q.Peek(q.Len())
			out := make([]event, 0, len(pending))
			for _, ev := range pending {
				out = append(out, event{ev.Type.String(), ev.Side.String(), ev.Maker, ev.Taker, ev.CoinQty, ev.PcQty, ev.MakerOrderID})
			}
			return printJSON(map[string]any{"head": q.Head, "tail": q.Tail, "events": out})
		})
	},
}

var showUserCmd = &cobra.Command{
	Use:   "user <market> <owner>",
	Short: "Print an owner's balances and open orders in a market",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		programID, err := programIDFromConfig()
		if err != nil {
			return err
		}
		mkt, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return err
		}
		owner, err := solana.PublicKeyFromBase58(args[1])
		if err != nil {
			return err
		}
		userAddr, _, err := market.UserAccountAddress(programID, mkt, owner)
		if err != nil {
			return err
		}
		ordersAddr, _, err := market.OpenOrderAddress(programID, mkt, owner)
		if err != nil {
			return err
		}
		return withClient(func(c *grpcserver.Client) error {
			var user market.UserMarketAccount
			if err := fetch(cmd.Context(), c, userAddr, &user); err != nil {
				return err
			}
			var orders market.OpenOrderAccount
			if err := fetch(cmd.Context(), c, ordersAddr, &orders); err != nil {
				return err
			}
			type openOrder struct {
				Side    string `json:"side"`
				OrderID uint64 `json:"order_id"`
			}
			var live []openOrder
			for _, encoded := range orders.Live() {
				side, id := market.DecodeOrderID(encoded)
				live = append(live, openOrder{side.String(), id})
			}
			return printJSON(map[string]any{
				"account":     user,
				"open_orders": live,
			})
		})
	},
}

var showBalanceCmd = &cobra.Command{
	Use:   "balance <mint> <holder>",
	Short: "Print a custody balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mint, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return err
		}
		holder, err := solana.PublicKeyFromBase58(args[1])
		if err != nil {
			return err
		}
		return withClient(func(c *grpcserver.Client) error {
			v, err := c.Balance(cmd.Context(), mint, holder)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"mint": mint, "holder": holder, "balance": v})
		})
	},
}

func init() {
	showCmd.AddCommand(showMarketCmd, showBookCmd, showEventsCmd, showUserCmd, showBalanceCmd)
	RootCmd.AddCommand(showCmd)
}
