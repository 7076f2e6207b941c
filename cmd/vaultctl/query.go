package main

import (
	"github.com/urfave/cli/v2"

	"vaultswap/indexer"
)

var commandOffers = &cli.Command{
	Name:  "offers",
	Usage: "list indexed offers",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "status", Usage: "OPEN, EXCHANGED or CANCELLED"},
		&cli.StringFlag{Name: "variant", Usage: "escrow or room"},
		&cli.StringFlag{Name: "initializer", Usage: "initializer address"},
		&cli.IntFlag{Name: "limit", Value: 50},
		&cli.IntFlag{Name: "offset"},
	},
	Action: func(c *cli.Context) error {
		ctx, cancel := requestContext(c)
		defer cancel()
		offers, err := clientFrom(c).ListOffers(ctx, indexer.Filter{
			Status:      indexer.OfferStatus(c.String("status")),
			Variant:     c.String("variant"),
			Initializer: c.String("initializer"),
			Limit:       c.Int("limit"),
			Offset:      c.Int("offset"),
		})
		if err != nil {
			return err
		}
		return printJSON(c, offers)
	},
}

var commandToken = &cli.Command{
	Name:  "token",
	Usage: "token account queries",
	Subcommands: []*cli.Command{
		{
			Name:  "balance",
			Usage: "show the balance of an owner's associated account",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "owner", Required: true},
				&cli.StringFlag{Name: "mint", Required: true},
			},
			Action: func(c *cli.Context) error {
				owner, err := addressFlag(c, "owner")
				if err != nil {
					return err
				}
				mint, err := addressFlag(c, "mint")
				if err != nil {
					return err
				}
				ctx, cancel := requestContext(c)
				defer cancel()
				acc, err := clientFrom(c).GetTokenBalance(ctx, owner, mint)
				if err != nil {
					return err
				}
				return printJSON(c, acc)
			},
		},
	},
}
