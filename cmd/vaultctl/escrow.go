package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/escrow"
	"vaultswap/native/token"
	"vaultswap/rpc"
)

var createFlags = []cli.Flag{
	keyFlag,
	identifierFlag,
	&cli.StringFlag{Name: "mint", Usage: "mint locked in the vault", Required: true},
	&cli.StringFlag{Name: "receive-mint", Usage: "mint the initializer wants back", Required: true},
	&cli.Uint64Flag{Name: "amount", Usage: "units locked by the initializer", Required: true},
	&cli.Uint64Flag{Name: "taker-amount", Usage: "units the taker must pay", Required: true},
}

var commandEscrow = &cli.Command{
	Name:  "escrow",
	Usage: "create, settle and inspect offers",
	Subcommands: []*cli.Command{
		{
			Name:   "create",
			Usage:  "lock tokens in an open offer",
			Flags:  createFlags,
			Action: func(c *cli.Context) error { return runCreate(c, false) },
		},
		{
			Name:  "room-create",
			Usage: "lock the required stake in a collectible-gated room",
			Flags: append(append([]cli.Flag{}, createFlags...),
				&cli.StringFlag{Name: "collectible-mint", Usage: "collectible proving membership", Required: true},
			),
			Action: func(c *cli.Context) error { return runCreate(c, true) },
		},
		{
			Name:   "exchange",
			Usage:  "take an offer, paying its taker amount",
			Flags:  []cli.Flag{keyFlag, identifierFlag},
			Action: runExchange,
		},
		{
			Name:   "cancel",
			Usage:  "withdraw an offer and reclaim the locked tokens",
			Flags:  []cli.Flag{keyFlag, identifierFlag},
			Action: runCancel,
		},
		{
			Name:  "show",
			Usage: "print a live offer",
			Flags: []cli.Flag{identifierFlag},
			Action: func(c *cli.Context) error {
				ctx, cancel := requestContext(c)
				defer cancel()
				offer, err := clientFrom(c).GetEscrow(ctx, c.String(identifierFlag.Name))
				if err != nil {
					return err
				}
				return printJSON(c, offer)
			},
		},
	},
}

// ensureAssociated returns owner's associated account for mint and, when it
// does not exist yet, the instruction that creates it.
func ensureAssociated(ctx context.Context, client *rpc.Client, owner, mint crypto.Address) (crypto.Address, []types.Instruction, error) {
	addr, _ := token.AssociatedAddress(owner, mint)
	acc, err := client.GetAccount(ctx, addr)
	if err != nil {
		return addr, nil, err
	}
	if acc.Exists {
		return addr, nil, nil
	}
	ix, err := token.NewCreateAssociatedInstruction(owner, owner, mint)
	if err != nil {
		return addr, nil, err
	}
	return addr, []types.Instruction{ix}, nil
}

func submit(ctx context.Context, c *cli.Context, client *rpc.Client, key *crypto.PrivateKey, ixs []types.Instruction) error {
	tx := &types.Transaction{Nonce: uint64(time.Now().UnixNano()), Instructions: ixs}
	if err := tx.Sign(key); err != nil {
		return err
	}
	receipt, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return err
	}
	return printJSON(c, receipt)
}

func runCreate(c *cli.Context, room bool) error {
	key, err := loadKey(c)
	if err != nil {
		return err
	}
	mint, err := addressFlag(c, "mint")
	if err != nil {
		return err
	}
	receiveMint, err := addressFlag(c, "receive-mint")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	client := clientFrom(c)

	initializer := key.Address()
	deposit, _ := token.AssociatedAddress(initializer, mint)
	receive, ixs, err := ensureAssociated(ctx, client, initializer, receiveMint)
	if err != nil {
		return err
	}
	args := escrow.CreateArgs{
		InitializerAmount: c.Uint64("amount"),
		TakerAmount:       c.Uint64("taker-amount"),
		Identifier:        c.String(identifierFlag.Name),
	}
	var ix types.Instruction
	if room {
		collectibleMint, err := addressFlag(c, "collectible-mint")
		if err != nil {
			return err
		}
		holding, _ := token.AssociatedAddress(initializer, collectibleMint)
		ix, err = escrow.NewInitRoomInstruction(initializer, mint, deposit, receive,
			escrow.RoomCollectible{Mint: collectibleMint, Holding: holding}, args)
		if err != nil {
			return err
		}
	} else {
		ix, err = escrow.NewInitEscrowInstruction(initializer, mint, deposit, receive, args)
		if err != nil {
			return err
		}
	}
	return submit(ctx, c, client, key, append(ixs, ix))
}

// liveOffer fetches an offer and the mints behind its deposit and receive
// accounts.
func liveOffer(ctx context.Context, client *rpc.Client, identifier string) (*escrow.Record, crypto.Address, crypto.Address, error) {
	offer, err := client.GetEscrow(ctx, identifier)
	if err != nil {
		return nil, crypto.Address{}, crypto.Address{}, err
	}
	rec, err := recordFromResult(offer)
	if err != nil {
		return nil, crypto.Address{}, crypto.Address{}, err
	}
	deposit, err := client.GetTokenAccount(ctx, rec.InitializerDepositTokenAccount)
	if err != nil {
		return nil, crypto.Address{}, crypto.Address{}, fmt.Errorf("initializer deposit account: %w", err)
	}
	receive, err := client.GetTokenAccount(ctx, rec.InitializerReceiveTokenAccount)
	if err != nil {
		return nil, crypto.Address{}, crypto.Address{}, fmt.Errorf("initializer receive account: %w", err)
	}
	return rec, deposit.Mint, receive.Mint, nil
}

func recordFromResult(offer *rpc.EscrowResult) (*escrow.Record, error) {
	initializerAmount, err := strconv.ParseUint(offer.InitializerAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("initializer amount: %w", err)
	}
	takerAmount, err := strconv.ParseUint(offer.TakerAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("taker amount: %w", err)
	}
	rec := &escrow.Record{
		Variant: escrow.VariantEscrow,
		EscrowState: escrow.EscrowState{
			Identifier:                     offer.Identifier,
			InitializerKey:                 offer.Initializer,
			InitializerDepositTokenAccount: offer.InitializerDeposit,
			InitializerReceiveTokenAccount: offer.InitializerReceive,
			InitializerAmount:              initializerAmount,
			TakerAmount:                    takerAmount,
			VaultAuthorityBump:             offer.VaultAuthorityBump,
		},
	}
	if offer.CollectibleMint != nil {
		rec.Variant = escrow.VariantRoom
		rec.CollectibleMint = *offer.CollectibleMint
	}
	return rec, nil
}

func runExchange(c *cli.Context) error {
	key, err := loadKey(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	client := clientFrom(c)

	rec, initializerMint, takerMint, err := liveOffer(ctx, client, c.String(identifierFlag.Name))
	if err != nil {
		return err
	}
	taker := key.Address()
	takerDeposit, _ := token.AssociatedAddress(taker, takerMint)
	takerReceive, ixs, err := ensureAssociated(ctx, client, taker, initializerMint)
	if err != nil {
		return err
	}
	ix, err := escrow.NewExchangeInstruction(rec, initializerMint, escrow.ExchangeParams{
		Taker:        taker,
		TakerMint:    takerMint,
		TakerDeposit: takerDeposit,
		TakerReceive: takerReceive,
	})
	if err != nil {
		return err
	}
	return submit(ctx, c, client, key, append(ixs, ix))
}

func runCancel(c *cli.Context) error {
	key, err := loadKey(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	client := clientFrom(c)

	rec, mint, _, err := liveOffer(ctx, client, c.String(identifierFlag.Name))
	if err != nil {
		return err
	}
	if rec.InitializerKey != key.Address() {
		return fmt.Errorf("offer %q belongs to %s", rec.Identifier, rec.InitializerKey)
	}
	ix, err := escrow.NewCancelInstruction(rec, mint)
	if err != nil {
		return err
	}
	return submit(ctx, c, client, key, []types.Instruction{ix})
}
