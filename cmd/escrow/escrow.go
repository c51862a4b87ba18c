package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

var (
	idFlag = &cli.StringFlag{
		Name:     "id",
		Usage:    "the id of the escrow",
		Required: true,
	}

	create = cli.Command{
		Name:  "create",
		Usage: "create a new escrow for a cross-domain swap",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source_asset",
				Usage:    "the asset offered by the maker",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "destination_asset",
				Usage:    "the asset expected by the maker",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "making_amount",
				Usage:    "the amount of source asset offered by the maker",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "taking_amount",
				Usage:    "the amount of destination asset deposited by the taker",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "maker",
				Usage: "the maker of the swap, must be the configured caller if given",
			},
			&cli.StringFlag{
				Name:     "taker",
				Usage:    "the taker of the swap",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "source_domain",
				Usage:    "the execution domain of the source asset",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "destination_domain",
				Usage:    "the execution domain of the destination asset",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "recipient",
				Usage: "the optional address where the maker expects to be paid",
			},
			&cli.Uint64Flag{
				Name:  "finality",
				Usage: "end of the finality stage, in seconds from creation",
				Value: 60,
			},
			&cli.Uint64Flag{
				Name:  "withdrawal",
				Usage: "end of the private withdrawal stage, in seconds from creation",
				Value: 3600,
			},
			&cli.Uint64Flag{
				Name:  "public_withdrawal",
				Usage: "end of the public withdrawal stage, in seconds from creation",
				Value: 7200,
			},
			&cli.Uint64Flag{
				Name:  "cancellation",
				Usage: "end of the private cancellation stage, in seconds from creation",
				Value: 10800,
			},
			&cli.Uint64Flag{
				Name:  "public_cancellation",
				Usage: "end of the public cancellation stage, in seconds from creation",
				Value: 14400,
			},
		},
		Action: createAction,
	}

	fund = cli.Command{
		Name:  "fund",
		Usage: "fund an escrow as its taker, committing to the hash of a secret",
		Flags: []cli.Flag{
			idFlag,
			&cli.StringFlag{
				Name:     "secret_hash",
				Usage:    "the hex encoded commitment of the swap secret",
				Required: true,
			},
		},
		Action: fundAction,
	}

	withdraw = cli.Command{
		Name:  "withdraw",
		Usage: "withdraw the funds of an escrow by revealing the secret",
		Flags: []cli.Flag{
			idFlag,
			&cli.StringFlag{
				Name:     "secret",
				Usage:    "the preimage of the escrow commitment",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "receiver",
				Usage: "the receiver of the funds, defaults to the caller",
			},
		},
		Action: withdrawAction,
	}

	cancel = cli.Command{
		Name:   "cancel",
		Usage:  "cancel an escrow and refund its taker",
		Flags:  []cli.Flag{idFlag},
		Action: cancelAction,
	}

	get = cli.Command{
		Name:   "get",
		Usage:  "get the info of an escrow",
		Flags:  []cli.Flag{idFlag},
		Action: getAction,
	}

	stage = cli.Command{
		Name:   "stage",
		Usage:  "get the current timelock stage of an escrow",
		Flags:  []cli.Flag{idFlag},
		Action: stageAction,
	}

	list = cli.Command{
		Name:  "list",
		Usage: "list escrows, optionally filtered by party and status",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "party",
				Usage: "list escrows where the party is either maker or taker",
			},
			&cli.StringFlag{
				Name:  "maker",
				Usage: "list escrows created by the maker",
			},
			&cli.StringFlag{
				Name:  "taker",
				Usage: "list escrows taken by the taker",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "one of created, funded, withdrawn, cancelled",
			},
		},
		Action: listAction,
	}
)

func createAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	resp, err := client.do(http.MethodPost, "/v1/escrows", map[string]interface{}{
		"source_asset":       ctx.String("source_asset"),
		"destination_asset":  ctx.String("destination_asset"),
		"making_amount":      ctx.String("making_amount"),
		"taking_amount":      ctx.String("taking_amount"),
		"maker":              ctx.String("maker"),
		"taker":              ctx.String("taker"),
		"source_domain":      ctx.String("source_domain"),
		"destination_domain": ctx.String("destination_domain"),
		"recipient":          ctx.String("recipient"),
		"timelocks": map[string]uint64{
			"finality":            ctx.Uint64("finality"),
			"withdrawal":          ctx.Uint64("withdrawal"),
			"public_withdrawal":   ctx.Uint64("public_withdrawal"),
			"cancellation":        ctx.Uint64("cancellation"),
			"public_cancellation": ctx.Uint64("public_cancellation"),
		},
	})
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func fundAction(ctx *cli.Context) error {
	return postEscrowAction(ctx, "fund", map[string]string{
		"secret_hash": ctx.String("secret_hash"),
	})
}

func withdrawAction(ctx *cli.Context) error {
	return postEscrowAction(ctx, "withdraw", map[string]string{
		"secret":   ctx.String("secret"),
		"receiver": ctx.String("receiver"),
	})
}

func cancelAction(ctx *cli.Context) error {
	return postEscrowAction(ctx, "cancel", nil)
}

func getAction(ctx *cli.Context) error {
	return getEscrowAction(ctx, "")
}

func stageAction(ctx *cli.Context) error {
	return getEscrowAction(ctx, "/stage")
}

func listAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	query := url.Values{}
	for _, key := range []string{"party", "maker", "taker", "status"} {
		if v := ctx.String(key); len(v) > 0 {
			query.Set(key, v)
		}
	}
	path := "/v1/escrows"
	if len(query) > 0 {
		path = fmt.Sprintf("%s?%s", path, query.Encode())
	}

	resp, err := client.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func postEscrowAction(
	ctx *cli.Context, transition string, body interface{},
) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	path := fmt.Sprintf(
		"/v1/escrows/%s/%s", url.PathEscape(ctx.String("id")), transition,
	)
	resp, err := client.do(http.MethodPost, path, body)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func getEscrowAction(ctx *cli.Context, suffix string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/v1/escrows/%s%s", url.PathEscape(ctx.String("id")), suffix)
	resp, err := client.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}
